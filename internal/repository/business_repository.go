package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/luminara-labs/bizhub/internal/domain"
)

type BusinessRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.Business, error)
	SetPlanExpiry(ctx context.Context, id int64, expiresAt time.Time) error

	FindMembership(ctx context.Context, businessID, userID int64) (*domain.BusinessUser, error)
	FindMembershipByID(ctx context.Context, id int64) (*domain.BusinessUser, error)
	ApproveMembership(ctx context.Context, id int64) (*domain.BusinessUser, error)
}

type businessRepository struct {
	pool *pgxpool.Pool
}

func NewBusinessRepository(pool *pgxpool.Pool) BusinessRepository {
	return &businessRepository{pool: pool}
}

func (r *businessRepository) FindByID(ctx context.Context, id int64) (*domain.Business, error) {
	const q = `
		SELECT id, name, owner_id, plan_expires_at, created_at, updated_at
		FROM businesses
		WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var b domain.Business
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&b.ID, &b.Name, &b.OwnerID, &b.PlanExpiresAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *businessRepository) SetPlanExpiry(ctx context.Context, id int64, expiresAt time.Time) error {
	const q = `
		UPDATE businesses
		SET plan_expires_at = $2, updated_at = now()
		WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id, expiresAt)
	return err
}

func (r *businessRepository) FindMembership(ctx context.Context, businessID, userID int64) (*domain.BusinessUser, error) {
	const q = `
		SELECT id, business_id, user_id, role, status, joined_at, created_at, updated_at
		FROM business_users
		WHERE business_id = $1 AND user_id = $2`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var bu domain.BusinessUser
	err := r.pool.QueryRow(ctx, q, businessID, userID).Scan(
		&bu.ID, &bu.BusinessID, &bu.UserID, &bu.Role, &bu.Status, &bu.JoinedAt, &bu.CreatedAt, &bu.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bu, nil
}

func (r *businessRepository) FindMembershipByID(ctx context.Context, id int64) (*domain.BusinessUser, error) {
	const q = `
		SELECT id, business_id, user_id, role, status, joined_at, created_at, updated_at
		FROM business_users
		WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var bu domain.BusinessUser
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&bu.ID, &bu.BusinessID, &bu.UserID, &bu.Role, &bu.Status, &bu.JoinedAt, &bu.CreatedAt, &bu.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bu, nil
}

func (r *businessRepository) ApproveMembership(ctx context.Context, id int64) (*domain.BusinessUser, error) {
	const q = `
		UPDATE business_users
		SET status = 'active', updated_at = now()
		WHERE id = $1
		RETURNING id, business_id, user_id, role, status, joined_at, created_at, updated_at`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var bu domain.BusinessUser
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&bu.ID, &bu.BusinessID, &bu.UserID, &bu.Role, &bu.Status, &bu.JoinedAt, &bu.CreatedAt, &bu.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bu, nil
}
