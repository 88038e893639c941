package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/luminara-labs/bizhub/internal/domain"
)

const uniqueViolation = "23505"

type InvitationRepository interface {
	Create(ctx context.Context, businessUserID int64, code, role string, expiresAt time.Time) (*domain.Invitation, error)
	FindByID(ctx context.Context, id int64) (*domain.Invitation, error)
	FindPendingByCode(ctx context.Context, code string) (*domain.Invitation, error)
	PreviewByCode(ctx context.Context, code string) (*domain.InvitationPreview, error)

	// MarkExpired records lazy expiry detected at read time; only the status
	// flips, the original expiry timestamp is preserved.
	MarkExpired(ctx context.Context, id int64) error

	// Accept redeems the invitation and creates the pending membership in one
	// transaction. Returns domain.ErrAlreadyUsed when a concurrent accept won
	// the conditional update, and domain.ErrAlreadyMember when the membership
	// uniqueness constraint fires.
	Accept(ctx context.Context, invitationID, businessID, userID int64, role, ip, userAgent string) (*domain.BusinessUser, error)

	Cancel(ctx context.Context, id int64) (*domain.Invitation, error)
	Resend(ctx context.Context, id int64, expiresAt time.Time) (*domain.Invitation, error)
	Expire(ctx context.Context, id int64) (*domain.Invitation, error)
	Delete(ctx context.Context, id int64) error

	ListByBusiness(ctx context.Context, businessID int64, status *domain.InvitationStatus, limit, offset int) ([]domain.InvitationListItem, error)
}

type invitationRepository struct {
	pool *pgxpool.Pool
}

func NewInvitationRepository(pool *pgxpool.Pool) InvitationRepository {
	return &invitationRepository{pool: pool}
}

const invitationColumns = `id, business_user_id, invitation_code, role, status, is_used,
		expired_at, used_at, used_by, created_at, updated_at`

func scanInvitation(row pgx.Row) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := row.Scan(
		&inv.ID, &inv.BusinessUserID, &inv.Code, &inv.Role, &inv.Status, &inv.IsUsed,
		&inv.ExpiresAt, &inv.UsedAt, &inv.UsedBy, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invitationRepository) Create(ctx context.Context, businessUserID int64, code, role string, expiresAt time.Time) (*domain.Invitation, error) {
	const q = `
		INSERT INTO invitations (business_user_id, invitation_code, role, status, is_used, expired_at)
		VALUES ($1, upper($2), $3, 'pending', false, $4)
		RETURNING ` + invitationColumns

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanInvitation(r.pool.QueryRow(ctx, q, businessUserID, code, role, expiresAt))
}

func (r *invitationRepository) FindByID(ctx context.Context, id int64) (*domain.Invitation, error) {
	const q = `SELECT ` + invitationColumns + ` FROM invitations WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanInvitation(r.pool.QueryRow(ctx, q, id))
}

func (r *invitationRepository) FindPendingByCode(ctx context.Context, code string) (*domain.Invitation, error) {
	const q = `
		SELECT ` + invitationColumns + `
		FROM invitations
		WHERE invitation_code = upper($1)
		  AND status = 'pending'`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanInvitation(r.pool.QueryRow(ctx, q, code))
}

func (r *invitationRepository) PreviewByCode(ctx context.Context, code string) (*domain.InvitationPreview, error) {
	const q = `
		SELECT i.role, b.name, u.name, i.expired_at
		FROM invitations i
		JOIN business_users bu ON bu.id = i.business_user_id
		JOIN businesses b ON b.id = bu.business_id
		JOIN users u ON u.id = bu.user_id
		WHERE i.invitation_code = upper($1)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var p domain.InvitationPreview
	err := r.pool.QueryRow(ctx, q, code).Scan(&p.Role, &p.BusinessName, &p.InviterName, &p.ExpiresAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *invitationRepository) MarkExpired(ctx context.Context, id int64) error {
	const q = `
		UPDATE invitations
		SET status = 'expired', updated_at = now()
		WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id)
	return err
}

func (r *invitationRepository) Accept(ctx context.Context, invitationID, businessID, userID int64, role, ip, userAgent string) (*domain.BusinessUser, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Conditional update first: the row count detects a concurrent accept
	// that slipped past the service-level is_used check.
	const claim = `
		UPDATE invitations
		SET is_used = true,
		    status = 'accepted',
		    used_at = now(),
		    used_by = $2,
		    accept_ip = $3,
		    accept_user_agent = $4,
		    updated_at = now()
		WHERE id = $1 AND is_used = false`

	tag, err := tx.Exec(ctx, claim, invitationID, userID, ip, userAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to claim invitation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrAlreadyUsed
	}

	const insert = `
		INSERT INTO business_users (business_id, user_id, role, status, joined_at)
		VALUES ($1, $2, $3, 'pending', now())
		RETURNING id, business_id, user_id, role, status, joined_at, created_at, updated_at`

	var bu domain.BusinessUser
	err = tx.QueryRow(ctx, insert, businessID, userID, role).Scan(
		&bu.ID, &bu.BusinessID, &bu.UserID, &bu.Role, &bu.Status, &bu.JoinedAt, &bu.CreatedAt, &bu.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrAlreadyMember
		}
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit accept: %w", err)
	}
	return &bu, nil
}

func (r *invitationRepository) Cancel(ctx context.Context, id int64) (*domain.Invitation, error) {
	const q = `
		UPDATE invitations
		SET status = 'cancelled', updated_at = now()
		WHERE id = $1
		RETURNING ` + invitationColumns

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanInvitation(r.pool.QueryRow(ctx, q, id))
}

func (r *invitationRepository) Resend(ctx context.Context, id int64, expiresAt time.Time) (*domain.Invitation, error) {
	const q = `
		UPDATE invitations
		SET status = 'pending',
		    expired_at = $2,
		    is_used = false,
		    used_at = NULL,
		    used_by = NULL,
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + invitationColumns

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanInvitation(r.pool.QueryRow(ctx, q, id, expiresAt))
}

func (r *invitationRepository) Expire(ctx context.Context, id int64) (*domain.Invitation, error) {
	const q = `
		UPDATE invitations
		SET status = 'expired', expired_at = now(), updated_at = now()
		WHERE id = $1
		RETURNING ` + invitationColumns

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanInvitation(r.pool.QueryRow(ctx, q, id))
}

func (r *invitationRepository) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM invitations WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *invitationRepository) ListByBusiness(ctx context.Context, businessID int64, status *domain.InvitationStatus, limit, offset int) ([]domain.InvitationListItem, error) {
	q := `
		SELECT i.id, i.business_user_id, i.invitation_code, i.role, i.status, i.is_used,
		       i.expired_at, i.used_at, i.used_by, i.created_at, i.updated_at,
		       inviter.name, acceptor.name
		FROM invitations i
		JOIN business_users bu ON bu.id = i.business_user_id
		JOIN users inviter ON inviter.id = bu.user_id
		LEFT JOIN users acceptor ON acceptor.id = i.used_by
		WHERE bu.business_id = $1`

	args := []any{businessID}
	if status != nil {
		q += ` AND i.status = $2`
		args = append(args, *status)
	}
	q += fmt.Sprintf(` ORDER BY i.created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.InvitationListItem{}
	for rows.Next() {
		var it domain.InvitationListItem
		err := rows.Scan(
			&it.ID, &it.BusinessUserID, &it.Code, &it.Role, &it.Status, &it.IsUsed,
			&it.ExpiresAt, &it.UsedAt, &it.UsedBy, &it.CreatedAt, &it.UpdatedAt,
			&it.InviterName, &it.AcceptorName,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
