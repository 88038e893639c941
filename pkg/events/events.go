package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/luminara-labs/bizhub/pkg/logger"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event subjects
const (
	UserRegistered = "user.registered"
	UserVerified   = "user.verified"

	InvitationCreated   = "invitation.created"
	InvitationAccepted  = "invitation.accepted"
	InvitationCancelled = "invitation.cancelled"
	InvitationExpired   = "invitation.expired"

	MembershipApproved = "membership.approved"
)

// Event payloads
type UserRegisteredEvent struct {
	UserID       int64     `json:"user_id"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
}

type UserVerifiedEvent struct {
	UserID     int64     `json:"user_id"`
	Email      string    `json:"email"`
	VerifiedAt time.Time `json:"verified_at"`
}

type InvitationCreatedEvent struct {
	InvitationID int64     `json:"invitation_id"`
	BusinessID   int64     `json:"business_id"`
	Role         string    `json:"role"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

type InvitationAcceptedEvent struct {
	InvitationID int64     `json:"invitation_id"`
	BusinessID   int64     `json:"business_id"`
	UserID       int64     `json:"user_id"`
	Role         string    `json:"role"`
	AcceptedAt   time.Time `json:"accepted_at"`
}

type InvitationCancelledEvent struct {
	InvitationID int64     `json:"invitation_id"`
	BusinessID   int64     `json:"business_id"`
	CancelledAt  time.Time `json:"cancelled_at"`
}

type MembershipApprovedEvent struct {
	BusinessUserID int64     `json:"business_user_id"`
	BusinessID     int64     `json:"business_id"`
	UserID         int64     `json:"user_id"`
	ApprovedAt     time.Time `json:"approved_at"`
}
