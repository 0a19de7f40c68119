// Package events fans new notifications out to live sessions over NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/theleywin/Collab-Nest/src/config"
	"github.com/theleywin/Collab-Nest/src/models"
)

const EventNotificationCreated = "notification.created"

// Publisher is told about every notification after its transaction commits.
type Publisher interface {
	NotificationCreated(ctx context.Context, n models.Notification) error
	Close() error
}

// Envelope is the message body on the wire.
type Envelope struct {
	Event        string              `json:"event"`
	AccountID    uint                `json:"accountId"`
	Notification models.Notification `json:"notification"`
	SentAt       time.Time           `json:"sentAt"`
}

// Subject is where the notifications of one account are published.
func Subject(prefix string, accountID uint) string {
	return fmt.Sprintf("%s.%d", prefix, accountID)
}

func encode(n models.Notification) ([]byte, error) {
	return json.Marshal(Envelope{
		Event:        EventNotificationCreated,
		AccountID:    n.AccountID,
		Notification: n,
		SentAt:       time.Now().UTC(),
	})
}

// NATSPublisher publishes core NATS messages; delivery is best effort.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

func NewNATSPublisher(cfg config.NATSConfig) (*NATSPublisher, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
		nats.Timeout(3*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSPublisher{nc: nc, prefix: cfg.SubjectPrefix}, nil
}

func (p *NATSPublisher) NotificationCreated(ctx context.Context, n models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(n)
	if err != nil {
		return fmt.Errorf("encode notification event: %w", err)
	}

	msg := nats.NewMsg(Subject(p.prefix, n.AccountID))
	msg.Header.Set("Event-Type", EventNotificationCreated)
	msg.Data = data
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}

// NopPublisher drops events; used when NATS is not configured.
type NopPublisher struct{}

func (NopPublisher) NotificationCreated(context.Context, models.Notification) error { return nil }
func (NopPublisher) Close() error                                                  { return nil }
