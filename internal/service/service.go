package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pqrs_dashboard/backend/internal/models"
	"github.com/pqrs_dashboard/backend/internal/notify"
	"github.com/pqrs_dashboard/backend/internal/store"
)

const (
	NotifyOutbox = "outbox"
	NotifySync   = "sync"
)

// Actor is the caller of an operation. EntityID is the entity in effect for
// the call, which for a SUPER_ADMIN may differ from their home entity.
type Actor struct {
	UserID   string
	Role     models.Role
	EntityID string
}

// Deps carries what every service needs. Zero values fall back to UTC wall
// clock time, random UUIDs and outbox delivery.
type Deps struct {
	Store      store.Store
	Mailer     notify.Mailer
	NotifyMode string
	PublicURL  string
	// Location decides the calendar date printed in consecutive codes.
	Location *time.Location
	Now      func() time.Time
	NewID    func() string
	Logger   zerolog.Logger
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

func (d Deps) location() *time.Location {
	if d.Location != nil {
		return d.Location
	}
	return time.UTC
}

func (d Deps) id() string {
	if d.NewID != nil {
		return d.NewID()
	}
	return uuid.NewString()
}

func (d Deps) syncDelivery() bool {
	return d.NotifyMode == NotifySync
}

// stage writes messages to the outbox inside the caller's transaction. In
// sync mode nothing is staged and the caller delivers after commit.
func (d Deps) stage(ctx context.Context, q store.Queries, msgs []notify.Message) error {
	if d.syncDelivery() {
		return nil
	}
	now := d.now()
	for _, m := range msgs {
		if m.To == "" {
			d.Logger.Warn().Str("kind", m.Kind).Str("pqr_id", m.PQRID).Msg("notification without recipient skipped")
			continue
		}
		if err := q.EnqueueNotification(ctx, notifyRow(d.id(), m, now)); err != nil {
			return err
		}
	}
	return nil
}

// deliver sends messages immediately in sync mode and returns the first
// failure. Later messages are still attempted.
func (d Deps) deliver(ctx context.Context, msgs []notify.Message) error {
	if !d.syncDelivery() || d.Mailer == nil {
		return nil
	}
	var first error
	for _, m := range msgs {
		err := d.Mailer.Send(ctx, m)
		if err != nil {
			d.Logger.Error().Err(err).Str("kind", m.Kind).Str("pqr_id", m.PQRID).Msg("notification failed")
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func notifyRow(id string, m notify.Message, at time.Time) models.Notification {
	return models.Notification{
		ID:        id,
		Kind:      m.Kind,
		PQRID:     m.PQRID,
		Recipient: m.To,
		Subject:   m.Subject,
		Body:      m.Body,
		Status:    models.NotificationPending,
		CreatedAt: at,
	}
}

// scoped rejects records outside the caller's entity as missing, so other
// tenants' ids are indistinguishable from unknown ones.
func scoped(actor Actor, entityID string, what string) error {
	if actor.EntityID != "" && actor.EntityID != entityID {
		return notFoundf("%s not found", what)
	}
	return nil
}
