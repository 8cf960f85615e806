package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pqrs_dashboard/backend/internal/models"
	"github.com/pqrs_dashboard/backend/internal/store"
)

const (
	CommentCreated    = "PQR creada"
	CommentAssigned   = "Asignado a empleado"
	CommentUnassigned = "Asignación removida"
)

// Lifecycle moves requests between statuses and keeps their history.
type Lifecycle struct {
	Deps
}

type TransitionResult struct {
	PQR     models.PQRS               `json:"pqr"`
	History models.StatusHistoryEntry `json:"history"`
}

func actorRef(actor Actor) *string {
	if actor.UserID == "" {
		return nil
	}
	id := actor.UserID
	return &id
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, store.ErrPQRNotFound):
		return notFoundf("pqr not found")
	case errors.Is(err, store.ErrUserNotFound):
		return notFoundf("user not found")
	case errors.Is(err, store.ErrDepartmentNotFound):
		return notFoundf("department not found")
	case errors.Is(err, store.ErrEntityNotFound):
		return notFoundf("entity not found")
	case errors.Is(err, store.ErrEmailTaken), errors.Is(err, store.ErrCodeTaken), errors.Is(err, store.ErrConsecutiveTaken):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func (l *Lifecycle) Get(ctx context.Context, actor Actor, id string) (models.PQRS, error) {
	var out models.PQRS
	err := l.Store.View(ctx, func(q store.Queries) error {
		p, err := q.GetPQR(ctx, id)
		if err != nil {
			return mapStoreErr(err)
		}
		if err := scoped(actor, p.EntityID, "pqr"); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

func (l *Lifecycle) List(ctx context.Context, actor Actor, filter models.PQRFilter) ([]models.PQRS, error) {
	filter.EntityID = actor.EntityID
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, validationf("invalid type %q", filter.Type)
	}
	var out []models.PQRS
	err := l.Store.View(ctx, func(q store.Queries) error {
		var err error
		out, err = q.ListPQRs(ctx, filter)
		return err
	})
	return out, err
}

// Transition sets a new status and appends exactly one history row, both in
// the same transaction. Requesting the current status is rejected with ErrNoOp
// and writes nothing.
func (l *Lifecycle) Transition(ctx context.Context, actor Actor, id string, status models.Status, comment string) (TransitionResult, error) {
	if !status.Valid() {
		return TransitionResult{}, ErrInvalidStatus
	}

	var res TransitionResult
	err := l.Store.WithTx(ctx, func(q store.Queries) error {
		p, err := q.LockPQR(ctx, id)
		if err != nil {
			return mapStoreErr(err)
		}
		if err := scoped(actor, p.EntityID, "pqr"); err != nil {
			return err
		}
		if p.Status == status {
			return ErrNoOp
		}

		now := l.now()
		if err := q.UpdatePQRStatus(ctx, id, status, now); err != nil {
			return mapStoreErr(err)
		}
		entry := models.StatusHistoryEntry{
			ID:        l.id(),
			PQRID:     id,
			Status:    status,
			Comment:   comment,
			UserID:    actorRef(actor),
			CreatedAt: now,
		}
		if err := q.InsertStatusHistory(ctx, entry); err != nil {
			return err
		}
		if entry.UserName, err = authorName(ctx, q, actor); err != nil {
			return err
		}

		p.Status = status
		p.UpdatedAt = now
		res = TransitionResult{PQR: p, History: entry}
		return nil
	})
	if err != nil {
		return TransitionResult{}, err
	}
	l.Logger.Info().Str("pqr_id", id).Str("status", string(status)).Str("actor", actor.UserID).Msg("pqr status changed")
	return res, nil
}

// History lists status changes newest first.
func (l *Lifecycle) History(ctx context.Context, actor Actor, id string) ([]models.StatusHistoryEntry, error) {
	var out []models.StatusHistoryEntry
	err := l.Store.View(ctx, func(q store.Queries) error {
		p, err := q.GetPQR(ctx, id)
		if err != nil {
			return mapStoreErr(err)
		}
		if err := scoped(actor, p.EntityID, "pqr"); err != nil {
			return err
		}
		out, err = q.ListStatusHistory(ctx, id)
		return err
	})
	return out, err
}

func authorName(ctx context.Context, q store.Queries, actor Actor) (string, error) {
	ref, err := author(ctx, q, actor)
	if ref == nil {
		return "", err
	}
	return models.DisplayName(ref.FirstName, ref.LastName), nil
}

// author resolves the acting user. Anonymous actors and users that no longer
// exist have no author.
func author(ctx context.Context, q store.Queries, actor Actor) (*models.UserRef, error) {
	if actor.UserID == "" {
		return nil, nil
	}
	u, err := q.GetUser(ctx, actor.UserID)
	if errors.Is(err, store.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.UserRef{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email}, nil
}

// AddComment appends a response to a request on behalf of the session user.
func (l *Lifecycle) AddComment(ctx context.Context, actor Actor, id, text string) (models.PQRComment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.PQRComment{}, validationf("text is required")
	}

	var out models.PQRComment
	err := l.Store.WithTx(ctx, func(q store.Queries) error {
		p, err := q.GetPQR(ctx, id)
		if err != nil {
			return mapStoreErr(err)
		}
		if err := scoped(actor, p.EntityID, "pqr"); err != nil {
			return err
		}
		c := models.PQRComment{
			ID:        l.id(),
			PQRID:     p.ID,
			Text:      text,
			UserID:    actorRef(actor),
			CreatedAt: l.now(),
		}
		if err := q.InsertComment(ctx, c); err != nil {
			return mapStoreErr(err)
		}
		if c.User, err = author(ctx, q, actor); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return models.PQRComment{}, err
	}
	l.Logger.Info().Str("pqr_id", id).Str("actor", actor.UserID).Msg("pqr comment added")
	return out, nil
}

// ListComments returns the responses of a request oldest first.
func (l *Lifecycle) ListComments(ctx context.Context, actor Actor, id string) ([]models.PQRComment, error) {
	var out []models.PQRComment
	err := l.Store.View(ctx, func(q store.Queries) error {
		p, err := q.GetPQR(ctx, id)
		if err != nil {
			return mapStoreErr(err)
		}
		if err := scoped(actor, p.EntityID, "pqr"); err != nil {
			return err
		}
		out, err = q.ListComments(ctx, id)
		return err
	})
	return out, err
}
