package service

import (
	"context"

	"github.com/pqrs_dashboard/backend/internal/models"
	"github.com/pqrs_dashboard/backend/internal/notify"
	"github.com/pqrs_dashboard/backend/internal/store"
)

// CheckAssignee reports whether a user may take a request: same entity and
// same department, and active.
func CheckAssignee(pqr models.PQRS, user models.User) error {
	if user.EntityID != pqr.EntityID || user.DepartmentID == nil || *user.DepartmentID != pqr.DepartmentID {
		return ErrDepartmentMismatch
	}
	if !user.IsActive {
		return validationf("employee %s is inactive", user.ID)
	}
	return nil
}

// AssignedStatus is the status forced by an assignment change.
func AssignedStatus(assignedToID *string) models.Status {
	if assignedToID == nil {
		return models.StatusPending
	}
	return models.StatusInProgress
}

// Assign sets or clears the assignee. Assigning forces IN_PROGRESS, clearing
// forces PENDING, and either way one history row is appended.
func (l *Lifecycle) Assign(ctx context.Context, actor Actor, id string, assignedToID *string) (models.PQRS, error) {
	if assignedToID != nil && *assignedToID == "" {
		assignedToID = nil
	}

	var (
		out  models.PQRS
		msgs []notify.Message
	)
	err := l.Store.WithTx(ctx, func(q store.Queries) error {
		p, err := q.LockPQR(ctx, id)
		if err != nil {
			return mapStoreErr(err)
		}
		if err := scoped(actor, p.EntityID, "pqr"); err != nil {
			return err
		}

		comment := CommentUnassigned
		var assignee models.User
		if assignedToID != nil {
			assignee, err = q.GetUser(ctx, *assignedToID)
			if err != nil {
				return mapStoreErr(err)
			}
			if err := CheckAssignee(p, assignee); err != nil {
				return err
			}
			comment = CommentAssigned
		}

		status := AssignedStatus(assignedToID)
		now := l.now()
		if err := q.UpdatePQRAssignment(ctx, id, assignedToID, status, now); err != nil {
			return mapStoreErr(err)
		}
		if err := q.InsertStatusHistory(ctx, models.StatusHistoryEntry{
			ID:        l.id(),
			PQRID:     id,
			Status:    status,
			Comment:   comment,
			UserID:    actorRef(actor),
			CreatedAt: now,
		}); err != nil {
			return err
		}

		out, err = q.GetPQR(ctx, id)
		if err != nil {
			return err
		}
		if assignedToID != nil && assignee.Email != "" {
			msg, err := notify.AssignmentMessage(out, assignee, l.PublicURL)
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		return l.stage(ctx, q, msgs)
	})
	if err != nil {
		return models.PQRS{}, err
	}

	// The request itself never fails on an assignment email.
	if err := l.deliver(ctx, msgs); err != nil {
		l.Logger.Warn().Err(err).Str("pqr_id", id).Msg("assignment email not delivered")
	}
	l.Logger.Info().Str("pqr_id", id).Str("status", string(out.Status)).Str("actor", actor.UserID).Msg("pqr assignment changed")
	return out, nil
}
