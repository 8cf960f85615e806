package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pqrs_dashboard/backend/internal/models"
	"github.com/pqrs_dashboard/backend/internal/notify"
	"github.com/pqrs_dashboard/backend/internal/store"
	"github.com/pqrs_dashboard/backend/internal/utils"
)

var errNoEntityEmail = errors.New("no contact email configured for entity")

type CustomFieldInput struct {
	Name        string
	Value       string
	Type        string
	Placeholder string
	Required    bool
}

type AttachmentInput struct {
	Name string
	URL  string
	Type string
	Size int64
}

type CreateInput struct {
	Type         models.PQRType
	DepartmentID string
	// EntityID is optional; when present it must own DepartmentID.
	EntityID     string
	Anonymous    bool
	Private      bool
	Subject      string
	Description  string
	CustomFields []CustomFieldInput
	Attachments  []AttachmentInput
}

func (in CreateInput) validate() error {
	if !in.Type.Valid() {
		return validationf("invalid type %q", in.Type)
	}
	if strings.TrimSpace(in.DepartmentID) == "" {
		return validationf("departmentId is required")
	}
	for i, f := range in.CustomFields {
		if strings.TrimSpace(f.Name) == "" {
			return validationf("customFields[%d].name is required", i)
		}
		if f.Required && strings.TrimSpace(f.Value) == "" {
			return validationf("custom field %q is required", f.Name)
		}
	}
	for i, a := range in.Attachments {
		if a.Name == "" || a.URL == "" {
			return validationf("attachments[%d] needs name and url", i)
		}
	}
	return nil
}

// Intake files new requests.
type Intake struct {
	Deps
}

// Create writes the request, its consecutive code, custom fields,
// attachments and the initial PENDING history row in one transaction. Any
// failure before commit leaves no trace, the counter included.
//
// In sync notification mode the emails are sent after commit; a failure
// there is returned as *NotificationError carrying the stored request.
func (s *Intake) Create(ctx context.Context, actor Actor, in CreateInput) (models.PQRS, error) {
	if err := in.validate(); err != nil {
		return models.PQRS{}, err
	}

	var (
		out    models.PQRS
		entity models.Entity
		msgs   []notify.Message
	)
	err := s.Store.WithTx(ctx, func(q store.Queries) error {
		dept, err := q.GetDepartment(ctx, in.DepartmentID)
		if err != nil {
			return mapStoreErr(err)
		}
		if actor.Role != models.RoleClient {
			if err := scoped(actor, dept.EntityID, "department"); err != nil {
				return err
			}
		}
		if in.EntityID != "" && in.EntityID != dept.EntityID {
			return validationf("department %s does not belong to entity %s", dept.ID, in.EntityID)
		}

		cfg, err := q.GetPQRConfig(ctx, dept.ID)
		if errors.Is(err, store.ErrConfigNotFound) {
			return fmt.Errorf("%w: department %s has no pqr config", ErrConfigurationMissing, dept.ID)
		}
		if err != nil {
			return err
		}

		prefix, n, err := q.NextConsecutive(ctx, dept.EntityID)
		if errors.Is(err, store.ErrConsecutiveNotFound) {
			return fmt.Errorf("%w: entity %s has no consecutive counter", ErrConfigurationMissing, dept.EntityID)
		}
		if err != nil {
			return err
		}

		entity, err = q.GetEntity(ctx, dept.EntityID)
		if err != nil {
			return mapStoreErr(err)
		}

		var creator *models.User
		if !in.Anonymous && actor.UserID != "" {
			u, err := q.GetUser(ctx, actor.UserID)
			if err != nil {
				return mapStoreErr(err)
			}
			creator = &u
		}

		now := s.now()
		p := models.PQRS{
			ID:              s.id(),
			Type:            in.Type,
			Status:          models.StatusPending,
			ConsecutiveCode: FormatConsecutiveCode(prefix, now.In(s.location()), n),
			EntityID:        dept.EntityID,
			DepartmentID:    dept.ID,
			Anonymous:       in.Anonymous,
			Private:         in.Private,
			Subject:         strings.TrimSpace(in.Subject),
			Description:     strings.TrimSpace(in.Description),
			DueDate:         utils.AddDays(now, cfg.MaxResponseTime),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if creator != nil {
			p.CreatorID = &creator.ID
		}
		for i, f := range in.CustomFields {
			typ := f.Type
			if typ == "" {
				typ = "text"
			}
			p.CustomFields = append(p.CustomFields, models.CustomFieldValue{
				ID: s.id(), PQRID: p.ID, Name: f.Name, Value: f.Value, Type: typ,
				Placeholder: f.Placeholder, Required: f.Required, Position: i,
			})
		}
		for i, a := range in.Attachments {
			p.Attachments = append(p.Attachments, models.Attachment{
				ID: s.id(), PQRID: p.ID, Name: a.Name, URL: a.URL, Type: a.Type, Size: a.Size, Position: i,
			})
		}

		if err := q.InsertPQR(ctx, p); err != nil {
			return mapStoreErr(err)
		}
		if err := q.InsertStatusHistory(ctx, models.StatusHistoryEntry{
			ID:        s.id(),
			PQRID:     p.ID,
			Status:    models.StatusPending,
			Comment:   CommentCreated,
			UserID:    p.CreatorID,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		out, err = q.GetPQR(ctx, p.ID)
		if err != nil {
			return err
		}
		msgs, err = notify.CreationMessages(entity, out, creator, s.PublicURL)
		if err != nil {
			return err
		}
		return s.stage(ctx, q, msgs)
	})
	if err != nil {
		return models.PQRS{}, err
	}

	s.Logger.Info().
		Str("pqr_id", out.ID).
		Str("code", out.ConsecutiveCode).
		Str("entity_id", out.EntityID).
		Msg("pqr created")

	if s.syncDelivery() {
		if entity.Email == "" {
			return out, &NotificationError{PQR: out, Err: errNoEntityEmail}
		}
		if err := s.deliver(ctx, msgs); err != nil {
			return out, &NotificationError{PQR: out, Err: err}
		}
	} else if entity.Email == "" {
		s.Logger.Warn().Str("entity_id", entity.ID).Str("pqr_id", out.ID).Msg("entity has no contact email")
	}
	return out, nil
}
