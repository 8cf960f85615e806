package memstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pqrs_dashboard/backend/internal/models"
	"github.com/pqrs_dashboard/backend/internal/store"
)

type queries struct {
	st       *state
	readOnly bool
}

func (q *queries) writable() error {
	if q.readOnly {
		return errReadOnly
	}
	return nil
}

func (q *queries) GetEntity(_ context.Context, id string) (models.Entity, error) {
	e, ok := q.st.entities[id]
	if !ok {
		return models.Entity{}, store.ErrEntityNotFound
	}
	return e, nil
}

func (q *queries) ListEntities(context.Context) ([]models.Entity, error) {
	out := make([]models.Entity, 0, len(q.st.entities))
	for _, e := range q.st.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (q *queries) InsertEntity(_ context.Context, entity models.Entity, consecutive models.EntityConsecutive) error {
	if err := q.writable(); err != nil {
		return err
	}
	for _, c := range q.st.consecutives {
		if c.Code == consecutive.Code {
			return store.ErrCodeTaken
		}
	}
	q.st.entities[entity.ID] = entity
	consecutive.EntityID = entity.ID
	q.st.consecutives[entity.ID] = consecutive
	return nil
}

func (q *queries) GetDepartment(_ context.Context, id string) (models.Department, error) {
	d, ok := q.st.departments[id]
	if !ok {
		return models.Department{}, store.ErrDepartmentNotFound
	}
	if cfg, ok := q.st.configs[id]; ok {
		d.Config = &cfg
	}
	return d, nil
}

func (q *queries) ListDepartments(ctx context.Context, entityID, memberID string) ([]models.Department, error) {
	only := ""
	if memberID != "" {
		u, ok := q.st.users[memberID]
		if !ok || u.DepartmentID == nil {
			return []models.Department{}, nil
		}
		only = *u.DepartmentID
	}
	out := []models.Department{}
	for id, d := range q.st.departments {
		if d.EntityID != entityID || (only != "" && id != only) {
			continue
		}
		d, _ = q.GetDepartment(ctx, id)
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (q *queries) InsertDepartment(_ context.Context, dept models.Department, cfg models.PQRConfig) error {
	if err := q.writable(); err != nil {
		return err
	}
	if _, ok := q.st.entities[dept.EntityID]; !ok {
		return store.ErrEntityNotFound
	}
	dept.Config = nil
	q.st.departments[dept.ID] = dept
	cfg.DepartmentID = dept.ID
	q.st.configs[dept.ID] = cfg
	return nil
}

func (q *queries) GetPQRConfig(_ context.Context, departmentID string) (models.PQRConfig, error) {
	cfg, ok := q.st.configs[departmentID]
	if !ok {
		return models.PQRConfig{}, store.ErrConfigNotFound
	}
	return cfg, nil
}

func (q *queries) UpdatePQRConfig(_ context.Context, departmentID string, maxResponseTime int) (models.PQRConfig, error) {
	if err := q.writable(); err != nil {
		return models.PQRConfig{}, err
	}
	cfg, ok := q.st.configs[departmentID]
	if !ok {
		return models.PQRConfig{}, store.ErrConfigNotFound
	}
	cfg.MaxResponseTime = maxResponseTime
	q.st.configs[departmentID] = cfg
	return cfg, nil
}

func (q *queries) GetUser(_ context.Context, id string) (models.User, error) {
	u, ok := q.st.users[id]
	if !ok {
		return models.User{}, store.ErrUserNotFound
	}
	return q.withDepartmentName(u), nil
}

func (q *queries) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	for _, u := range q.st.users {
		if strings.EqualFold(u.Email, email) {
			return q.withDepartmentName(u), nil
		}
	}
	return models.User{}, store.ErrUserNotFound
}

func (q *queries) withDepartmentName(u models.User) models.User {
	if u.DepartmentID != nil {
		if d, ok := q.st.departments[*u.DepartmentID]; ok {
			u.DepartmentName = d.Name
		}
	}
	return u
}

func (q *queries) ListStaff(_ context.Context, entityID string) ([]models.User, error) {
	out := []models.User{}
	for _, u := range q.st.users {
		if u.EntityID != entityID || (u.Role != models.RoleEmployee && u.Role != models.RoleAdmin) {
			continue
		}
		out = append(out, q.withDepartmentName(u))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (q *queries) ListActiveEmployees(_ context.Context, entityID string) ([]models.User, error) {
	out := []models.User{}
	for _, u := range q.st.users {
		if u.EntityID != entityID || u.Role != models.RoleEmployee || !u.IsActive {
			continue
		}
		out = append(out, q.withDepartmentName(u))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FirstName == out[j].FirstName {
			return out[i].ID < out[j].ID
		}
		return out[i].FirstName < out[j].FirstName
	})
	return out, nil
}

func (q *queries) InsertUser(_ context.Context, user models.User) error {
	if err := q.writable(); err != nil {
		return err
	}
	for _, u := range q.st.users {
		if strings.EqualFold(u.Email, user.Email) {
			return store.ErrEmailTaken
		}
	}
	user.DepartmentName = ""
	q.st.users[user.ID] = user
	return nil
}

func (q *queries) UpdateUserName(_ context.Context, id, firstName, lastName string, at time.Time) (models.User, error) {
	if err := q.writable(); err != nil {
		return models.User{}, err
	}
	u, ok := q.st.users[id]
	if !ok {
		return models.User{}, store.ErrUserNotFound
	}
	u.FirstName = firstName
	u.LastName = lastName
	u.UpdatedAt = at
	q.st.users[id] = u
	return q.withDepartmentName(u), nil
}

func (q *queries) NextConsecutive(_ context.Context, entityID string) (string, int64, error) {
	if err := q.writable(); err != nil {
		return "", 0, err
	}
	c, ok := q.st.consecutives[entityID]
	if !ok {
		return "", 0, store.ErrConsecutiveNotFound
	}
	current := c.Consecutive
	c.Consecutive++
	q.st.consecutives[entityID] = c
	return c.Code, current, nil
}

func (q *queries) InsertPQR(_ context.Context, pqr models.PQRS) error {
	if err := q.writable(); err != nil {
		return err
	}
	if _, ok := q.st.departments[pqr.DepartmentID]; !ok {
		return store.ErrDepartmentNotFound
	}
	for _, p := range q.st.pqrs {
		if p.EntityID == pqr.EntityID && p.ConsecutiveCode == pqr.ConsecutiveCode {
			return store.ErrConsecutiveTaken
		}
	}
	pqr.CustomFields = append([]models.CustomFieldValue(nil), pqr.CustomFields...)
	pqr.Attachments = append([]models.Attachment(nil), pqr.Attachments...)
	pqr.Department, pqr.Creator, pqr.AssignedTo = nil, nil, nil
	q.st.pqrs[pqr.ID] = pqr
	return nil
}

func (q *queries) GetPQR(_ context.Context, id string) (models.PQRS, error) {
	p, ok := q.st.pqrs[id]
	if !ok {
		return models.PQRS{}, store.ErrPQRNotFound
	}
	return q.expand(p), nil
}

func (q *queries) LockPQR(ctx context.Context, id string) (models.PQRS, error) {
	return q.GetPQR(ctx, id)
}

func (q *queries) expand(p models.PQRS) models.PQRS {
	if d, ok := q.st.departments[p.DepartmentID]; ok {
		ref := models.DepartmentRef{ID: d.ID, Name: d.Name, EntityID: d.EntityID}
		if e, ok := q.st.entities[d.EntityID]; ok {
			ref.EntityName = e.Name
		}
		p.Department = &ref
	}
	p.Creator = q.userRef(p.CreatorID)
	p.AssignedTo = q.userRef(p.AssignedToID)
	p.CustomFields = append([]models.CustomFieldValue{}, p.CustomFields...)
	p.Attachments = append([]models.Attachment{}, p.Attachments...)
	return p
}

func (q *queries) userRef(id *string) *models.UserRef {
	if id == nil {
		return nil
	}
	u, ok := q.st.users[*id]
	if !ok {
		return nil
	}
	return &models.UserRef{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email}
}

func (q *queries) ListPQRs(_ context.Context, f models.PQRFilter) ([]models.PQRS, error) {
	out := []models.PQRS{}
	for _, p := range q.st.pqrs {
		if f.EntityID != "" && p.EntityID != f.EntityID {
			continue
		}
		if f.DepartmentID != "" && p.DepartmentID != f.DepartmentID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.Type != "" && p.Type != f.Type {
			continue
		}
		if f.StartDate != nil && p.CreatedAt.Before(*f.StartDate) {
			continue
		}
		if f.EndDate != nil && p.CreatedAt.After(*f.EndDate) {
			continue
		}
		out = append(out, q.expand(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ConsecutiveCode > out[j].ConsecutiveCode
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (q *queries) UpdatePQRStatus(_ context.Context, id string, status models.Status, at time.Time) error {
	if err := q.writable(); err != nil {
		return err
	}
	p, ok := q.st.pqrs[id]
	if !ok {
		return store.ErrPQRNotFound
	}
	p.Status = status
	p.UpdatedAt = at
	q.st.pqrs[id] = p
	return nil
}

func (q *queries) UpdatePQRAssignment(_ context.Context, id string, assignedToID *string, status models.Status, at time.Time) error {
	if err := q.writable(); err != nil {
		return err
	}
	p, ok := q.st.pqrs[id]
	if !ok {
		return store.ErrPQRNotFound
	}
	p.AssignedToID = assignedToID
	p.Status = status
	p.UpdatedAt = at
	q.st.pqrs[id] = p
	return nil
}

func (q *queries) InsertStatusHistory(_ context.Context, entry models.StatusHistoryEntry) error {
	if err := q.writable(); err != nil {
		return err
	}
	if _, ok := q.st.pqrs[entry.PQRID]; !ok {
		return store.ErrPQRNotFound
	}
	entry.UserName = ""
	q.st.history = append(q.st.history, entry)
	return nil
}

func (q *queries) ListStatusHistory(_ context.Context, pqrID string) ([]models.StatusHistoryEntry, error) {
	type indexed struct {
		models.StatusHistoryEntry
		seq int
	}
	var rows []indexed
	for i, h := range q.st.history {
		if h.PQRID != pqrID {
			continue
		}
		if h.UserID != nil {
			if u, ok := q.st.users[*h.UserID]; ok {
				h.UserName = u.DisplayName()
			}
		}
		rows = append(rows, indexed{h, i})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].seq > rows[j].seq
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	out := make([]models.StatusHistoryEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.StatusHistoryEntry)
	}
	return out, nil
}

func (q *queries) InsertComment(_ context.Context, c models.PQRComment) error {
	if err := q.writable(); err != nil {
		return err
	}
	if _, ok := q.st.pqrs[c.PQRID]; !ok {
		return store.ErrPQRNotFound
	}
	c.User = nil
	q.st.comments = append(q.st.comments, c)
	return nil
}

func (q *queries) ListComments(_ context.Context, pqrID string) ([]models.PQRComment, error) {
	out := []models.PQRComment{}
	for _, c := range q.st.comments {
		if c.PQRID != pqrID {
			continue
		}
		c.User = q.userRef(c.UserID)
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (q *queries) EnqueueNotification(_ context.Context, n models.Notification) error {
	if err := q.writable(); err != nil {
		return err
	}
	if n.Status == "" {
		n.Status = models.NotificationPending
	}
	if n.NextAttemptAt.IsZero() {
		n.NextAttemptAt = n.CreatedAt
	}
	q.st.notifications = append(q.st.notifications, n)
	return nil
}

func (q *queries) ClaimNotifications(_ context.Context, limit int, now time.Time, lease time.Duration) ([]models.Notification, error) {
	if err := q.writable(); err != nil {
		return nil, err
	}
	due := []int{}
	for i, n := range q.st.notifications {
		switch n.Status {
		case models.NotificationPending, models.NotificationFailed, models.NotificationSending:
			if !n.NextAttemptAt.After(now) {
				due = append(due, i)
			}
		}
	}
	sort.SliceStable(due, func(a, b int) bool {
		return q.st.notifications[due[a]].NextAttemptAt.Before(q.st.notifications[due[b]].NextAttemptAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	out := make([]models.Notification, 0, len(due))
	for _, i := range due {
		q.st.notifications[i].Status = models.NotificationSending
		q.st.notifications[i].NextAttemptAt = now.Add(lease)
		out = append(out, q.st.notifications[i])
	}
	return out, nil
}

func (q *queries) MarkNotificationSent(_ context.Context, id string, at time.Time) error {
	if err := q.writable(); err != nil {
		return err
	}
	for i := range q.st.notifications {
		if q.st.notifications[i].ID == id {
			q.st.notifications[i].Status = models.NotificationSent
			q.st.notifications[i].Attempts++
			q.st.notifications[i].LastError = ""
			q.st.notifications[i].SentAt = &at
			return nil
		}
	}
	return store.ErrNotificationMissing
}

func (q *queries) MarkNotificationFailed(_ context.Context, id, lastError string, dead bool, retryAt time.Time) error {
	if err := q.writable(); err != nil {
		return err
	}
	for i := range q.st.notifications {
		if q.st.notifications[i].ID == id {
			q.st.notifications[i].Attempts++
			q.st.notifications[i].LastError = lastError
			q.st.notifications[i].NextAttemptAt = retryAt
			q.st.notifications[i].Status = models.NotificationFailed
			if dead {
				q.st.notifications[i].Status = models.NotificationDead
			}
			return nil
		}
	}
	return store.ErrNotificationMissing
}

// Notifications returns a snapshot of the outbox, oldest first.
func (s *Store) Notifications() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Notification(nil), s.st.notifications...)
}
