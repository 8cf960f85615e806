package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/pqrs_dashboard/backend/internal/auth"
	"github.com/pqrs_dashboard/backend/internal/memstore"
	"github.com/pqrs_dashboard/backend/internal/models"
	"github.com/pqrs_dashboard/backend/internal/notify"
	"github.com/pqrs_dashboard/backend/internal/store"
)

const (
	entityAcme  = "ent-acme"
	entityOther = "ent-other"
	deptLegal   = "dept-legal"
	deptFinance = "dept-finance"
	deptOther   = "dept-other"
	userAdmin   = "user-admin"
	userLegal   = "user-legal"
	userFinance = "user-finance"
	userClient  = "user-client"
	userOutside = "user-outside"
)

type fixture struct {
	store  *memstore.Store
	mailer *fakeMailer
	deps   Deps
	clock  *clock

	lifecycle *Lifecycle
	intake    *Intake
	directory *Directory
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func strPtr(s string) *string { return &s }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memstore.New()
	c := &clock{t: time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)}
	var seq int64
	f := &fixture{store: s, mailer: &fakeMailer{}, clock: c}
	f.deps = Deps{
		Store:      s,
		Mailer:     f.mailer,
		NotifyMode: NotifyOutbox,
		PublicURL:  "https://pqrs.test",
		Now:        c.Now,
		NewID:      func() string { return fmt.Sprintf("id-%d", atomic.AddInt64(&seq, 1)) },
		Logger:     zerolog.Nop(),
	}
	f.rebuild()

	hash, err := auth.HashPassword("secret1")
	require.NoError(t, err)
	ctx := context.Background()
	err = s.WithTx(ctx, func(q store.Queries) error {
		if err := q.InsertEntity(ctx, models.Entity{ID: entityAcme, Name: "Acme", Email: "contacto@acme.test"},
			models.EntityConsecutive{ID: "cons-acme", Code: "ACM", Consecutive: 5}); err != nil {
			return err
		}
		if err := q.InsertEntity(ctx, models.Entity{ID: entityOther, Name: "Otra", Email: ""},
			models.EntityConsecutive{ID: "cons-other", Code: "OTR", Consecutive: 1}); err != nil {
			return err
		}
		for _, d := range []models.Department{
			{ID: deptLegal, Name: "Legal", EntityID: entityAcme},
			{ID: deptFinance, Name: "Finance", EntityID: entityAcme},
			{ID: deptOther, Name: "General", EntityID: entityOther},
		} {
			if err := q.InsertDepartment(ctx, d, models.PQRConfig{ID: "cfg-" + d.ID, MaxResponseTime: 15}); err != nil {
				return err
			}
		}
		users := []models.User{
			{ID: userAdmin, Email: "admin@acme.test", FirstName: "Ada", LastName: "Admin", Role: models.RoleAdmin, EntityID: entityAcme},
			{ID: userLegal, Email: "lucia@acme.test", FirstName: "Lucía", LastName: "Legal", Role: models.RoleEmployee, EntityID: entityAcme, DepartmentID: strPtr(deptLegal)},
			{ID: userFinance, Email: "fer@acme.test", FirstName: "Fernando", LastName: "Finanzas", Role: models.RoleEmployee, EntityID: entityAcme, DepartmentID: strPtr(deptFinance)},
			{ID: userClient, Email: "cliente@mail.test", FirstName: "Carla", Role: models.RoleClient, EntityID: entityAcme},
			{ID: userOutside, Email: "otro@otra.test", FirstName: "Oscar", Role: models.RoleEmployee, EntityID: entityOther, DepartmentID: strPtr(deptOther)},
		}
		for i, u := range users {
			u.PasswordHash = hash
			u.IsActive = true
			u.CreatedAt = c.Now().Add(time.Duration(i) * time.Minute)
			if err := q.InsertUser(ctx, u); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) rebuild() {
	f.lifecycle = &Lifecycle{Deps: f.deps}
	f.intake = &Intake{Deps: f.deps}
	f.directory = &Directory{Deps: f.deps, DefaultMaxResponseDays: 15}
}

func (f *fixture) withStore(s store.Store) {
	f.deps.Store = s
	f.rebuild()
}

func adminActor() Actor {
	return Actor{UserID: userAdmin, Role: models.RoleAdmin, EntityID: entityAcme}
}

func (f *fixture) create(t *testing.T, actor Actor, dept string) models.PQRS {
	t.Helper()
	p, err := f.intake.Create(context.Background(), actor, CreateInput{
		Type:         models.TypeComplaint,
		DepartmentID: dept,
		Subject:      "Alumbrado",
		Description:  "Poste dañado",
		CustomFields: []CustomFieldInput{{Name: "Dirección", Value: "Calle 1", Required: true}},
		Attachments:  []AttachmentInput{{Name: "foto.jpg", URL: "/api/files/foto.jpg", Type: "image/jpeg", Size: 10}},
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) historyLen(t *testing.T, pqrID string) int {
	t.Helper()
	h, err := f.lifecycle.History(context.Background(), adminActor(), pqrID)
	require.NoError(t, err)
	return len(h)
}

// faultyStore hides selected configuration rows.
type faultyStore struct {
	store.Store
	noConfigFor  string
	noCounterFor string
	failInsert   bool
}

func (s faultyStore) WithTx(ctx context.Context, fn func(q store.Queries) error) error {
	return s.Store.WithTx(ctx, func(q store.Queries) error {
		return fn(faultyQueries{Queries: q, s: s})
	})
}

type faultyQueries struct {
	store.Queries
	s faultyStore
}

func (q faultyQueries) GetPQRConfig(ctx context.Context, departmentID string) (models.PQRConfig, error) {
	if departmentID == q.s.noConfigFor {
		return models.PQRConfig{}, store.ErrConfigNotFound
	}
	return q.Queries.GetPQRConfig(ctx, departmentID)
}

func (q faultyQueries) NextConsecutive(ctx context.Context, entityID string) (string, int64, error) {
	if entityID == q.s.noCounterFor {
		return "", 0, store.ErrConsecutiveNotFound
	}
	return q.Queries.NextConsecutive(ctx, entityID)
}

var errInsertFailed = errors.New("disk full")

func (q faultyQueries) InsertStatusHistory(ctx context.Context, e models.StatusHistoryEntry) error {
	if q.s.failInsert {
		return errInsertFailed
	}
	return q.Queries.InsertStatusHistory(ctx, e)
}
