package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pqrs_dashboard/backend/internal/models"
	"github.com/pqrs_dashboard/backend/internal/store"
)

func seedEntity(t *testing.T, s *Store) {
	t.Helper()
	err := s.WithTx(context.Background(), func(q store.Queries) error {
		return q.InsertEntity(context.Background(),
			models.Entity{ID: "e1", Name: "Alcaldía", Email: "contacto@alcaldia.test"},
			models.EntityConsecutive{ID: "c1", Code: "ALC", Consecutive: 1})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := New()
	seedEntity(t, s)
	boom := errors.New("boom")

	err := s.WithTx(context.Background(), func(q store.Queries) error {
		if _, _, err := q.NextConsecutive(context.Background(), "e1"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	var n int64
	_ = s.WithTx(context.Background(), func(q store.Queries) error {
		_, v, err := q.NextConsecutive(context.Background(), "e1")
		n = v
		return err
	})
	if n != 1 {
		t.Fatalf("expected counter untouched at 1, got %d", n)
	}
}

func TestNextConsecutiveMissingRow(t *testing.T) {
	s := New()
	err := s.WithTx(context.Background(), func(q store.Queries) error {
		_, _, err := q.NextConsecutive(context.Background(), "missing")
		return err
	})
	if !errors.Is(err, store.ErrConsecutiveNotFound) {
		t.Fatalf("expected ErrConsecutiveNotFound, got %v", err)
	}
}

func TestNextConsecutiveConcurrent(t *testing.T) {
	s := New()
	seedEntity(t, s)

	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := map[int64]bool{}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.WithTx(context.Background(), func(q store.Queries) error {
				_, v, err := q.NextConsecutive(context.Background(), "e1")
				if err != nil {
					return err
				}
				mu.Lock()
				seen[v] = true
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if len(seen) != workers {
		t.Fatalf("expected %d distinct values, got %d", workers, len(seen))
	}
	for i := int64(1); i <= workers; i++ {
		if !seen[i] {
			t.Fatalf("missing value %d", i)
		}
	}
}

func TestViewRejectsWrites(t *testing.T) {
	s := New()
	seedEntity(t, s)
	err := s.View(context.Background(), func(q store.Queries) error {
		_, _, err := q.NextConsecutive(context.Background(), "e1")
		return err
	})
	if !errors.Is(err, errReadOnly) {
		t.Fatalf("expected read-only error, got %v", err)
	}
}

func TestInsertUserDuplicateEmail(t *testing.T) {
	s := New()
	seedEntity(t, s)
	ctx := context.Background()
	insert := func(id, email string) error {
		return s.WithTx(ctx, func(q store.Queries) error {
			return q.InsertUser(ctx, models.User{ID: id, Email: email, EntityID: "e1", Role: models.RoleEmployee})
		})
	}
	if err := insert("u1", "ana@test.co"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := insert("u2", "ANA@test.co"); !errors.Is(err, store.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestInsertEntityDuplicateCode(t *testing.T) {
	s := New()
	seedEntity(t, s)
	ctx := context.Background()
	err := s.WithTx(ctx, func(q store.Queries) error {
		return q.InsertEntity(ctx, models.Entity{ID: "e2", Name: "Alcaldía Norte"},
			models.EntityConsecutive{ID: "c2", Code: "ALC", Consecutive: 1})
	})
	if !errors.Is(err, store.ErrCodeTaken) {
		t.Fatalf("expected ErrCodeTaken, got %v", err)
	}
	_ = s.View(ctx, func(q store.Queries) error {
		if _, err := q.GetEntity(ctx, "e2"); !errors.Is(err, store.ErrEntityNotFound) {
			t.Fatalf("entity should not exist after rejected insert, got %v", err)
		}
		return nil
	})
}

func seedDepartment(t *testing.T, s *Store, entityID, deptID string) {
	t.Helper()
	err := s.WithTx(context.Background(), func(q store.Queries) error {
		return q.InsertDepartment(context.Background(),
			models.Department{ID: deptID, Name: deptID, EntityID: entityID},
			models.PQRConfig{ID: "cfg-" + deptID, MaxResponseTime: 5})
	})
	if err != nil {
		t.Fatalf("seed department: %v", err)
	}
}

func TestInsertPQRCodeUniquePerEntity(t *testing.T) {
	s := New()
	seedEntity(t, s)
	ctx := context.Background()
	err := s.WithTx(ctx, func(q store.Queries) error {
		return q.InsertEntity(ctx, models.Entity{ID: "e2", Name: "Gobernación"},
			models.EntityConsecutive{ID: "c2", Code: "GOB", Consecutive: 1})
	})
	if err != nil {
		t.Fatalf("second entity: %v", err)
	}
	seedDepartment(t, s, "e1", "d1")
	seedDepartment(t, s, "e2", "d2")

	insert := func(id, entityID, deptID string) error {
		return s.WithTx(ctx, func(q store.Queries) error {
			return q.InsertPQR(ctx, models.PQRS{ID: id, EntityID: entityID, DepartmentID: deptID,
				ConsecutiveCode: "X-20240301-1"})
		})
	}
	if err := insert("p1", "e1", "d1"); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := insert("p2", "e2", "d2"); err != nil {
		t.Fatalf("same code in another entity: %v", err)
	}
	if err := insert("p3", "e1", "d1"); !errors.Is(err, store.ErrConsecutiveTaken) {
		t.Fatalf("expected ErrConsecutiveTaken, got %v", err)
	}
}

func TestCommentsOldestFirst(t *testing.T) {
	s := New()
	seedEntity(t, s)
	seedDepartment(t, s, "e1", "d1")
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	author := "u1"
	err := s.WithTx(ctx, func(q store.Queries) error {
		if err := q.InsertUser(ctx, models.User{ID: author, Email: "ana@test.co", FirstName: "Ana", EntityID: "e1"}); err != nil {
			return err
		}
		if err := q.InsertPQR(ctx, models.PQRS{ID: "p1", EntityID: "e1", DepartmentID: "d1", ConsecutiveCode: "ALC-1"}); err != nil {
			return err
		}
		if err := q.InsertComment(ctx, models.PQRComment{ID: "c2", PQRID: "p1", Text: "second", UserID: &author, CreatedAt: base.Add(time.Hour)}); err != nil {
			return err
		}
		return q.InsertComment(ctx, models.PQRComment{ID: "c1", PQRID: "p1", Text: "first", CreatedAt: base})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	var got []models.PQRComment
	_ = s.View(ctx, func(q store.Queries) error {
		got, err = q.ListComments(ctx, "p1")
		return err
	})
	if len(got) != 2 || got[0].ID != "c1" || got[1].ID != "c2" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[0].User != nil || got[1].User == nil || got[1].User.FirstName != "Ana" {
		t.Fatalf("unexpected authors: %+v, %+v", got[0].User, got[1].User)
	}

	err = s.WithTx(ctx, func(q store.Queries) error {
		return q.InsertComment(ctx, models.PQRComment{ID: "c3", PQRID: "missing", Text: "x", CreatedAt: base})
	})
	if !errors.Is(err, store.ErrPQRNotFound) {
		t.Fatalf("expected ErrPQRNotFound, got %v", err)
	}
}

func TestClaimNotificationsLeasesRows(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	err := s.WithTx(ctx, func(q store.Queries) error {
		if err := q.EnqueueNotification(ctx, models.Notification{ID: "n1", Recipient: "a@test.co", CreatedAt: now}); err != nil {
			return err
		}
		return q.EnqueueNotification(ctx, models.Notification{ID: "n2", Recipient: "b@test.co", CreatedAt: now.Add(time.Hour)})
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	claim := func(at time.Time) []models.Notification {
		var out []models.Notification
		if err := s.WithTx(ctx, func(q store.Queries) error {
			var err error
			out, err = q.ClaimNotifications(ctx, 10, at, time.Minute)
			return err
		}); err != nil {
			t.Fatalf("claim: %v", err)
		}
		return out
	}

	first := claim(now)
	if len(first) != 1 || first[0].ID != "n1" || first[0].Status != models.NotificationSending {
		t.Fatalf("expected only n1 leased, got %+v", first)
	}
	if again := claim(now.Add(30 * time.Second)); len(again) != 0 {
		t.Fatalf("leased row handed out twice: %+v", again)
	}
	if expired := claim(now.Add(2 * time.Hour)); len(expired) != 2 {
		t.Fatalf("expected expired lease and n2 due, got %+v", expired)
	}
}
