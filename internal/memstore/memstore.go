// Package memstore keeps the whole dataset in process memory. Transactions
// work on a private copy of the state that replaces the shared one only when
// the callback succeeds, so a failed transaction leaves nothing behind.
package memstore

import (
	"context"
	"errors"
	"sync"

	"github.com/pqrs_dashboard/backend/internal/models"
	"github.com/pqrs_dashboard/backend/internal/store"
)

var errReadOnly = errors.New("memstore: write inside read-only view")

type Store struct {
	mu sync.RWMutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) View(ctx context.Context, fn func(q store.Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&queries{st: s.st, readOnly: true})
}

func (s *Store) WithTx(ctx context.Context, fn func(q store.Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	working := s.st.clone()
	if err := fn(&queries{st: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = working
	return nil
}

type state struct {
	entities      map[string]models.Entity
	consecutives  map[string]models.EntityConsecutive
	departments   map[string]models.Department
	configs       map[string]models.PQRConfig
	users         map[string]models.User
	pqrs          map[string]models.PQRS
	history       []models.StatusHistoryEntry
	comments      []models.PQRComment
	notifications []models.Notification
}

func newState() *state {
	return &state{
		entities:     map[string]models.Entity{},
		consecutives: map[string]models.EntityConsecutive{},
		departments:  map[string]models.Department{},
		configs:      map[string]models.PQRConfig{},
		users:        map[string]models.User{},
		pqrs:         map[string]models.PQRS{},
	}
}

func (s *state) clone() *state {
	out := &state{
		entities:      copyMap(s.entities),
		consecutives:  copyMap(s.consecutives),
		departments:   copyMap(s.departments),
		configs:       copyMap(s.configs),
		users:         copyMap(s.users),
		pqrs:          copyMap(s.pqrs),
		history:       append([]models.StatusHistoryEntry(nil), s.history...),
		comments:      append([]models.PQRComment(nil), s.comments...),
		notifications: append([]models.Notification(nil), s.notifications...),
	}
	return out
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
