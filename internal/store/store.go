package store

import (
	"context"
	"time"

	"github.com/pqrs_dashboard/backend/internal/models"
)

// Queries is the full set of reads and writes. Implementations bind it either
// to a pool (View) or to an open transaction (WithTx).
type Queries interface {
	GetEntity(ctx context.Context, id string) (models.Entity, error)
	ListEntities(ctx context.Context) ([]models.Entity, error)
	// InsertEntity fails with ErrCodeTaken when another entity already
	// numbers its requests with the same code prefix.
	InsertEntity(ctx context.Context, entity models.Entity, consecutive models.EntityConsecutive) error

	GetDepartment(ctx context.Context, id string) (models.Department, error)
	// ListDepartments returns departments of an entity ordered by name. A
	// non-empty memberID restricts the result to that user's department.
	ListDepartments(ctx context.Context, entityID, memberID string) ([]models.Department, error)
	InsertDepartment(ctx context.Context, dept models.Department, cfg models.PQRConfig) error
	GetPQRConfig(ctx context.Context, departmentID string) (models.PQRConfig, error)
	UpdatePQRConfig(ctx context.Context, departmentID string, maxResponseTime int) (models.PQRConfig, error)

	GetUser(ctx context.Context, id string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	ListStaff(ctx context.Context, entityID string) ([]models.User, error)
	ListActiveEmployees(ctx context.Context, entityID string) ([]models.User, error)
	InsertUser(ctx context.Context, user models.User) error
	UpdateUserName(ctx context.Context, id, firstName, lastName string, at time.Time) (models.User, error)

	// NextConsecutive increments the entity counter and returns the code
	// prefix and the value the counter held before the increment.
	NextConsecutive(ctx context.Context, entityID string) (string, int64, error)

	InsertPQR(ctx context.Context, pqr models.PQRS) error
	GetPQR(ctx context.Context, id string) (models.PQRS, error)
	// LockPQR reads the request row and holds it until the transaction ends.
	LockPQR(ctx context.Context, id string) (models.PQRS, error)
	ListPQRs(ctx context.Context, filter models.PQRFilter) ([]models.PQRS, error)
	UpdatePQRStatus(ctx context.Context, id string, status models.Status, at time.Time) error
	UpdatePQRAssignment(ctx context.Context, id string, assignedToID *string, status models.Status, at time.Time) error

	InsertStatusHistory(ctx context.Context, entry models.StatusHistoryEntry) error
	ListStatusHistory(ctx context.Context, pqrID string) ([]models.StatusHistoryEntry, error)

	InsertComment(ctx context.Context, c models.PQRComment) error
	// ListComments returns the comments of a request oldest first.
	ListComments(ctx context.Context, pqrID string) ([]models.PQRComment, error)

	EnqueueNotification(ctx context.Context, n models.Notification) error
	// ClaimNotifications leases up to limit rows that are due at now. Claimed
	// rows move to SENDING and are not handed out again until the lease
	// expires, so a worker that dies mid-send does not strand them.
	ClaimNotifications(ctx context.Context, limit int, now time.Time, lease time.Duration) ([]models.Notification, error)
	MarkNotificationSent(ctx context.Context, id string, at time.Time) error
	// MarkNotificationFailed records a failed attempt. Rows that are not dead
	// become due again at retryAt.
	MarkNotificationFailed(ctx context.Context, id, lastError string, dead bool, retryAt time.Time) error
}

type Store interface {
	View(ctx context.Context, fn func(q Queries) error) error
	// WithTx runs fn in one transaction; any error rolls back every write.
	WithTx(ctx context.Context, fn func(q Queries) error) error
	Ping(ctx context.Context) error
}
