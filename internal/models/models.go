package models

import (
	"strings"
	"time"
)

type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleEmployee   Role = "EMPLOYEE"
	RoleClient     Role = "CLIENT"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleEmployee, RoleClient:
		return true
	}
	return false
}

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
	StatusClosed     Status = "CLOSED"
)

var Statuses = []Status{StatusPending, StatusInProgress, StatusResolved, StatusClosed}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// Open reports whether the request still counts against its due date.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusInProgress
}

// PQRType is the kind of request (petición, queja, reclamo, sugerencia, denuncia).
type PQRType string

const (
	TypePetition   PQRType = "PETITION"
	TypeComplaint  PQRType = "COMPLAINT"
	TypeClaim      PQRType = "CLAIM"
	TypeSuggestion PQRType = "SUGGESTION"
	TypeReport     PQRType = "REPORT"
)

func (t PQRType) Valid() bool {
	switch t {
	case TypePetition, TypeComplaint, TypeClaim, TypeSuggestion, TypeReport:
		return true
	}
	return false
}

type Entity struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type EntityConsecutive struct {
	ID          string `json:"id"`
	EntityID    string `json:"entityId"`
	Code        string `json:"code"`
	Consecutive int64  `json:"consecutive"`
}

type PQRConfig struct {
	ID              string `json:"id"`
	DepartmentID    string `json:"departmentId"`
	MaxResponseTime int    `json:"maxResponseTime"`
}

type Department struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	EntityID    string     `json:"entityId"`
	CreatedAt   time.Time  `json:"createdAt"`
	Config      *PQRConfig `json:"pqrConfig,omitempty"`
}

type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Phone          string    `json:"phone,omitempty"`
	PasswordHash   string    `json:"-"`
	Role           Role      `json:"role"`
	EntityID       string    `json:"entityId"`
	DepartmentID   *string   `json:"departmentId"`
	DepartmentName string    `json:"departmentName,omitempty"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (u User) DisplayName() string {
	return DisplayName(u.FirstName, u.LastName)
}

func DisplayName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

// UserRef is the joined view of a user embedded in request listings.
type UserRef struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

type DepartmentRef struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	EntityID   string `json:"entityId"`
	EntityName string `json:"entityName"`
}

type CustomFieldValue struct {
	ID          string `json:"id"`
	PQRID       string `json:"pqrId"`
	Name        string `json:"name"`
	Value       string `json:"value"`
	Type        string `json:"type"`
	Placeholder string `json:"placeholder,omitempty"`
	Required    bool   `json:"required"`
	Position    int    `json:"position"`
}

type Attachment struct {
	ID       string `json:"id"`
	PQRID    string `json:"pqrId"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Type     string `json:"type"`
	Size     int64  `json:"size"`
	Position int    `json:"position"`
}

type PQRS struct {
	ID              string             `json:"id"`
	Type            PQRType            `json:"type"`
	Status          Status             `json:"status"`
	ConsecutiveCode string             `json:"consecutiveCode"`
	EntityID        string             `json:"entityId"`
	DepartmentID    string             `json:"departmentId"`
	CreatorID       *string            `json:"creatorId"`
	AssignedToID    *string            `json:"assignedToId"`
	Anonymous       bool               `json:"anonymous"`
	Private         bool               `json:"private"`
	Subject         string             `json:"subject"`
	Description     string             `json:"description"`
	DueDate         time.Time          `json:"dueDate"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
	CustomFields    []CustomFieldValue `json:"customFieldValues"`
	Attachments     []Attachment       `json:"attachments"`
	Department      *DepartmentRef     `json:"department,omitempty"`
	Creator         *UserRef           `json:"creator,omitempty"`
	AssignedTo      *UserRef           `json:"assignedTo,omitempty"`
}

// Overdue reports whether an open request is past its due date at now.
func (p PQRS) Overdue(now time.Time) bool {
	return p.Status.Open() && !now.Before(p.DueDate)
}

type StatusHistoryEntry struct {
	ID        string    `json:"id"`
	PQRID     string    `json:"pqrId"`
	Status    Status    `json:"status"`
	Comment   string    `json:"comment"`
	UserID    *string   `json:"userId"`
	UserName  string    `json:"userName"`
	CreatedAt time.Time `json:"createdAt"`
}

// PQRComment is a free-text response attached to a request by staff.
type PQRComment struct {
	ID        string    `json:"id"`
	PQRID     string    `json:"pqrId"`
	Text      string    `json:"text"`
	UserID    *string   `json:"userId"`
	User      *UserRef  `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

type PQRFilter struct {
	EntityID     string
	DepartmentID string
	StartDate    *time.Time
	EndDate      *time.Time
	Status       Status
	Type         PQRType
}

const (
	NotificationPending = "PENDING"
	NotificationSending = "SENDING"
	NotificationSent    = "SENT"
	NotificationFailed  = "FAILED"
	NotificationDead    = "DEAD"
)

type Notification struct {
	ID            string     `json:"id"`
	Kind          string     `json:"kind"`
	PQRID         string     `json:"pqrId"`
	Recipient     string     `json:"recipient"`
	Subject       string     `json:"subject"`
	Body          string     `json:"body"`
	Status        string     `json:"status"`
	Attempts      int        `json:"attempts"`
	LastError     string     `json:"lastError,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	NextAttemptAt time.Time  `json:"nextAttemptAt"`
	SentAt        *time.Time `json:"sentAt,omitempty"`
}

type DashboardStats struct {
	Total    int             `json:"total"`
	ByStatus map[Status]int  `json:"byStatus"`
	ByType   map[PQRType]int `json:"byType"`
	OnTime   int             `json:"onTime"`
	Overdue  int             `json:"overdue"`
}
