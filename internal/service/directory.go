package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/pqrs_dashboard/backend/internal/auth"
	"github.com/pqrs_dashboard/backend/internal/models"
	"github.com/pqrs_dashboard/backend/internal/store"
)

// Directory manages entities, departments and users.
type Directory struct {
	Deps
	DefaultMaxResponseDays int
}

type DepartmentInput struct {
	Name            string
	Description     string
	MaxResponseTime int
}

type UserInput struct {
	Email        string
	Password     string
	FirstName    string
	LastName     string
	Phone        string
	Role         models.Role
	DepartmentID string
}

type EntityInput struct {
	Name        string
	Email       string
	Code        string
	Consecutive int64
}

func (d *Directory) defaultDays() int {
	if d.DefaultMaxResponseDays > 0 {
		return d.DefaultMaxResponseDays
	}
	return 15
}

// ListDepartments returns the entity's departments by name. Employees only
// see the department they belong to.
func (d *Directory) ListDepartments(ctx context.Context, actor Actor) ([]models.Department, error) {
	member := ""
	if actor.Role == models.RoleEmployee {
		member = actor.UserID
	}
	var out []models.Department
	err := d.Store.View(ctx, func(q store.Queries) error {
		var err error
		out, err = q.ListDepartments(ctx, actor.EntityID, member)
		return err
	})
	return out, err
}

// CreateDepartment stores the department and its PQR config together.
func (d *Directory) CreateDepartment(ctx context.Context, actor Actor, in DepartmentInput) (models.Department, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Department{}, validationf("name is required")
	}
	days := in.MaxResponseTime
	if days < 0 {
		return models.Department{}, validationf("maxResponseTime must be positive")
	}
	if days == 0 {
		days = d.defaultDays()
	}

	dept := models.Department{
		ID:          d.id(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		EntityID:    actor.EntityID,
		CreatedAt:   d.now(),
	}
	cfg := models.PQRConfig{ID: d.id(), DepartmentID: dept.ID, MaxResponseTime: days}
	err := d.Store.WithTx(ctx, func(q store.Queries) error {
		return mapStoreErr(q.InsertDepartment(ctx, dept, cfg))
	})
	if err != nil {
		return models.Department{}, err
	}
	dept.Config = &cfg
	return dept, nil
}

func (d *Directory) UpdateDepartmentConfig(ctx context.Context, actor Actor, departmentID string, days int) (models.PQRConfig, error) {
	if days <= 0 {
		return models.PQRConfig{}, validationf("maxResponseTime must be positive")
	}
	var out models.PQRConfig
	err := d.Store.WithTx(ctx, func(q store.Queries) error {
		dept, err := q.GetDepartment(ctx, departmentID)
		if err != nil {
			return mapStoreErr(err)
		}
		if err := scoped(actor, dept.EntityID, "department"); err != nil {
			return err
		}
		out, err = q.UpdatePQRConfig(ctx, departmentID, days)
		if errors.Is(err, store.ErrConfigNotFound) {
			return ErrConfigurationMissing
		}
		return err
	})
	return out, err
}

func (d *Directory) ListUsers(ctx context.Context, actor Actor) ([]models.User, error) {
	var out []models.User
	err := d.Store.View(ctx, func(q store.Queries) error {
		var err error
		out, err = q.ListStaff(ctx, actor.EntityID)
		return err
	})
	return out, err
}

// CreateUser adds a staff member to the caller's entity. Only super admins
// may create admins.
func (d *Directory) CreateUser(ctx context.Context, actor Actor, in UserInput) (models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return models.User{}, validationf("invalid email")
	}
	if len(in.Password) < 6 {
		return models.User{}, validationf("password must have at least 6 characters")
	}
	role := in.Role
	if role == "" {
		role = models.RoleEmployee
	}
	switch role {
	case models.RoleEmployee:
		if in.DepartmentID == "" {
			return models.User{}, validationf("departmentId is required for employees")
		}
	case models.RoleAdmin:
		if actor.Role != models.RoleSuperAdmin {
			return models.User{}, ErrForbidden
		}
	default:
		return models.User{}, validationf("invalid role %q", role)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.User{}, err
	}
	now := d.now()
	u := models.User{
		ID:           d.id(),
		Email:        email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: hash,
		Role:         role,
		EntityID:     actor.EntityID,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.DepartmentID != "" {
		dept := in.DepartmentID
		u.DepartmentID = &dept
	}

	var out models.User
	err = d.Store.WithTx(ctx, func(q store.Queries) error {
		if u.DepartmentID != nil {
			dept, err := q.GetDepartment(ctx, *u.DepartmentID)
			if err != nil {
				return mapStoreErr(err)
			}
			if dept.EntityID != actor.EntityID {
				return validationf("department does not belong to this entity")
			}
		}
		if err := q.InsertUser(ctx, u); err != nil {
			return mapStoreErr(err)
		}
		out, err = q.GetUser(ctx, u.ID)
		return err
	})
	return out, err
}

// ListEmployees returns active employees of an entity ordered by first name.
func (d *Directory) ListEmployees(ctx context.Context, actor Actor, entityID string) ([]models.User, error) {
	if err := scoped(actor, entityID, "entity"); err != nil {
		return nil, err
	}
	var out []models.User
	err := d.Store.View(ctx, func(q store.Queries) error {
		if _, err := q.GetEntity(ctx, entityID); err != nil {
			return mapStoreErr(err)
		}
		var err error
		out, err = q.ListActiveEmployees(ctx, entityID)
		return err
	})
	return out, err
}

func (d *Directory) ListEntities(ctx context.Context) ([]models.Entity, error) {
	var out []models.Entity
	err := d.Store.View(ctx, func(q store.Queries) error {
		var err error
		out, err = q.ListEntities(ctx)
		return err
	})
	return out, err
}

// CreateEntity registers a tenant together with its consecutive counter.
func (d *Directory) CreateEntity(ctx context.Context, in EntityInput) (models.Entity, error) {
	name := strings.TrimSpace(in.Name)
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	if name == "" || code == "" {
		return models.Entity{}, validationf("name and code are required")
	}
	if strings.Contains(code, "-") {
		return models.Entity{}, validationf("code must not contain '-'")
	}
	start := in.Consecutive
	if start <= 0 {
		start = 1
	}
	e := models.Entity{ID: d.id(), Name: name, Email: strings.TrimSpace(in.Email), CreatedAt: d.now()}
	c := models.EntityConsecutive{ID: d.id(), EntityID: e.ID, Code: code, Consecutive: start}
	err := d.Store.WithTx(ctx, func(q store.Queries) error {
		return mapStoreErr(q.InsertEntity(ctx, e, c))
	})
	if err != nil {
		return models.Entity{}, err
	}
	return e, nil
}

func (d *Directory) Profile(ctx context.Context, actor Actor) (models.User, error) {
	var out models.User
	err := d.Store.View(ctx, func(q store.Queries) error {
		var err error
		out, err = q.GetUser(ctx, actor.UserID)
		return mapStoreErr(err)
	})
	return out, err
}

func (d *Directory) UpdateProfile(ctx context.Context, actor Actor, firstName, lastName string) (models.User, error) {
	firstName, lastName = strings.TrimSpace(firstName), strings.TrimSpace(lastName)
	if firstName == "" {
		return models.User{}, validationf("firstName is required")
	}
	var out models.User
	err := d.Store.WithTx(ctx, func(q store.Queries) error {
		var err error
		out, err = q.UpdateUserName(ctx, actor.UserID, firstName, lastName, d.now())
		return mapStoreErr(err)
	})
	return out, err
}

// Authenticate checks credentials. Unknown emails, wrong passwords and
// inactive accounts all yield ErrUnauthorized.
func (d *Directory) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	var u models.User
	err := d.Store.View(ctx, func(q store.Queries) error {
		var err error
		u, err = q.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
		return err
	})
	if errors.Is(err, store.ErrUserNotFound) {
		return models.User{}, ErrUnauthorized
	}
	if err != nil {
		return models.User{}, err
	}
	if !u.IsActive || !auth.CheckPassword(u.PasswordHash, password) {
		return models.User{}, ErrUnauthorized
	}
	return u, nil
}

type BootstrapInput struct {
	EntityName    string
	EntityEmail   string
	EntityCode    string
	AdminEmail    string
	AdminPassword string
}

// Bootstrap creates a first entity and super admin unless the admin email
// already exists. It reports whether anything was created.
func (d *Directory) Bootstrap(ctx context.Context, in BootstrapInput) (bool, error) {
	email := strings.ToLower(strings.TrimSpace(in.AdminEmail))
	if email == "" || in.AdminPassword == "" {
		return false, validationf("admin email and password are required")
	}
	var exists bool
	err := d.Store.View(ctx, func(q store.Queries) error {
		_, err := q.GetUserByEmail(ctx, email)
		if errors.Is(err, store.ErrUserNotFound) {
			return nil
		}
		exists = err == nil
		return err
	})
	if err != nil || exists {
		return false, err
	}

	hash, err := auth.HashPassword(in.AdminPassword)
	if err != nil {
		return false, err
	}
	code := strings.ToUpper(strings.TrimSpace(in.EntityCode))
	if code == "" {
		code = "PQR"
	}
	now := d.now()
	e := models.Entity{ID: d.id(), Name: in.EntityName, Email: in.EntityEmail, CreatedAt: now}
	if e.Name == "" {
		e.Name = "Default"
	}
	c := models.EntityConsecutive{ID: d.id(), EntityID: e.ID, Code: code, Consecutive: 1}
	u := models.User{
		ID: d.id(), Email: email, FirstName: "Super", LastName: "Admin", PasswordHash: hash,
		Role: models.RoleSuperAdmin, EntityID: e.ID, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	err = d.Store.WithTx(ctx, func(q store.Queries) error {
		if err := q.InsertEntity(ctx, e, c); err != nil {
			return mapStoreErr(err)
		}
		return mapStoreErr(q.InsertUser(ctx, u))
	})
	if err != nil {
		return false, err
	}
	d.Logger.Info().Str("entity_id", e.ID).Str("email", email).Msg("bootstrap entity and super admin created")
	return true, nil
}
