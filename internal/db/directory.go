package db

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pqrs_dashboard/backend/internal/models"
	"github.com/pqrs_dashboard/backend/internal/store"
)

func (q *queries) GetEntity(ctx context.Context, id string) (models.Entity, error) {
	var e models.Entity
	err := q.db.QueryRow(ctx, `SELECT id, name, email, created_at FROM entities WHERE id = $1`, id).
		Scan(&e.ID, &e.Name, &e.Email, &e.CreatedAt)
	if err != nil {
		return models.Entity{}, notFound(err, store.ErrEntityNotFound)
	}
	return e, nil
}

func (q *queries) ListEntities(ctx context.Context) ([]models.Entity, error) {
	rows, err := q.db.Query(ctx, `SELECT id, name, email, created_at FROM entities ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Entity{}
	for rows.Next() {
		var e models.Entity
		if err := rows.Scan(&e.ID, &e.Name, &e.Email, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (q *queries) InsertEntity(ctx context.Context, entity models.Entity, consecutive models.EntityConsecutive) error {
	_, err := q.db.Exec(ctx, `INSERT INTO entities (id, name, email, created_at) VALUES ($1, $2, $3, $4)`,
		entity.ID, entity.Name, entity.Email, entity.CreatedAt)
	if err != nil {
		return err
	}
	_, err = q.db.Exec(ctx, `INSERT INTO entity_consecutives (id, entity_id, code, consecutive) VALUES ($1, $2, $3, $4)`,
		consecutive.ID, entity.ID, consecutive.Code, consecutive.Consecutive)
	if isUniqueViolation(err) {
		return store.ErrCodeTaken
	}
	return err
}

const departmentColumns = `d.id, d.name, d.description, d.entity_id, d.created_at, c.id, c.max_response_time`

func scanDepartment(row pgx.Row) (models.Department, error) {
	var d models.Department
	var cfgID *string
	var maxDays *int
	if err := row.Scan(&d.ID, &d.Name, &d.Description, &d.EntityID, &d.CreatedAt, &cfgID, &maxDays); err != nil {
		return models.Department{}, err
	}
	if cfgID != nil && maxDays != nil {
		d.Config = &models.PQRConfig{ID: *cfgID, DepartmentID: d.ID, MaxResponseTime: *maxDays}
	}
	return d, nil
}

func (q *queries) GetDepartment(ctx context.Context, id string) (models.Department, error) {
	row := q.db.QueryRow(ctx, `SELECT `+departmentColumns+`
		FROM departments d LEFT JOIN pqr_configs c ON c.department_id = d.id
		WHERE d.id = $1`, id)
	d, err := scanDepartment(row)
	if err != nil {
		return models.Department{}, notFound(err, store.ErrDepartmentNotFound)
	}
	return d, nil
}

func (q *queries) ListDepartments(ctx context.Context, entityID, memberID string) ([]models.Department, error) {
	query := `SELECT ` + departmentColumns + `
		FROM departments d LEFT JOIN pqr_configs c ON c.department_id = d.id
		WHERE d.entity_id = $1`
	args := []any{entityID}
	if memberID != "" {
		args = append(args, memberID)
		query += ` AND d.id = (SELECT department_id FROM users WHERE id = $2)`
	}
	query += ` ORDER BY d.name ASC`

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Department{}
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (q *queries) InsertDepartment(ctx context.Context, dept models.Department, cfg models.PQRConfig) error {
	_, err := q.db.Exec(ctx, `INSERT INTO departments (id, name, description, entity_id, created_at) VALUES ($1, $2, $3, $4, $5)`,
		dept.ID, dept.Name, dept.Description, dept.EntityID, dept.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrEntityNotFound
		}
		return err
	}
	_, err = q.db.Exec(ctx, `INSERT INTO pqr_configs (id, department_id, max_response_time) VALUES ($1, $2, $3)`,
		cfg.ID, dept.ID, cfg.MaxResponseTime)
	return err
}

func (q *queries) GetPQRConfig(ctx context.Context, departmentID string) (models.PQRConfig, error) {
	var c models.PQRConfig
	err := q.db.QueryRow(ctx, `SELECT id, department_id, max_response_time FROM pqr_configs WHERE department_id = $1`, departmentID).
		Scan(&c.ID, &c.DepartmentID, &c.MaxResponseTime)
	if err != nil {
		return models.PQRConfig{}, notFound(err, store.ErrConfigNotFound)
	}
	return c, nil
}

func (q *queries) UpdatePQRConfig(ctx context.Context, departmentID string, maxResponseTime int) (models.PQRConfig, error) {
	var c models.PQRConfig
	err := q.db.QueryRow(ctx, `UPDATE pqr_configs SET max_response_time = $2 WHERE department_id = $1
		RETURNING id, department_id, max_response_time`, departmentID, maxResponseTime).
		Scan(&c.ID, &c.DepartmentID, &c.MaxResponseTime)
	if err != nil {
		return models.PQRConfig{}, notFound(err, store.ErrConfigNotFound)
	}
	return c, nil
}

const userColumns = `u.id, u.email, u.first_name, u.last_name, u.phone, u.password_hash, u.role, u.entity_id,
	u.department_id, COALESCE(d.name, ''), u.is_active, u.created_at, u.updated_at`

const userFrom = ` FROM users u LEFT JOIN departments d ON d.id = u.department_id`

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Phone, &u.PasswordHash, &role, &u.EntityID,
		&u.DepartmentID, &u.DepartmentName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	u.Role = models.Role(role)
	return u, err
}

func (q *queries) GetUser(ctx context.Context, id string) (models.User, error) {
	u, err := scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+userFrom+` WHERE u.id = $1`, id))
	if err != nil {
		return models.User{}, notFound(err, store.ErrUserNotFound)
	}
	return u, nil
}

func (q *queries) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	u, err := scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+userFrom+` WHERE lower(u.email) = $1`, strings.ToLower(email)))
	if err != nil {
		return models.User{}, notFound(err, store.ErrUserNotFound)
	}
	return u, nil
}

func (q *queries) listUsers(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (q *queries) ListStaff(ctx context.Context, entityID string) ([]models.User, error) {
	return q.listUsers(ctx, `SELECT `+userColumns+userFrom+`
		WHERE u.entity_id = $1 AND u.role IN ($2, $3)
		ORDER BY u.created_at DESC, u.id ASC`, entityID, string(models.RoleEmployee), string(models.RoleAdmin))
}

func (q *queries) ListActiveEmployees(ctx context.Context, entityID string) ([]models.User, error) {
	return q.listUsers(ctx, `SELECT `+userColumns+userFrom+`
		WHERE u.entity_id = $1 AND u.role = $2 AND u.is_active
		ORDER BY u.first_name ASC, u.id ASC`, entityID, string(models.RoleEmployee))
}

func (q *queries) InsertUser(ctx context.Context, u models.User) error {
	_, err := q.db.Exec(ctx, `INSERT INTO users
		(id, email, first_name, last_name, phone, password_hash, role, entity_id, department_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		u.ID, u.Email, u.FirstName, u.LastName, u.Phone, u.PasswordHash, string(u.Role), u.EntityID,
		u.DepartmentID, u.IsActive, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return store.ErrEmailTaken
	}
	return err
}

func (q *queries) UpdateUserName(ctx context.Context, id, firstName, lastName string, at time.Time) (models.User, error) {
	tag, err := q.db.Exec(ctx, `UPDATE users SET first_name = $2, last_name = $3, updated_at = $4 WHERE id = $1`,
		id, firstName, lastName, at)
	if err != nil {
		return models.User{}, err
	}
	if tag.RowsAffected() == 0 {
		return models.User{}, store.ErrUserNotFound
	}
	return q.GetUser(ctx, id)
}
