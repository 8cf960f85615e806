package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pqrs_dashboard/backend/internal/models"
	"github.com/pqrs_dashboard/backend/internal/store"
)

// NextConsecutive relies on the row lock taken by UPDATE, which is held until
// the surrounding transaction commits or rolls back.
func (q *queries) NextConsecutive(ctx context.Context, entityID string) (string, int64, error) {
	var code string
	var next int64
	err := q.db.QueryRow(ctx, `UPDATE entity_consecutives SET consecutive = consecutive + 1
		WHERE entity_id = $1 RETURNING code, consecutive`, entityID).Scan(&code, &next)
	if err != nil {
		return "", 0, notFound(err, store.ErrConsecutiveNotFound)
	}
	return code, next - 1, nil
}

func (q *queries) InsertPQR(ctx context.Context, p models.PQRS) error {
	_, err := q.db.Exec(ctx, `INSERT INTO pqrs
		(id, type, status, consecutive_code, entity_id, department_id, creator_id, assigned_to_id,
		 anonymous, private, subject, description, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		p.ID, string(p.Type), string(p.Status), p.ConsecutiveCode, p.EntityID, p.DepartmentID, p.CreatorID, p.AssignedToID,
		p.Anonymous, p.Private, p.Subject, p.Description, p.DueDate, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrDepartmentNotFound
		}
		if isUniqueViolation(err) {
			return store.ErrConsecutiveTaken
		}
		return err
	}

	if len(p.CustomFields) > 0 {
		rows := make([][]any, 0, len(p.CustomFields))
		for _, f := range p.CustomFields {
			rows = append(rows, []any{f.ID, p.ID, f.Position, f.Name, f.Value, f.Type, f.Placeholder, f.Required})
		}
		if _, err := q.db.CopyFrom(ctx, pgx.Identifier{"custom_field_values"},
			[]string{"id", "pqr_id", "position", "name", "value", "type", "placeholder", "required"},
			pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("insert custom fields: %w", err)
		}
	}

	if len(p.Attachments) > 0 {
		rows := make([][]any, 0, len(p.Attachments))
		for _, a := range p.Attachments {
			rows = append(rows, []any{a.ID, p.ID, a.Position, a.Name, a.URL, a.Type, a.Size})
		}
		if _, err := q.db.CopyFrom(ctx, pgx.Identifier{"attachments"},
			[]string{"id", "pqr_id", "position", "name", "url", "type", "size"},
			pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("insert attachments: %w", err)
		}
	}
	return nil
}

const pqrSelect = `SELECT p.id, p.type, p.status, p.consecutive_code, p.entity_id, p.department_id,
	p.creator_id, p.assigned_to_id, p.anonymous, p.private, p.subject, p.description,
	p.due_date, p.created_at, p.updated_at,
	d.name, e.name,
	cu.first_name, cu.last_name, cu.email,
	au.first_name, au.last_name, au.email
	FROM pqrs p
	JOIN departments d ON d.id = p.department_id
	JOIN entities e ON e.id = d.entity_id
	LEFT JOIN users cu ON cu.id = p.creator_id
	LEFT JOIN users au ON au.id = p.assigned_to_id`

func scanPQR(row pgx.Row) (models.PQRS, error) {
	var p models.PQRS
	var typ, status string
	var deptName, entityName string
	var cFirst, cLast, cEmail, aFirst, aLast, aEmail *string
	err := row.Scan(&p.ID, &typ, &status, &p.ConsecutiveCode, &p.EntityID, &p.DepartmentID,
		&p.CreatorID, &p.AssignedToID, &p.Anonymous, &p.Private, &p.Subject, &p.Description,
		&p.DueDate, &p.CreatedAt, &p.UpdatedAt,
		&deptName, &entityName,
		&cFirst, &cLast, &cEmail,
		&aFirst, &aLast, &aEmail)
	if err != nil {
		return models.PQRS{}, err
	}
	p.Type = models.PQRType(typ)
	p.Status = models.Status(status)
	p.Department = &models.DepartmentRef{ID: p.DepartmentID, Name: deptName, EntityID: p.EntityID, EntityName: entityName}
	p.Creator = userRef(p.CreatorID, cFirst, cLast, cEmail)
	p.AssignedTo = userRef(p.AssignedToID, aFirst, aLast, aEmail)
	p.CustomFields = []models.CustomFieldValue{}
	p.Attachments = []models.Attachment{}
	return p, nil
}

func userRef(id, first, last, email *string) *models.UserRef {
	if id == nil || first == nil {
		return nil
	}
	ref := &models.UserRef{ID: *id, FirstName: *first}
	if last != nil {
		ref.LastName = *last
	}
	if email != nil {
		ref.Email = *email
	}
	return ref
}

func (q *queries) GetPQR(ctx context.Context, id string) (models.PQRS, error) {
	return q.getPQR(ctx, pqrSelect+` WHERE p.id = $1`, id)
}

func (q *queries) LockPQR(ctx context.Context, id string) (models.PQRS, error) {
	return q.getPQR(ctx, pqrSelect+` WHERE p.id = $1 FOR UPDATE OF p`, id)
}

func (q *queries) getPQR(ctx context.Context, query, id string) (models.PQRS, error) {
	p, err := scanPQR(q.db.QueryRow(ctx, query, id))
	if err != nil {
		return models.PQRS{}, notFound(err, store.ErrPQRNotFound)
	}
	list := []models.PQRS{p}
	if err := q.loadChildren(ctx, list); err != nil {
		return models.PQRS{}, err
	}
	return list[0], nil
}

func (q *queries) ListPQRs(ctx context.Context, f models.PQRFilter) ([]models.PQRS, error) {
	query := pqrSelect
	var args []any
	var wheres []string
	if f.EntityID != "" {
		args = append(args, f.EntityID)
		wheres = append(wheres, fmt.Sprintf("p.entity_id = $%d", len(args)))
	}
	if f.DepartmentID != "" {
		args = append(args, f.DepartmentID)
		wheres = append(wheres, fmt.Sprintf("p.department_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		wheres = append(wheres, fmt.Sprintf("p.status = $%d", len(args)))
	}
	if f.Type != "" {
		args = append(args, string(f.Type))
		wheres = append(wheres, fmt.Sprintf("p.type = $%d", len(args)))
	}
	if f.StartDate != nil {
		args = append(args, *f.StartDate)
		wheres = append(wheres, fmt.Sprintf("p.created_at >= $%d", len(args)))
	}
	if f.EndDate != nil {
		args = append(args, *f.EndDate)
		wheres = append(wheres, fmt.Sprintf("p.created_at <= $%d", len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY p.created_at DESC, p.consecutive_code DESC"

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.PQRS{}
	for rows.Next() {
		p, err := scanPQR(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := q.loadChildren(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (q *queries) loadChildren(ctx context.Context, list []models.PQRS) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, 0, len(list))
	index := make(map[string]int, len(list))
	for i, p := range list {
		ids = append(ids, p.ID)
		index[p.ID] = i
	}

	rows, err := q.db.Query(ctx, `SELECT id, pqr_id, position, name, value, type, placeholder, required
		FROM custom_field_values WHERE pqr_id = ANY($1) ORDER BY pqr_id, position`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var f models.CustomFieldValue
		if err := rows.Scan(&f.ID, &f.PQRID, &f.Position, &f.Name, &f.Value, &f.Type, &f.Placeholder, &f.Required); err != nil {
			rows.Close()
			return err
		}
		i := index[f.PQRID]
		list[i].CustomFields = append(list[i].CustomFields, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.db.Query(ctx, `SELECT id, pqr_id, position, name, url, type, size
		FROM attachments WHERE pqr_id = ANY($1) ORDER BY pqr_id, position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.ID, &a.PQRID, &a.Position, &a.Name, &a.URL, &a.Type, &a.Size); err != nil {
			return err
		}
		i := index[a.PQRID]
		list[i].Attachments = append(list[i].Attachments, a)
	}
	return rows.Err()
}

func (q *queries) UpdatePQRStatus(ctx context.Context, id string, status models.Status, at time.Time) error {
	tag, err := q.db.Exec(ctx, `UPDATE pqrs SET status = $2, updated_at = $3 WHERE id = $1`, id, string(status), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrPQRNotFound
	}
	return nil
}

func (q *queries) UpdatePQRAssignment(ctx context.Context, id string, assignedToID *string, status models.Status, at time.Time) error {
	tag, err := q.db.Exec(ctx, `UPDATE pqrs SET assigned_to_id = $2, status = $3, updated_at = $4 WHERE id = $1`,
		id, assignedToID, string(status), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrPQRNotFound
	}
	return nil
}

func (q *queries) InsertStatusHistory(ctx context.Context, h models.StatusHistoryEntry) error {
	_, err := q.db.Exec(ctx, `INSERT INTO status_history (id, pqr_id, status, comment, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`, h.ID, h.PQRID, string(h.Status), h.Comment, h.UserID, h.CreatedAt)
	if isForeignKeyViolation(err) {
		return store.ErrPQRNotFound
	}
	return err
}

func (q *queries) ListStatusHistory(ctx context.Context, pqrID string) ([]models.StatusHistoryEntry, error) {
	rows, err := q.db.Query(ctx, `SELECT h.id, h.pqr_id, h.status, h.comment, h.user_id, h.created_at,
		COALESCE(u.first_name, ''), COALESCE(u.last_name, '')
		FROM status_history h LEFT JOIN users u ON u.id = h.user_id
		WHERE h.pqr_id = $1
		ORDER BY h.created_at DESC, h.seq DESC`, pqrID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.StatusHistoryEntry{}
	for rows.Next() {
		var h models.StatusHistoryEntry
		var status, first, last string
		if err := rows.Scan(&h.ID, &h.PQRID, &status, &h.Comment, &h.UserID, &h.CreatedAt, &first, &last); err != nil {
			return nil, err
		}
		h.Status = models.Status(status)
		h.UserName = models.DisplayName(first, last)
		out = append(out, h)
	}
	return out, rows.Err()
}

func (q *queries) InsertComment(ctx context.Context, c models.PQRComment) error {
	_, err := q.db.Exec(ctx, `INSERT INTO pqr_comments (id, pqr_id, text, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`, c.ID, c.PQRID, c.Text, c.UserID, c.CreatedAt)
	if isForeignKeyViolation(err) {
		return store.ErrPQRNotFound
	}
	return err
}

func (q *queries) ListComments(ctx context.Context, pqrID string) ([]models.PQRComment, error) {
	rows, err := q.db.Query(ctx, `SELECT c.id, c.pqr_id, c.text, c.user_id, c.created_at,
		u.first_name, u.last_name, u.email
		FROM pqr_comments c LEFT JOIN users u ON u.id = c.user_id
		WHERE c.pqr_id = $1
		ORDER BY c.created_at ASC, c.seq ASC`, pqrID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.PQRComment{}
	for rows.Next() {
		var c models.PQRComment
		var first, last, email *string
		if err := rows.Scan(&c.ID, &c.PQRID, &c.Text, &c.UserID, &c.CreatedAt, &first, &last, &email); err != nil {
			return nil, err
		}
		c.User = userRef(c.UserID, first, last, email)
		out = append(out, c)
	}
	return out, rows.Err()
}
