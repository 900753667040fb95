package projects

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mini-erp/mini-erp/internal/platform/db"
	"github.com/mini-erp/mini-erp/internal/shared"
)

// Repository persists projects in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const projectColumns = `id, project_name, description, customer_id, status, start_date, end_date, budget, actual_cost,
planned_progress, actual_progress, COALESCE(created_by, 0), created_at, updated_at`

func scanProject(row pgx.Row) (Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CustomerID, &p.Status, &p.StartDate, &p.EndDate, &p.Budget,
		&p.ActualCost, &p.PlannedProgress, &p.ActualProgress, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

const projectFilter = `WHERE ($1::BIGINT = 0 OR customer_id = $1) AND ($2::TEXT = '' OR status = $2)`

// List returns one page of matching projects and the total match count.
func (r *Repository) List(ctx context.Context, f ListFilters) ([]Project, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM projects `+projectFilter, f.CustomerID, string(f.Status)).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+projectColumns+` FROM projects `+projectFilter+`
ORDER BY start_date DESC, id DESC LIMIT $3 OFFSET $4`, f.CustomerID, string(f.Status), f.Limit, shared.Offset(f.Page, f.Limit))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// Get loads one project.
func (r *Repository) Get(ctx context.Context, id int64) (Project, error) {
	p, err := scanProject(r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=$1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Project{}, shared.NotFound("project", id)
		}
		return Project{}, err
	}
	return p, nil
}

// Create inserts a project in the planning state.
func (r *Repository) Create(ctx context.Context, in CreateInput) (Project, error) {
	p, err := scanProject(r.pool.QueryRow(ctx, `INSERT INTO projects
(project_name, description, customer_id, start_date, end_date, budget, planned_progress, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING `+projectColumns,
		in.Name, in.Description, in.CustomerID, in.StartDate, in.EndDate, in.Budget, in.PlannedProgress, nullInt(in.CreatedBy)))
	if err != nil {
		return Project{}, db.Translate(err)
	}
	return p, nil
}

// Update applies the non-nil fields of patch.
func (r *Repository) Update(ctx context.Context, id int64, patch Patch) (Project, error) {
	p, err := scanProject(r.pool.QueryRow(ctx, `UPDATE projects SET
project_name = COALESCE($2, project_name),
description = COALESCE($3, description),
status = COALESCE($4, status),
end_date = COALESCE($5, end_date),
budget = COALESCE($6, budget),
actual_cost = COALESCE($7, actual_cost),
planned_progress = COALESCE($8, planned_progress),
actual_progress = COALESCE($9, actual_progress),
updated_at = NOW()
WHERE id=$1 RETURNING `+projectColumns, id, patch.Name, patch.Description, patch.Status, patch.EndDate,
		patch.Budget, patch.ActualCost, patch.PlannedProgress, patch.ActualProgress))
	if err != nil {
		if db.IsNoRows(err) {
			return Project{}, shared.NotFound("project", id)
		}
		return Project{}, db.Translate(err)
	}
	return p, nil
}

// Delete removes a project; referencing invoices keep their rows.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id=$1`, id)
	if err != nil {
		return db.TranslateDelete(err)
	}
	if cmd.RowsAffected() == 0 {
		return shared.NotFound("project", id)
	}
	return nil
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}
