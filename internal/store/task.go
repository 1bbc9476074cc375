package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/taskdeck/apiserver/types"
)

// TaskRepository handles persistence for tasks. Lookups that take a
// userID are owner-scoped: a task belonging to someone else scans as
// ErrNotFound, indistinguishable from a task that does not exist.
type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, user_id, title, COALESCE(description, ''), completed, status, priority,
		COALESCE(start_date, ''), COALESCE(end_date, ''), category, created_at, updated_at`

func scanTask(row rowScanner) (types.Task, error) {
	var task types.Task
	err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Description,
		&task.Completed,
		&task.Status,
		&task.Priority,
		&task.StartDate,
		&task.EndDate,
		&task.Category,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Task{}, ErrNotFound
		}
		return types.Task{}, err
	}
	return task, nil
}

func (r *TaskRepository) GetForUser(ctx context.Context, id, userID int) (types.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM todos WHERE id = $1 AND user_id = $2`
	return scanTask(r.db.QueryRowContext(ctx, query, id, userID))
}

// ListByUser returns the user's tasks, newest first. A non-nil
// completed pointer filters on completion state.
func (r *TaskRepository) ListByUser(ctx context.Context, userID int, completed *bool) ([]types.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM todos WHERE user_id = $1`
	args := []any{userID}
	if completed != nil {
		query += ` AND completed = $2`
		args = append(args, *completed)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]types.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (r *TaskRepository) Create(ctx context.Context, task types.Task) (types.Task, error) {
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	const query = `
		INSERT INTO todos (user_id, title, description, completed, status, priority, start_date, end_date, category, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10, $11)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		task.UserID,
		task.Title,
		task.Description,
		task.Completed,
		task.Status,
		task.Priority,
		task.StartDate,
		task.EndDate,
		task.Category,
		task.CreatedAt,
		task.UpdatedAt,
	).Scan(&task.ID); err != nil {
		return types.Task{}, err
	}
	return task, nil
}

// Update applies a partial patch to the user's task in a single
// statement and returns the updated row. COALESCE keeps every column
// whose patch field is nil.
func (r *TaskRepository) Update(ctx context.Context, id, userID int, patch types.TaskPatch) (types.Task, error) {
	const query = `
		UPDATE todos
		SET title = COALESCE($1, title),
			description = COALESCE($2, description),
			completed = COALESCE($3, completed),
			status = COALESCE($4, status),
			priority = COALESCE($5, priority),
			start_date = COALESCE($6, start_date),
			end_date = COALESCE($7, end_date),
			category = COALESCE($8, category),
			updated_at = $9
		WHERE id = $10 AND user_id = $11
		RETURNING ` + taskColumns
	return scanTask(r.db.QueryRowContext(
		ctx,
		query,
		patch.Title,
		patch.Description,
		patch.Completed,
		patch.Status,
		patch.Priority,
		patch.StartDate,
		patch.EndDate,
		patch.Category,
		time.Now(),
		id,
		userID,
	))
}

func (r *TaskRepository) Delete(ctx context.Context, id, userID int) error {
	const query = `DELETE FROM todos WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUserAdmin returns every task owned by the given user without
// an ownership check; reserved for the admin surface.
func (r *TaskRepository) ListByUserAdmin(ctx context.Context, userID int) ([]types.Task, error) {
	return r.ListByUser(ctx, userID, nil)
}

// UserStats summarizes a single user's tasks.
type UserStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

func (r *TaskRepository) StatsByUser(ctx context.Context, userID int) (UserStats, error) {
	const query = `
		SELECT COUNT(1), COUNT(1) FILTER (WHERE completed)
		FROM todos
		WHERE user_id = $1`
	var stats UserStats
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&stats.Total, &stats.Completed); err != nil {
		return UserStats{}, err
	}
	stats.Pending = stats.Total - stats.Completed
	return stats, nil
}
