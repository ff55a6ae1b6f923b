package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	coredb "github.com/chepyr/go-task-manager/internal/db"
	"github.com/chepyr/go-task-manager/shared/models"
	"github.com/google/uuid"
)

// Sort columns accepted by TaskFilter.SortBy.
const (
	SortTitle     = "title"
	SortDueDate   = "due_date"
	SortStatus    = "status"
	SortPriority  = "priority"
	SortCreatedAt = "created_at"
)

// TaskFilter selects one page of a user's tasks. Empty Status and Priority
// match every task.
type TaskFilter struct {
	UserID    uuid.UUID
	Status    models.TaskStatus
	Priority  models.TaskPriority
	SortBy    string
	Ascending bool
	Limit     int
	Offset    int
}

// defines methods for task db operations
type TaskRepositoryInterface interface {
	Create(ctx context.Context, task *models.Task, categoryIDs []uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	Update(ctx context.Context, task *models.Task, categoryIDs []uuid.UUID) error
	Delete(ctx context.Context, task *models.Task) error
	List(ctx context.Context, filter TaskFilter) ([]*models.Task, int, error)
}

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, user_id, title, description, status, priority, due_date, created_at, updated_at`

/*
Create inserts task and associates it with those of categoryIDs that belong to
the task owner; other ids are skipped. task.Categories is set to the result.
*/
func (r *TaskRepository) Create(ctx context.Context, task *models.Task, categoryIDs []uuid.UUID) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `INSERT INTO tasks (` + taskColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		_, err := tx.ExecContext(ctx, query,
			task.ID, task.UserID, task.Title, task.Description, task.Status, task.Priority,
			nullTime(task.DueDate), task.CreatedAt, task.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		task.Categories, err = syncCategories(ctx, tx, task, categoryIDs)
		return err
	})
}

/*
Update writes the scalar fields of task. A nil categoryIDs leaves the
associations alone; any other value, empty included, replaces them with the
owned subset of categoryIDs.
*/
func (r *TaskRepository) Update(ctx context.Context, task *models.Task, categoryIDs []uuid.UUID) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `UPDATE tasks SET title = $1, description = $2, status = $3, priority = $4,
		 due_date = $5, updated_at = $6 WHERE id = $7 AND user_id = $8`
		res, err := tx.ExecContext(ctx, query,
			task.Title, task.Description, task.Status, task.Priority,
			nullTime(task.DueDate), task.UpdatedAt, task.ID, task.UserID)
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return coredb.ErrNotFound
		}

		if categoryIDs == nil {
			categories, err := loadCategories(ctx, tx, []uuid.UUID{task.ID})
			if err != nil {
				return err
			}
			task.Categories = orEmpty(categories[task.ID])
			return nil
		}
		task.Categories, err = syncCategories(ctx, tx, task, categoryIDs)
		return err
	})
}

func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, coredb.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	categories, err := loadCategories(ctx, r.db, []uuid.UUID{task.ID})
	if err != nil {
		return nil, err
	}
	task.Categories = orEmpty(categories[task.ID])
	return task, nil
}

// Delete removes the task and its category associations.
func (r *TaskRepository) Delete(ctx context.Context, task *models.Task) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM category_task WHERE task_id = $1`, task.ID); err != nil {
			return fmt.Errorf("detach categories: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, task.ID, task.UserID)
		if err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return coredb.ErrNotFound
		}
		return nil
	})
}

// List returns one page of the user's tasks, each with its categories, and the
// number of tasks matching the filter across all pages.
func (r *TaskRepository) List(ctx context.Context, filter TaskFilter) ([]*models.Task, int, error) {
	where := []string{"user_id = $1"}
	args := []any{filter.UserID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		where = append(where, fmt.Sprintf("priority = $%d", len(args)))
	}
	whereClause := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks` + whereClause +
		` ORDER BY ` + orderClause(filter.SortBy, filter.Ascending) +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*models.Task{}
	ids := []uuid.UUID{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, task)
		ids = append(ids, task.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	categories, err := loadCategories(ctx, r.db, ids)
	if err != nil {
		return nil, 0, err
	}
	for _, task := range tasks {
		task.Categories = orEmpty(categories[task.ID])
	}
	return tasks, total, nil
}

// orderClause maps a sort key to SQL. Unknown keys sort by creation time.
// Enumerations sort by rank, tasks without a due date come last, and id
// breaks ties so that pages never overlap.
func orderClause(sortBy string, ascending bool) string {
	dir := "DESC"
	if ascending {
		dir = "ASC"
	}
	switch sortBy {
	case SortTitle:
		return "title " + dir + ", id " + dir
	case SortDueDate:
		return "(due_date IS NULL) ASC, due_date " + dir + ", id " + dir
	case SortStatus:
		return rankExpr("status", statusNames()) + " " + dir + ", id " + dir
	case SortPriority:
		return rankExpr("priority", priorityNames()) + " " + dir + ", id " + dir
	default:
		return "created_at " + dir + ", id " + dir
	}
}

func rankExpr(column string, values []string) string {
	var b strings.Builder
	b.WriteString("CASE " + column)
	for i, v := range values {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", v, i)
	}
	fmt.Fprintf(&b, " ELSE %d END", len(values))
	return b.String()
}

func statusNames() []string {
	names := make([]string, len(models.TaskStatuses))
	for i, s := range models.TaskStatuses {
		names[i] = string(s)
	}
	return names
}

func priorityNames() []string {
	names := make([]string, len(models.TaskPriorities))
	for i, p := range models.TaskPriorities {
		names[i] = string(p)
	}
	return names
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	task := &models.Task{}
	var dueDate sql.NullTime
	err := row.Scan(&task.ID, &task.UserID, &task.Title, &task.Description, &task.Status,
		&task.Priority, &dueDate, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if dueDate.Valid {
		d := dueDate.Time.UTC()
		task.DueDate = &d
	}
	return task, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func orEmpty(categories []*models.Category) []*models.Category {
	if categories == nil {
		return []*models.Category{}
	}
	return categories
}
