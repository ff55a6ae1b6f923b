package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	coredb "github.com/chepyr/go-task-manager/internal/db"
	"github.com/chepyr/go-task-manager/shared/models"
	"github.com/google/uuid"
)

// defines methods for category db operations
type CategoryRepositoryInterface interface {
	Create(ctx context.Context, category *models.Category) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Category, error)
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, category *models.Category) (int64, error)
}

type CategoryRepository struct {
	db *sql.DB
}

func NewCategoryRepository(db *sql.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

const categoryColumns = `id, user_id, name, color, created_at, updated_at`

func (r *CategoryRepository) Create(ctx context.Context, category *models.Category) error {
	query := `INSERT INTO categories (` + categoryColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, query,
		category.ID, category.UserID, category.Name, category.Color, category.CreatedAt, category.UpdatedAt)
	return err
}

func (r *CategoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`
	category := &models.Category{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&category.ID, &category.UserID, &category.Name, &category.Color,
		&category.CreatedAt, &category.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, coredb.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return category, nil
}

func (r *CategoryRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE user_id = $1 ORDER BY name ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []*models.Category{}
	for rows.Next() {
		category := &models.Category{}
		if err := rows.Scan(&category.ID, &category.UserID, &category.Name, &category.Color,
			&category.CreatedAt, &category.UpdatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

func (r *CategoryRepository) Update(ctx context.Context, category *models.Category) error {
	query := `UPDATE categories SET name = $1, color = $2, updated_at = $3 WHERE id = $4 AND user_id = $5`
	res, err := r.db.ExecContext(ctx, query,
		category.Name, category.Color, category.UpdatedAt, category.ID, category.UserID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return coredb.ErrNotFound
	}
	return nil
}

// Delete removes the category and detaches it from its tasks, which are kept.
// It returns the number of detached tasks.
func (r *CategoryRepository) Delete(ctx context.Context, category *models.Category) (int64, error) {
	var detached int64
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM category_task WHERE category_id = $1`, category.ID)
		if err != nil {
			return fmt.Errorf("detach tasks: %w", err)
		}
		detached, _ = res.RowsAffected()

		res, err = tx.ExecContext(ctx, `DELETE FROM categories WHERE id = $1 AND user_id = $2`, category.ID, category.UserID)
		if err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return coredb.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return detached, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// placeholders returns "$from, $from+1, ..." for n arguments.
func placeholders(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(parts, ", ")
}

// syncCategories replaces the associations of task with the ids in requested
// that name categories of the same owner, and returns those categories.
func syncCategories(ctx context.Context, tx *sql.Tx, task *models.Task, requested []uuid.UUID) ([]*models.Category, error) {
	if _, err := tx.ExecContext(ctx, `DELETE FROM category_task WHERE task_id = $1`, task.ID); err != nil {
		return nil, fmt.Errorf("clear categories: %w", err)
	}
	if len(requested) == 0 {
		return []*models.Category{}, nil
	}

	seen := make(map[uuid.UUID]bool, len(requested))
	args := []any{task.UserID}
	for _, id := range requested {
		if !seen[id] {
			seen[id] = true
			args = append(args, id)
		}
	}
	query := `SELECT id FROM categories WHERE user_id = $1 AND id IN (` + placeholders(2, len(args)-1) + `)`
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("owned categories: %w", err)
	}
	var owned []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		owned = append(owned, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, categoryID := range owned {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO category_task (task_id, category_id, user_id) VALUES ($1, $2, $3)`,
			task.ID, categoryID, task.UserID)
		if err != nil {
			return nil, fmt.Errorf("attach category %s: %w", categoryID, err)
		}
	}

	byTask, err := loadCategories(ctx, tx, []uuid.UUID{task.ID})
	if err != nil {
		return nil, err
	}
	return orEmpty(byTask[task.ID]), nil
}

// loadCategories fetches the categories of all taskIDs in a single query.
func loadCategories(ctx context.Context, q querier, taskIDs []uuid.UUID) (map[uuid.UUID][]*models.Category, error) {
	result := make(map[uuid.UUID][]*models.Category, len(taskIDs))
	if len(taskIDs) == 0 {
		return result, nil
	}

	args := make([]any, len(taskIDs))
	for i, id := range taskIDs {
		args[i] = id
	}
	query := `SELECT ct.task_id, c.id, c.user_id, c.name, c.color, c.created_at, c.updated_at
	 FROM category_task ct JOIN categories c ON c.id = ct.category_id
	 WHERE ct.task_id IN (` + placeholders(1, len(args)) + `)
	 ORDER BY c.name ASC, c.id ASC`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID uuid.UUID
		category := &models.Category{}
		if err := rows.Scan(&taskID, &category.ID, &category.UserID, &category.Name, &category.Color,
			&category.CreatedAt, &category.UpdatedAt); err != nil {
			return nil, err
		}
		result[taskID] = append(result[taskID], category)
	}
	return result, rows.Err()
}
