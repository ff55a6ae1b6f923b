package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coredb "github.com/chepyr/go-task-manager/internal/db"
	"github.com/chepyr/go-task-manager/internal/policy"
	"github.com/chepyr/go-task-manager/shared/models"
	"github.com/chepyr/go-task-manager/tasks-service/db"
	"github.com/google/uuid"
)

type CategoryService struct {
	categories db.CategoryRepositoryInterface
	policy     policy.Policy[*models.Category]
	now        func() time.Time
}

func NewCategoryService(categories db.CategoryRepositoryInterface) *CategoryService {
	return &CategoryService{
		categories: categories,
		policy:     policy.CategoryPolicy{},
		now:        time.Now,
	}
}

// List returns the caller's categories ordered by name.
func (s *CategoryService) List(ctx context.Context, caller models.Caller) ([]*models.Category, error) {
	if err := policy.Authorize(s.policy, policy.ActionViewAny, caller, nil); err != nil {
		return nil, err
	}
	categories, err := s.categories.ListByUserID(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (s *CategoryService) Get(ctx context.Context, caller models.Caller, id uuid.UUID) (*models.Category, error) {
	return s.find(ctx, caller, policy.ActionView, id)
}

func (s *CategoryService) Create(ctx context.Context, caller models.Caller, fields CategoryFields) (*models.Category, error) {
	if err := policy.Authorize(s.policy, policy.ActionCreate, caller, nil); err != nil {
		return nil, err
	}
	if fields.Name == nil {
		return nil, errors.New("create category: name is required")
	}

	now := s.now().UTC()
	category := &models.Category{
		ID:        uuid.New(),
		UserID:    caller.UserID,
		Name:      *fields.Name,
		Color:     fields.Color,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return category, nil
}

func (s *CategoryService) Update(ctx context.Context, caller models.Caller, id uuid.UUID, fields CategoryFields) (*models.Category, error) {
	category, err := s.find(ctx, caller, policy.ActionUpdate, id)
	if err != nil {
		return nil, err
	}

	if fields.Name != nil {
		category.Name = *fields.Name
	}
	if fields.Color != nil {
		category.Color = fields.Color
	}
	category.UpdatedAt = s.now().UTC()
	if err := s.categories.Update(ctx, category); err != nil {
		if errors.Is(err, coredb.ErrNotFound) {
			return nil, fmt.Errorf("category %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("update category: %w", err)
	}
	return category, nil
}

// Delete removes a category of caller. Its tasks are kept and only lose the
// association.
func (s *CategoryService) Delete(ctx context.Context, caller models.Caller, id uuid.UUID) error {
	category, err := s.find(ctx, caller, policy.ActionDelete, id)
	if err != nil {
		return err
	}
	detached, err := s.categories.Delete(ctx, category)
	if errors.Is(err, coredb.ErrNotFound) {
		return fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	slog.Debug("category deleted", "category_id", id, "detached_tasks", detached)
	return nil
}

func (s *CategoryService) find(ctx context.Context, caller models.Caller, action policy.Action, id uuid.UUID) (*models.Category, error) {
	category, err := s.categories.GetByID(ctx, id)
	if errors.Is(err, coredb.ErrNotFound) {
		return nil, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	if err := policy.Authorize(s.policy, action, caller, category); err != nil {
		return nil, err
	}
	return category, nil
}
