// Package service holds the task and category use cases. Every call takes the
// caller explicitly; single-record operations look the record up by id and
// then consult the ownership policy.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	coredb "github.com/chepyr/go-task-manager/internal/db"
	"github.com/chepyr/go-task-manager/internal/policy"
	"github.com/chepyr/go-task-manager/shared/models"
	"github.com/chepyr/go-task-manager/tasks-service/db"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

type TaskService struct {
	tasks  db.TaskRepositoryInterface
	policy policy.Policy[*models.Task]
	now    func() time.Time
}

func NewTaskService(tasks db.TaskRepositoryInterface) *TaskService {
	return &TaskService{
		tasks:  tasks,
		policy: policy.TaskPolicy{},
		now:    time.Now,
	}
}

func (s *TaskService) List(ctx context.Context, caller models.Caller, q ListQuery) (*TaskPage, error) {
	if err := policy.Authorize(s.policy, policy.ActionViewAny, caller, nil); err != nil {
		return nil, err
	}

	page := min(max(q.Page, 1), MaxPage)
	tasks, total, err := s.tasks.List(ctx, db.TaskFilter{
		UserID:    caller.UserID,
		Status:    q.Status,
		Priority:  q.Priority,
		SortBy:    q.SortBy,
		Ascending: q.Ascending,
		Limit:     PageSize,
		Offset:    (page - 1) * PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return &TaskPage{Tasks: tasks, Page: page, PerPage: PageSize, Total: total}, nil
}

func (s *TaskService) Get(ctx context.Context, caller models.Caller, id uuid.UUID) (*models.Task, error) {
	return s.find(ctx, caller, policy.ActionView, id)
}

// Create stores a task owned by caller. Category ids the caller does not own
// are dropped.
func (s *TaskService) Create(ctx context.Context, caller models.Caller, in NewTask) (*models.Task, error) {
	if err := policy.Authorize(s.policy, policy.ActionCreate, caller, nil); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	task := &models.Task{
		ID:          uuid.New(),
		UserID:      caller.UserID,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tasks.Create(ctx, task, in.CategoryIDs); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

// Update applies changes to a task of caller. The owner never changes.
func (s *TaskService) Update(ctx context.Context, caller models.Caller, id uuid.UUID, changes TaskChanges) (*models.Task, error) {
	task, err := s.find(ctx, caller, policy.ActionUpdate, id)
	if err != nil {
		return nil, err
	}

	changes.apply(task)
	task.UpdatedAt = s.now().UTC()
	if err := s.tasks.Update(ctx, task, changes.CategoryIDs); err != nil {
		if errors.Is(err, coredb.ErrNotFound) {
			return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("update task: %w", err)
	}
	return task, nil
}

// Delete removes a task of caller and returns it as it was.
func (s *TaskService) Delete(ctx context.Context, caller models.Caller, id uuid.UUID) (*models.Task, error) {
	task, err := s.find(ctx, caller, policy.ActionDelete, id)
	if err != nil {
		return nil, err
	}
	if err := s.tasks.Delete(ctx, task); err != nil {
		if errors.Is(err, coredb.ErrNotFound) {
			return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("delete task: %w", err)
	}
	return task, nil
}

func (s *TaskService) find(ctx context.Context, caller models.Caller, action policy.Action, id uuid.UUID) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if errors.Is(err, coredb.ErrNotFound) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if err := policy.Authorize(s.policy, action, caller, task); err != nil {
		return nil, err
	}
	return task, nil
}
