package service

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/chepyr/go-task-manager/internal/policy"
	"github.com/chepyr/go-task-manager/internal/testutil"
	"github.com/chepyr/go-task-manager/shared/models"
	"github.com/chepyr/go-task-manager/tasks-service/db"
	"github.com/google/uuid"
)

type fixture struct {
	tasks      *TaskService
	categories *CategoryService
	alice      models.Caller
	bob        models.Caller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := testutil.NewDB(t)
	return &fixture{
		tasks:      NewTaskService(db.NewTaskRepository(conn)),
		categories: NewCategoryService(db.NewCategoryRepository(conn)),
		alice:      testutil.Caller(testutil.CreateUser(t, conn, "alice@example.com")),
		bob:        testutil.Caller(testutil.CreateUser(t, conn, "bob@example.com")),
	}
}

func (f *fixture) createTask(t *testing.T, caller models.Caller, title string, categoryIDs ...uuid.UUID) *models.Task {
	t.Helper()
	in := NewTask{
		Title:       title,
		Status:      models.TaskStatusNotStarted,
		Priority:    models.TaskPriorityMedium,
		CategoryIDs: categoryIDs,
	}
	task, err := f.tasks.Create(context.Background(), caller, in)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func (f *fixture) createCategory(t *testing.T, caller models.Caller, name string) *models.Category {
	t.Helper()
	category, err := f.categories.Create(context.Background(), caller, CategoryFields{Name: &name})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	return category
}

func TestTaskService_OwnerIsImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.createTask(t, f.alice, "Alice's task")
	if task.UserID != f.alice.UserID {
		t.Fatalf("owner = %s, want caller", task.UserID)
	}

	title := "Renamed"
	updated, err := f.tasks.Update(ctx, f.alice, task.ID, TaskChanges{Title: &title})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.UserID != f.alice.UserID || updated.Title != "Renamed" {
		t.Errorf("unexpected task after update: %+v", updated)
	}

	if _, err := f.tasks.Update(ctx, f.bob, task.ID, TaskChanges{Title: &title}); !errors.Is(err, policy.ErrForbidden) {
		t.Errorf("update by non-owner: want ErrForbidden, got %v", err)
	}
}

func TestTaskService_ListIsolation(t *testing.T) {
	f := newFixture(t)
	f.createTask(t, f.alice, "a1")
	f.createTask(t, f.alice, "a2")
	f.createTask(t, f.bob, "b1")

	page, err := f.tasks.List(context.Background(), f.alice, ParseListQuery(nil))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 2 || len(page.Tasks) != 2 {
		t.Fatalf("alice sees %d/%d tasks, want 2", len(page.Tasks), page.Total)
	}
	for _, task := range page.Tasks {
		if task.UserID != f.alice.UserID {
			t.Errorf("listing leaked task %q of %s", task.Title, task.UserID)
		}
	}
}

func TestTaskService_ListPagePastEnd(t *testing.T) {
	f := newFixture(t)
	f.createTask(t, f.alice, "a1")
	f.createTask(t, f.alice, "a2")

	for _, raw := range []string{"2", "922337203685477582"} {
		page, err := f.tasks.List(context.Background(), f.alice, ParseListQuery(url.Values{"page": {raw}}))
		if err != nil {
			t.Fatalf("List page=%s: %v", raw, err)
		}
		if len(page.Tasks) != 0 || page.Total != 2 {
			t.Errorf("page=%s: got %d tasks of %d, want 0 of 2", raw, len(page.Tasks), page.Total)
		}
		if page.From() != 0 || page.To() != 0 || page.LastPage() != 1 {
			t.Errorf("page=%s: from/to/last = %d/%d/%d, want 0/0/1", raw, page.From(), page.To(), page.LastPage())
		}
	}
}

func TestTaskService_ForeignAccessIsForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.createTask(t, f.alice, "private")

	if _, err := f.tasks.Get(ctx, f.bob, task.ID); !errors.Is(err, policy.ErrForbidden) {
		t.Errorf("Get: want ErrForbidden, got %v", err)
	}
	if _, err := f.tasks.Delete(ctx, f.bob, task.ID); !errors.Is(err, policy.ErrForbidden) {
		t.Errorf("Delete: want ErrForbidden, got %v", err)
	}
	if _, err := f.tasks.Get(ctx, f.alice, task.ID); err != nil {
		t.Errorf("task must survive a forbidden delete: %v", err)
	}
	if _, err := f.tasks.Get(ctx, f.alice, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: want ErrNotFound, got %v", err)
	}

	category := f.createCategory(t, f.alice, "Work")
	if _, err := f.categories.Get(ctx, f.bob, category.ID); !errors.Is(err, policy.ErrForbidden) {
		t.Errorf("category Get: want ErrForbidden, got %v", err)
	}
	if err := f.categories.Delete(ctx, f.bob, category.ID); !errors.Is(err, policy.ErrForbidden) {
		t.Errorf("category Delete: want ErrForbidden, got %v", err)
	}
}

func TestTaskService_ForeignCategoriesDropped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mine := f.createCategory(t, f.alice, "Mine")
	theirs := f.createCategory(t, f.bob, "Theirs")

	task := f.createTask(t, f.alice, "mixed", mine.ID, theirs.ID)
	if len(task.Categories) != 1 || task.Categories[0].ID != mine.ID {
		t.Fatalf("categories = %+v, want only Mine", task.Categories)
	}

	updated, err := f.tasks.Update(ctx, f.alice, task.ID, TaskChanges{CategoryIDs: []uuid.UUID{theirs.ID}})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(updated.Categories) != 0 {
		t.Errorf("categories after foreign-only sync = %+v, want none", updated.Categories)
	}
}

func TestTaskService_ListSorting(t *testing.T) {
	f := newFixture(t)
	for _, title := range []string{"b", "c", "a"} {
		f.createTask(t, f.alice, title)
	}

	page, err := f.tasks.List(context.Background(), f.alice, ListQuery{SortBy: db.SortTitle, Ascending: true, Page: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var got []string
	for _, task := range page.Tasks {
		got = append(got, task.Title)
	}
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("titles = %v, want [a b c]", got)
	}
}

func TestCategoryService_DeleteDetachesTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	category := f.createCategory(t, f.alice, "Shared")
	var ids []uuid.UUID
	for _, title := range []string{"one", "two", "three"} {
		ids = append(ids, f.createTask(t, f.alice, title, category.ID).ID)
	}

	if err := f.categories.Delete(ctx, f.alice, category.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	for _, id := range ids {
		task, err := f.tasks.Get(ctx, f.alice, id)
		if err != nil {
			t.Fatalf("task %s gone after category delete: %v", id, err)
		}
		if len(task.Categories) != 0 {
			t.Errorf("task %s still has categories %+v", id, task.Categories)
		}
	}
	if _, err := f.categories.Get(ctx, f.alice, category.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("category Get after delete: want ErrNotFound, got %v", err)
	}
}

func TestCategoryService_UpdateKeepsUnsetFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	color := "#112233"
	name := "Work"
	category, err := f.categories.Create(ctx, f.alice, CategoryFields{Name: &name, Color: &color})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	renamed := "Office"
	updated, err := f.categories.Update(ctx, f.alice, category.ID, CategoryFields{Name: &renamed})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "Office" || updated.Color == nil || *updated.Color != "#112233" {
		t.Errorf("unexpected category: %+v", updated)
	}

	list, err := f.categories.List(ctx, f.bob)
	if err != nil || len(list) != 0 {
		t.Errorf("bob sees %d categories (err %v), want 0", len(list), err)
	}
}
