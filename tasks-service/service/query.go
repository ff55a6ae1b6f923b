package service

import (
	"math"
	"net/url"
	"strconv"

	"github.com/chepyr/go-task-manager/shared/models"
	"github.com/chepyr/go-task-manager/tasks-service/db"
)

// PageSize is the fixed number of tasks per page.
const PageSize = 10

// MaxPage bounds the page number so the row offset fits a 32-bit integer.
// Any page above it is past the end of every listing.
const MaxPage = math.MaxInt32 / PageSize

var sortKeys = map[string]bool{
	db.SortTitle:     true,
	db.SortDueDate:   true,
	db.SortStatus:    true,
	db.SortPriority:  true,
	db.SortCreatedAt: true,
}

// ListQuery is the normalised query string of GET /tasks.
type ListQuery struct {
	Status    models.TaskStatus
	Priority  models.TaskPriority
	SortBy    string
	Ascending bool
	Page      int
}

/*
ParseListQuery never fails. Filters with values outside their enumeration are
dropped, an unknown sort_by falls back to created_at, sort_order defaults to
desc, and a missing or malformed page is page 1. Pages above MaxPage are
clamped to it.
*/
func ParseListQuery(values url.Values) ListQuery {
	q := ListQuery{SortBy: db.SortCreatedAt, Page: 1}

	if s := models.TaskStatus(values.Get("status")); s.Valid() {
		q.Status = s
	}
	if p := models.TaskPriority(values.Get("priority")); p.Valid() {
		q.Priority = p
	}
	if sortBy := values.Get("sort_by"); sortKeys[sortBy] {
		q.SortBy = sortBy
	}
	q.Ascending = values.Get("sort_order") == "asc"
	if page, err := strconv.Atoi(values.Get("page")); err == nil && page > 0 {
		q.Page = min(page, MaxPage)
	}
	return q
}

// TaskPage is one page of a task listing.
type TaskPage struct {
	Tasks   []*models.Task
	Page    int
	PerPage int
	Total   int
}

func (p *TaskPage) LastPage() int {
	if p.Total == 0 {
		return 1
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// From and To are the 1-based positions of the first and last task on the
// page, zero when the page is empty.
func (p *TaskPage) From() int {
	if len(p.Tasks) == 0 {
		return 0
	}
	return (p.Page-1)*p.PerPage + 1
}

func (p *TaskPage) To() int {
	if len(p.Tasks) == 0 {
		return 0
	}
	return p.From() + len(p.Tasks) - 1
}
