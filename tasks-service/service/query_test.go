package service

import (
	"net/url"
	"testing"

	"github.com/chepyr/go-task-manager/shared/models"
)

func TestParseListQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  ListQuery
	}{
		{"defaults", "", ListQuery{SortBy: "created_at", Page: 1}},
		{"bogus status ignored", "status=bogus", ListQuery{SortBy: "created_at", Page: 1}},
		{"valid filters", "status=completed&priority=high", ListQuery{
			Status: models.TaskStatusCompleted, Priority: models.TaskPriorityHigh, SortBy: "created_at", Page: 1,
		}},
		{"bogus priority ignored", "priority=urgent", ListQuery{SortBy: "created_at", Page: 1}},
		{"title asc", "sort_by=title&sort_order=asc", ListQuery{SortBy: "title", Ascending: true, Page: 1}},
		{"unknown sort keeps order", "sort_by=password&sort_order=asc", ListQuery{SortBy: "created_at", Ascending: true, Page: 1}},
		{"bad order is desc", "sort_by=due_date&sort_order=sideways", ListQuery{SortBy: "due_date", Page: 1}},
		{"page", "page=3", ListQuery{SortBy: "created_at", Page: 3}},
		{"bad page", "page=abc", ListQuery{SortBy: "created_at", Page: 1}},
		{"negative page", "page=-2", ListQuery{SortBy: "created_at", Page: 1}},
		{"huge page clamped", "page=922337203685477582", ListQuery{SortBy: "created_at", Page: MaxPage}},
		{"page beyond int", "page=99999999999999999999999", ListQuery{SortBy: "created_at", Page: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatalf("parse query: %v", err)
			}
			if got := ParseListQuery(values); got != tt.want {
				t.Errorf("ParseListQuery(%q) = %+v, want %+v", tt.query, got, tt.want)
			}
		})
	}
}

func TestTaskPageBounds(t *testing.T) {
	tasks := make([]*models.Task, 2)
	page := &TaskPage{Tasks: tasks, Page: 2, PerPage: 10, Total: 12}
	if page.LastPage() != 2 || page.From() != 11 || page.To() != 12 {
		t.Errorf("last/from/to = %d/%d/%d, want 2/11/12", page.LastPage(), page.From(), page.To())
	}

	empty := &TaskPage{Page: 5, PerPage: 10, Total: 0}
	if empty.LastPage() != 1 || empty.From() != 0 || empty.To() != 0 {
		t.Errorf("empty last/from/to = %d/%d/%d, want 1/0/0", empty.LastPage(), empty.From(), empty.To())
	}
}
