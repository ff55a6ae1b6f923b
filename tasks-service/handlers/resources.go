package handlers

import (
	"time"

	"github.com/chepyr/go-task-manager/shared/models"
	"github.com/chepyr/go-task-manager/tasks-service/service"
	"github.com/google/uuid"
)

type categoryResource struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Color     *string   `json:"color"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type taskResource struct {
	ID          uuid.UUID           `json:"id"`
	UserID      uuid.UUID           `json:"user_id"`
	Title       string              `json:"title"`
	Description *string             `json:"description"`
	Status      models.TaskStatus   `json:"status"`
	Priority    models.TaskPriority `json:"priority"`
	DueDate     *string             `json:"due_date"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Categories  []categoryResource  `json:"categories"`
}

type pageMeta struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	From        int `json:"from"`
	To          int `json:"to"`
}

type dataResponse struct {
	Data any `json:"data"`
}

type taskPageResponse struct {
	Data []taskResource `json:"data"`
	Meta pageMeta       `json:"meta"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func newCategoryResource(c *models.Category) categoryResource {
	return categoryResource{
		ID:        c.ID,
		Name:      c.Name,
		Color:     c.Color,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func newCategoryResources(categories []*models.Category) []categoryResource {
	out := make([]categoryResource, 0, len(categories))
	for _, c := range categories {
		out = append(out, newCategoryResource(c))
	}
	return out
}

func newTaskResource(t *models.Task) taskResource {
	res := taskResource{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		Categories:  newCategoryResources(t.Categories),
	}
	if t.DueDate != nil {
		d := t.DueDate.Format(time.DateOnly)
		res.DueDate = &d
	}
	return res
}

func newTaskPageResponse(page *service.TaskPage) taskPageResponse {
	data := make([]taskResource, 0, len(page.Tasks))
	for _, t := range page.Tasks {
		data = append(data, newTaskResource(t))
	}
	return taskPageResponse{
		Data: data,
		Meta: pageMeta{
			CurrentPage: page.Page,
			LastPage:    page.LastPage(),
			PerPage:     page.PerPage,
			Total:       page.Total,
			From:        page.From(),
			To:          page.To(),
		},
	}
}
