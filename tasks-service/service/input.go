package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/chepyr/go-task-manager/internal/validation"
	"github.com/chepyr/go-task-manager/shared/models"
	"github.com/google/uuid"
)

const maxNameLen = 255

// CreateTaskInput is the body of POST /tasks.
type CreateTaskInput struct {
	Title       *string                       `json:"title"`
	Description *string                       `json:"description"`
	Status      *models.TaskStatus            `json:"status"`
	Priority    *models.TaskPriority          `json:"priority"`
	DueDate     *string                       `json:"due_date"`
	CategoryIDs validation.Optional[[]string] `json:"category_ids"`
}

// NewTask holds validated values for a task about to be created.
type NewTask struct {
	Title       string
	Description *string
	Status      models.TaskStatus
	Priority    models.TaskPriority
	DueDate     *time.Time
	CategoryIDs []uuid.UUID
}

func (in CreateTaskInput) Validate() (NewTask, error) {
	errs := validation.Errors{}
	out := NewTask{
		Description: in.Description,
		Status:      models.TaskStatusNotStarted,
		Priority:    models.TaskPriorityMedium,
	}

	if in.Title == nil {
		errs.Add("title", requiredMsg("title"))
	} else {
		out.Title = checkName(errs, "title", *in.Title)
	}
	if in.Status != nil {
		out.Status = *in.Status
		checkStatus(errs, out.Status)
	}
	if in.Priority != nil {
		out.Priority = *in.Priority
		checkPriority(errs, out.Priority)
	}
	if in.DueDate != nil {
		out.DueDate = checkDate(errs, *in.DueDate)
	}
	if in.CategoryIDs.Set {
		out.CategoryIDs = checkIDs(errs, in.CategoryIDs.Value)
	}
	return out, errs.Err()
}

// UpdateTaskInput is the body of PUT /tasks/{id}. Absent fields are left as
// they are; description and due_date may be cleared with null.
type UpdateTaskInput struct {
	Title       validation.Optional[string]              `json:"title"`
	Description validation.Optional[string]              `json:"description"`
	Status      validation.Optional[models.TaskStatus]   `json:"status"`
	Priority    validation.Optional[models.TaskPriority] `json:"priority"`
	DueDate     validation.Optional[string]              `json:"due_date"`
	CategoryIDs validation.Optional[[]string]            `json:"category_ids"`
}

// TaskChanges holds validated values for a partial update. Nil pointers mean
// "unchanged" except where a Set flag says otherwise. A nil CategoryIDs leaves
// the associations untouched.
type TaskChanges struct {
	Title          *string
	SetDescription bool
	Description    *string
	Status         *models.TaskStatus
	Priority       *models.TaskPriority
	SetDueDate     bool
	DueDate        *time.Time
	CategoryIDs    []uuid.UUID
}

func (in UpdateTaskInput) Validate() (TaskChanges, error) {
	errs := validation.Errors{}
	var out TaskChanges

	if in.Title.Set {
		if in.Title.Null {
			errs.Add("title", requiredMsg("title"))
		} else {
			title := checkName(errs, "title", in.Title.Value)
			out.Title = &title
		}
	}
	if in.Description.Set {
		out.SetDescription = true
		if !in.Description.Null {
			out.Description = &in.Description.Value
		}
	}
	if in.Status.Set {
		checkStatus(errs, in.Status.Value)
		out.Status = &in.Status.Value
	}
	if in.Priority.Set {
		checkPriority(errs, in.Priority.Value)
		out.Priority = &in.Priority.Value
	}
	if in.DueDate.Set {
		out.SetDueDate = true
		if !in.DueDate.Null {
			out.DueDate = checkDate(errs, in.DueDate.Value)
		}
	}
	if in.CategoryIDs.Set {
		out.CategoryIDs = checkIDs(errs, in.CategoryIDs.Value)
	}
	return out, errs.Err()
}

func (c TaskChanges) apply(task *models.Task) {
	if c.Title != nil {
		task.Title = *c.Title
	}
	if c.SetDescription {
		task.Description = c.Description
	}
	if c.Status != nil {
		task.Status = *c.Status
	}
	if c.Priority != nil {
		task.Priority = *c.Priority
	}
	if c.SetDueDate {
		task.DueDate = c.DueDate
	}
}

// CategoryInput is the body of POST /categories and PUT /categories/{id}.
type CategoryInput struct {
	Name  validation.Optional[string] `json:"name"`
	Color validation.Optional[string] `json:"color"`
}

// CategoryFields holds validated category values. A nil field is unchanged
// on update and unset on create.
type CategoryFields struct {
	Name  *string
	Color *string
}

// ValidateCreate requires a name.
func (in CategoryInput) ValidateCreate() (CategoryFields, error) {
	return in.validate(true)
}

// ValidateUpdate checks only the fields present in the body.
func (in CategoryInput) ValidateUpdate() (CategoryFields, error) {
	return in.validate(false)
}

func (in CategoryInput) validate(requireName bool) (CategoryFields, error) {
	errs := validation.Errors{}
	var out CategoryFields

	switch {
	case !in.Name.Set:
		if requireName {
			errs.Add("name", requiredMsg("name"))
		}
	case in.Name.Null:
		errs.Add("name", requiredMsg("name"))
	default:
		name := checkName(errs, "name", in.Name.Value)
		out.Name = &name
	}

	if in.Color.Set {
		switch {
		case in.Color.Null:
			errs.Add("color", "The color field must be a string.")
		case !validation.IsHexColor(in.Color.Value):
			errs.Add("color", "The color field must be a hex color such as #FF5733.")
		default:
			color := strings.ToUpper(in.Color.Value)
			out.Color = &color
		}
	}
	return out, errs.Err()
}

func requiredMsg(field string) string {
	return fmt.Sprintf("The %s field is required.", field)
}

func checkName(errs validation.Errors, field, value string) string {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		errs.Add(field, requiredMsg(field))
	case !validation.MaxLen(value, maxNameLen):
		errs.Add(field, fmt.Sprintf("The %s field must not be greater than %d characters.", field, maxNameLen))
	}
	return value
}

func checkStatus(errs validation.Errors, s models.TaskStatus) {
	if !s.Valid() {
		errs.Add("status", "The selected status is invalid.")
	}
}

func checkPriority(errs validation.Errors, p models.TaskPriority) {
	if !p.Valid() {
		errs.Add("priority", "The selected priority is invalid.")
	}
}

func checkDate(errs validation.Errors, value string) *time.Time {
	d, err := validation.ParseDate(value)
	if err != nil {
		errs.Add("due_date", "The due date field must be a valid date.")
		return nil
	}
	return &d
}

// checkIDs parses category ids. The result is never nil, so a present but
// empty or null list still replaces the associations.
func checkIDs(errs validation.Errors, raw []string) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(raw))
	for i, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			errs.Add(fmt.Sprintf("category_ids.%d", i), "The selected category id is invalid.")
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
