package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/chepyr/go-task-manager/shared"
	"github.com/chepyr/go-task-manager/tasks-service/service"
	"github.com/google/uuid"
)

/*
handles routes:
- GET /tasks?status=&priority=&sort_by=&sort_order=&page= - list the caller's tasks
- POST /tasks - create a new task
*/
func (h *Handler) HandleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listTasks(w, r)
	case http.MethodPost:
		h.createTask(w, r)
	default:
		shared.SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	page, err := h.Tasks.List(ctx, caller, service.ParseListQuery(r.URL.Query()))
	if err != nil {
		sendServiceError(w, err, "Task")
		return
	}
	shared.SendJSON(w, http.StatusOK, newTaskPageResponse(page))
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	var input service.CreateTaskInput
	if !decodeJSON(w, r, &input) {
		return
	}
	newTask, err := input.Validate()
	if err != nil {
		sendServiceError(w, err, "Task")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	task, err := h.Tasks.Create(ctx, caller, newTask)
	if err != nil {
		sendServiceError(w, err, "Task")
		return
	}
	h.WSHub.Broadcast(caller.UserID, EventTaskCreated, task)
	w.Header().Set("Location", "/tasks/"+task.ID.String())
	shared.SendJSON(w, http.StatusCreated, dataResponse{Data: newTaskResource(task)})
}

/*
routes:
- GET /tasks/{id},
- PUT/PATCH /tasks/{id},
- DELETE /tasks/{id}
*/
func (h *Handler) HandleTaskByID(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathID(w, r, "/tasks/", "task_id")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getTaskByID(w, r, taskID)
	case http.MethodPut, http.MethodPatch:
		h.updateTaskByID(w, r, taskID)
	case http.MethodDelete:
		h.deleteTaskByID(w, r, taskID)
	default:
		shared.SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) getTaskByID(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	task, err := h.Tasks.Get(ctx, caller, taskID)
	if err != nil {
		sendServiceError(w, err, "Task")
		return
	}
	shared.SendJSON(w, http.StatusOK, dataResponse{Data: newTaskResource(task)})
}

func (h *Handler) updateTaskByID(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	var input service.UpdateTaskInput
	if !decodeJSON(w, r, &input) {
		return
	}
	changes, err := input.Validate()
	if err != nil {
		sendServiceError(w, err, "Task")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	task, err := h.Tasks.Update(ctx, caller, taskID, changes)
	if err != nil {
		sendServiceError(w, err, "Task")
		return
	}
	h.WSHub.Broadcast(caller.UserID, EventTaskUpdated, task)
	shared.SendJSON(w, http.StatusOK, dataResponse{Data: newTaskResource(task)})
}

func (h *Handler) deleteTaskByID(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	task, err := h.Tasks.Delete(ctx, caller, taskID)
	if err != nil {
		sendServiceError(w, err, "Task")
		return
	}
	h.WSHub.Broadcast(caller.UserID, EventTaskDeleted, task)
	shared.SendJSON(w, http.StatusOK, messageResponse{Message: "Task deleted"})
}

// pathID parses the id following prefix in the request path.
func pathID(w http.ResponseWriter, r *http.Request, prefix, name string) (uuid.UUID, bool) {
	raw := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if raw == "" {
		shared.SendError(w, name+" is required", http.StatusBadRequest)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		shared.SendError(w, name+" must be a valid uuid", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
