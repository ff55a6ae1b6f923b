package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/chepyr/go-task-manager/shared"
	"github.com/chepyr/go-task-manager/tasks-service/service"
	"github.com/google/uuid"
)

/*
handles routes:
- GET /categories - list the caller's categories by name
- POST /categories - create a new category
*/
func (h *Handler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listCategories(w, r)
	case http.MethodPost:
		h.createCategory(w, r)
	default:
		shared.SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

/*
routes:
- GET /categories/{id},
- PUT/PATCH /categories/{id},
- DELETE /categories/{id}
*/
func (h *Handler) HandleCategoryByID(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := pathID(w, r, "/categories/", "category_id")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getCategory(w, r, categoryID)
	case http.MethodPut, http.MethodPatch:
		h.updateCategory(w, r, categoryID)
	case http.MethodDelete:
		h.deleteCategory(w, r, categoryID)
	default:
		shared.SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	categories, err := h.Categories.List(ctx, caller)
	if err != nil {
		sendServiceError(w, err, "Category")
		return
	}
	shared.SendJSON(w, http.StatusOK, dataResponse{Data: newCategoryResources(categories)})
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	var input service.CategoryInput
	if !decodeJSON(w, r, &input) {
		return
	}
	fields, err := input.ValidateCreate()
	if err != nil {
		sendServiceError(w, err, "Category")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	category, err := h.Categories.Create(ctx, caller, fields)
	if err != nil {
		sendServiceError(w, err, "Category")
		return
	}
	w.Header().Set("Location", "/categories/"+category.ID.String())
	shared.SendJSON(w, http.StatusCreated, dataResponse{Data: newCategoryResource(category)})
}

func (h *Handler) getCategory(w http.ResponseWriter, r *http.Request, categoryID uuid.UUID) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	category, err := h.Categories.Get(ctx, caller, categoryID)
	if err != nil {
		sendServiceError(w, err, "Category")
		return
	}
	shared.SendJSON(w, http.StatusOK, dataResponse{Data: newCategoryResource(category)})
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request, categoryID uuid.UUID) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	var input service.CategoryInput
	if !decodeJSON(w, r, &input) {
		return
	}
	fields, err := input.ValidateUpdate()
	if err != nil {
		sendServiceError(w, err, "Category")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	category, err := h.Categories.Update(ctx, caller, categoryID, fields)
	if err != nil {
		sendServiceError(w, err, "Category")
		return
	}
	shared.SendJSON(w, http.StatusOK, dataResponse{Data: newCategoryResource(category)})
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request, categoryID uuid.UUID) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Categories.Delete(ctx, caller, categoryID); err != nil {
		sendServiceError(w, err, "Category")
		return
	}
	shared.SendJSON(w, http.StatusOK, messageResponse{Message: "Category deleted"})
}
