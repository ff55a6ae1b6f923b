// Package policy is the authorization gate: it decides whether a caller may
// perform an action on a record. Policies are pure predicates; they never touch
// storage. Listing is scoped to the caller by the repositories, not here.
package policy

import (
	"errors"
	"fmt"

	"github.com/chepyr/go-task-manager/shared/models"
	"github.com/google/uuid"
)

var ErrForbidden = errors.New("forbidden")

type Action string

const (
	ActionViewAny Action = "viewAny"
	ActionView    Action = "view"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
)

type Policy[E any] interface {
	ViewAny(caller models.Caller) bool
	View(caller models.Caller, entity E) bool
	Create(caller models.Caller) bool
	Update(caller models.Caller, entity E) bool
	Delete(caller models.Caller, entity E) bool
}

// Owned is implemented by every record that belongs to exactly one user.
type Owned interface {
	OwnerID() uuid.UUID
}

// OwnerPolicy lets any authenticated caller list and create, and restricts
// view, update and delete to the record's owner.
type OwnerPolicy[E Owned] struct{}

func (OwnerPolicy[E]) ViewAny(caller models.Caller) bool { return authenticated(caller) }

func (OwnerPolicy[E]) Create(caller models.Caller) bool { return authenticated(caller) }

func (OwnerPolicy[E]) View(caller models.Caller, entity E) bool { return owns(caller, entity) }

func (OwnerPolicy[E]) Update(caller models.Caller, entity E) bool { return owns(caller, entity) }

func (OwnerPolicy[E]) Delete(caller models.Caller, entity E) bool { return owns(caller, entity) }

type (
	TaskPolicy     = OwnerPolicy[*models.Task]
	CategoryPolicy = OwnerPolicy[*models.Category]
)

func authenticated(caller models.Caller) bool {
	return caller.UserID != uuid.Nil
}

func owns(caller models.Caller, entity Owned) bool {
	return authenticated(caller) && entity.OwnerID() == caller.UserID
}

// Authorize dispatches action to p and returns an error wrapping ErrForbidden
// when it is denied. entity is ignored for viewAny and create.
func Authorize[E any](p Policy[E], action Action, caller models.Caller, entity E) error {
	var allowed bool
	switch action {
	case ActionViewAny:
		allowed = p.ViewAny(caller)
	case ActionCreate:
		allowed = p.Create(caller)
	case ActionView:
		allowed = p.View(caller, entity)
	case ActionUpdate:
		allowed = p.Update(caller, entity)
	case ActionDelete:
		allowed = p.Delete(caller, entity)
	default:
		return fmt.Errorf("%w: unknown action %q", ErrForbidden, action)
	}
	if !allowed {
		return fmt.Errorf("%w: %s", ErrForbidden, action)
	}
	return nil
}
