package optimistic

import (
	"errors"
	"strings"

	"github.com/example/scry/pkg/models"
)

// ErrUnauthenticated is reported when the caller context carries no user
var ErrUnauthenticated = errors.New("not authenticated")

// Category groups mutation failures by what the user can do about them.
type Category string

const (
	CategoryNone            Category = ""
	CategoryUnauthenticated Category = "unauthenticated"
	CategoryUnauthorized    Category = "unauthorized"
	CategoryStale           Category = "stale"
	CategoryGeneric         Category = "generic"
)

type operation string

const (
	opEdit   operation = "edit"
	opDelete operation = "delete"
)

// Categorize maps a remote error to a category. Typed errors win; plain
// messages from remote backends are matched by text.
func Categorize(err error) Category {
	switch {
	case err == nil:
		return CategoryNone
	case errors.Is(err, ErrUnauthenticated):
		return CategoryUnauthenticated
	case errors.Is(err, models.ErrNotAuthorized):
		return CategoryUnauthorized
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrAlreadyDeleted):
		return CategoryStale
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unauthenticated"), strings.Contains(msg, "not authenticated"):
		return CategoryUnauthenticated
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "not authorized"), strings.Contains(msg, "forbidden"):
		return CategoryUnauthorized
	case strings.Contains(msg, "not found"), strings.Contains(msg, "deleted"):
		return CategoryStale
	}
	return CategoryGeneric
}

func userMessage(cat Category, op operation) string {
	switch cat {
	case CategoryUnauthenticated:
		return "Please sign in again to make changes."
	case CategoryUnauthorized:
		return "You don't have permission to change this item."
	case CategoryStale:
		return "This item no longer exists. It may have been deleted already."
	}
	if op == opDelete {
		return "Could not delete the item. Please try again."
	}
	return "Could not save your changes. Please try again."
}
