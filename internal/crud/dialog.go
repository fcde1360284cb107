// Package crud implements list pages with a modal dialog for creating,
// editing and deleting single records of a backend collection.
package crud

import (
	"errors"

	"github.com/grantdesk/grantdesk/internal/backend"
	"github.com/grantdesk/grantdesk/internal/shared"
)

// Mode selects what the dialog does.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
	ModeDelete Mode = "delete"
)

// Dialog is the modal state rendered over a list page.
type Dialog struct {
	Open     bool
	Mode     Mode
	EntityID string
	Label    string
	Values   map[string]string
	Errors   map[string]string
	Message  string
}

// Closed is the dialog of a plain list page.
func Closed() Dialog {
	return Dialog{}
}

// Create opens an empty creation form.
func Create() Dialog {
	return Dialog{Open: true, Mode: ModeCreate, Values: map[string]string{}}
}

// Edit opens the form for an existing entity.
func Edit(id, label string, values map[string]string) Dialog {
	if values == nil {
		values = map[string]string{}
	}
	return Dialog{Open: true, Mode: ModeEdit, EntityID: id, Label: label, Values: values}
}

// Delete opens the delete confirmation.
func Delete(id, label string) Dialog {
	return Dialog{Open: true, Mode: ModeDelete, EntityID: id, Label: label, Values: map[string]string{}}
}

// Fail keeps the dialog open and attaches err: field messages for
// validation failures, a humanized text otherwise.
func (d Dialog) Fail(err error) Dialog {
	d.Open = true
	var verr *shared.ValidationError
	if errors.As(err, &verr) {
		d.Errors = verr.Fields
		d.Message = verr.Message
		if d.Message == "" {
			d.Message = "Please fix the highlighted fields."
		}
		return d
	}
	d.Message = backend.Humanize(err)
	return d
}

// Title is the heading of the dialog.
func (d Dialog) Title(singular string) string {
	switch d.Mode {
	case ModeCreate:
		return "New " + singular
	case ModeEdit:
		return "Edit " + singular
	case ModeDelete:
		return "Delete " + singular
	}
	return ""
}

// Value returns a form value.
func (d Dialog) Value(name string) string {
	return d.Values[name]
}

// Error returns the message attached to a field.
func (d Dialog) Error(name string) string {
	return d.Errors[name]
}

// FailureStatus is the HTTP status a failed mutation answers with.
func FailureStatus(err error) int {
	var verr *shared.ValidationError
	if errors.As(err, &verr) {
		return 422
	}
	if status := backend.StatusOf(err); status >= 400 {
		return status
	}
	return 502
}
