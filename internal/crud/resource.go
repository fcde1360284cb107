package crud

import (
	"github.com/grantdesk/grantdesk/internal/listing"
	"github.com/grantdesk/grantdesk/internal/options"
)

// Column is one table column.
type Column[T any] struct {
	Key      string
	Label    string
	Sortable bool
	// Kind is a rendering hint: "", "amount", "date", "badge".
	Kind string
	// Source resolves the cell value to an option label.
	Source string
	Cell   func(T) string
}

// Field is one input of the dialog form.
type Field struct {
	Name        string
	Label       string
	Type        string // text, email, tel, date, number, textarea, select, password
	Required    bool
	Choices     []options.Option
	Source      string
	CreateOnly  bool
	Placeholder string
}

// Filter is a select above the table.
type Filter struct {
	Name    string
	Label   string
	Choices []options.Option
	Source  string
}

// Resource configures a Handler for one backend collection.
type Resource[T any] struct {
	Name     string
	Title    string
	Singular string
	// Path is where the handler is mounted in the console.
	Path    string
	List    listing.Config
	Columns []Column[T]
	Fields  []Field
	Filters []Filter
	ID      func(T) string
	Label   func(T) string
	// Values fills the edit form from a record.
	Values func(T) map[string]string
	// Build validates form values and returns the request body.
	Build func(values map[string]string, mode Mode) (any, error)
	// Manage lists the roles that may mutate; empty means everyone signed in.
	Manage []string
	// Invalidates names option sources refreshed after a mutation.
	Invalidates []string
	// NewHref replaces the create dialog with another page, such as a wizard.
	// The list query is appended as the return parameter.
	NewHref string
}

// sources returns the option sources the page needs.
func (r Resource[T]) sources() []string {
	var out []string
	for _, f := range r.Fields {
		if f.Source != "" {
			out = append(out, f.Source)
		}
	}
	for _, f := range r.Filters {
		if f.Source != "" {
			out = append(out, f.Source)
		}
	}
	for _, c := range r.Columns {
		if c.Source != "" {
			out = append(out, c.Source)
		}
	}
	return out
}

// Cell is one rendered table cell.
type Cell struct {
	Text string
	Kind string
}

// Row is one rendered table row.
type Row struct {
	ID    string
	Label string
	Cells []Cell
}

// HeaderView is a rendered column header.
type HeaderView struct {
	Key       string
	Label     string
	Sortable  bool
	Indicator string
	Href      string
}

// FieldView is a form field with its resolved choices.
type FieldView struct {
	Field
	Options []options.Option
}

// FilterView is a filter with resolved choices and the active value.
type FilterView struct {
	Filter
	Options []options.Option
	Active  string
}
