// Package audit exposes the backend's audit trail: a filtered, paginated
// list and a CSV export.
package audit

import (
	"net/url"
	"strings"
	"time"

	"github.com/grantdesk/grantdesk/internal/listing"
	"github.com/grantdesk/grantdesk/internal/shared"
)

// Log is one audit entry recorded by the backend.
type Log struct {
	ID       string    `json:"id"`
	At       time.Time `json:"at"`
	Actor    string    `json:"actor"`
	Action   string    `json:"action"`
	Entity   string    `json:"entity"`
	EntityID string    `json:"entity_id"`
	Detail   string    `json:"detail"`
}

// ListConfig is the /logs list configuration. Every filter is mirrored so a
// filtered view can be shared.
var ListConfig = listing.Config{
	Endpoint:          "/logs",
	DefaultSort:       "at",
	DefaultDescending: true,
	Sortable:          []string{"at", "actor", "action", "entity"},
	Filters:           []string{"actor", "entity", "action", "from", "to"},
}

// Actions are the audit actions offered in the filter.
var Actions = []string{"create", "update", "delete", "login", "logout", "upload", "download"}

// Filters is the parsed filter set of a request.
type Filters struct {
	Actor  string
	Entity string
	Action string
	From   time.Time
	To     time.Time
}

// ParseFilters reads and validates the filters of q. Dates are YYYY-MM-DD
// and from may not come after to.
func ParseFilters(q listing.Query) (Filters, error) {
	f := Filters{
		Actor:  value(q, "actor"),
		Entity: value(q, "entity"),
		Action: value(q, "action"),
	}
	verr := &shared.ValidationError{Fields: map[string]string{}}
	var err error
	if raw := value(q, "from"); raw != "" {
		if f.From, err = time.Parse(time.DateOnly, raw); err != nil {
			verr.Fields["from"] = "from must be a date (YYYY-MM-DD)"
		}
	}
	if raw := value(q, "to"); raw != "" {
		if f.To, err = time.Parse(time.DateOnly, raw); err != nil {
			verr.Fields["to"] = "to must be a date (YYYY-MM-DD)"
		}
	}
	if len(verr.Fields) == 0 && !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		verr.Fields["to"] = "to cannot be earlier than from"
	}
	if len(verr.Fields) > 0 {
		return f, verr
	}
	return f, nil
}

// Values encodes f as URL filters.
func (f Filters) Values() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("actor", f.Actor)
	set("entity", f.Entity)
	set("action", f.Action)
	if !f.From.IsZero() {
		v.Set("from", f.From.Format(time.DateOnly))
	}
	if !f.To.IsZero() {
		v.Set("to", f.To.Format(time.DateOnly))
	}
	return v
}

func value(q listing.Query, name string) string {
	v := strings.TrimSpace(q.Filters[name])
	if v == listing.FilterAll {
		return ""
	}
	return v
}
