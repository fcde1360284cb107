// Package listing implements the server-backed paginated, sortable,
// searchable and filterable list state shared by every console page.
package listing

import (
	"net/url"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/grantdesk/grantdesk/internal/backend"
)

// FilterAll is the selector value meaning "no filter".
const FilterAll = "all"

// DefaultLimit is the page size used when none is requested.
const DefaultLimit = 10

// Limits are the page sizes a user may pick.
var Limits = []int{10, 25, 50, 100}

// AllowedLimit reports whether n is one of Limits.
func AllowedLimit(n int) bool {
	return slices.Contains(Limits, n)
}

// Config parameterizes a list for one resource collection.
type Config struct {
	Endpoint          string
	DefaultSort       string
	DefaultDescending bool
	// Sortable restricts the sort fields accepted from URLs. Empty accepts any.
	Sortable []string
	// Filters are the equality filters recognised in URLs.
	Filters        []string
	DefaultFilters map[string]string
}

// Defaults returns the query a fresh page starts from.
func (c Config) Defaults() Query {
	q := Query{
		Limit:      DefaultLimit,
		Sort:       c.DefaultSort,
		Descending: c.DefaultDescending,
		Filters:    map[string]string{},
	}
	for k, v := range c.DefaultFilters {
		q.Filters[k] = v
	}
	return q
}

// Query is the canonical state of one paginated view.
type Query struct {
	// Offset is the page index, not a row offset.
	Offset     int
	Limit      int
	Sort       string
	Descending bool
	Search     string
	Filters    map[string]string
}

func (q Query) clone() Query {
	out := q
	out.Filters = make(map[string]string, len(q.Filters))
	for k, v := range q.Filters {
		out.Filters[k] = v
	}
	return out
}

// WithSort toggles the direction when field is already the sort field.
// A different field keeps the direction and resets the offset.
func (q Query) WithSort(field string) Query {
	out := q.clone()
	if field == q.Sort {
		out.Descending = !q.Descending
		return out
	}
	out.Sort = field
	out.Offset = 0
	return out
}

// WithSearch sets the search text and resets the offset.
func (q Query) WithSearch(text string) Query {
	out := q.clone()
	out.Search = strings.TrimSpace(text)
	out.Offset = 0
	return out
}

// WithFilter sets or clears one filter and resets the offset. FilterAll and
// the empty string clear the filter.
func (q Query) WithFilter(name, value string) Query {
	out := q.clone()
	value = strings.TrimSpace(value)
	if value == "" || value == FilterAll {
		delete(out.Filters, name)
	} else {
		out.Filters[name] = value
	}
	out.Offset = 0
	return out
}

// WithPage moves to page index p. Bounds are the caller's concern.
func (q Query) WithPage(p int) Query {
	out := q.clone()
	out.Offset = p
	return out
}

// WithLimit sets the page size and resets the offset. Sizes outside Limits
// leave the query unchanged.
func (q Query) WithLimit(n int) Query {
	if !AllowedLimit(n) {
		return q.clone()
	}
	out := q.clone()
	out.Limit = n
	out.Offset = 0
	return out
}

// Cleared drops search and filters back to cfg defaults and resets the
// offset. Sort and page size are kept.
func (q Query) Cleared(cfg Config) Query {
	out := q.clone()
	out.Search = ""
	out.Filters = cfg.Defaults().Filters
	out.Offset = 0
	return out
}

// Filter returns the value of one filter, or FilterAll.
func (q Query) Filter(name string) string {
	if v, ok := q.Filters[name]; ok && v != "" {
		return v
	}
	return FilterAll
}

// Params translates the page index into the backend's row offset.
func (q Query) Params() backend.ListParams {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	filters := make(map[string]string, len(q.Filters))
	for k, v := range q.Filters {
		filters[k] = v
	}
	return backend.ListParams{
		Offset:     q.Offset * limit,
		Limit:      limit,
		Sort:       q.Sort,
		Descending: q.Descending,
		Search:     q.Search,
		Filters:    filters,
	}
}

// Values encodes the state that differs from cfg defaults. It is the
// address bar form of the query: navigation links use it, and a list
// requested under any other spelling is redirected to it. An empty search
// is omitted rather than written empty.
func (q Query) Values(cfg Config) url.Values {
	v := url.Values{}
	def := cfg.Defaults()
	if q.Offset != 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Limit != 0 && q.Limit != def.Limit {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Sort != def.Sort || q.Descending != def.Descending {
		if q.Sort != "" {
			v.Set("sort", q.Sort)
		}
		if q.Descending {
			v.Set("desc", "desc")
		} else {
			v.Set("desc", "asc")
		}
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	for _, name := range sortedKeys(q.Filters) {
		if val := q.Filters[name]; val != "" && val != def.Filters[name] {
			v.Set(name, val)
		}
	}
	for name, val := range def.Filters {
		if _, ok := q.Filters[name]; !ok && val != "" {
			v.Set(name, FilterAll)
		}
	}
	return v
}

// Canonical returns the address of the state raw parses to under base,
// plus the raw parameters named in keep, and whether raw already spells it
// that way. List pages redirect to it so the address bar mirrors the state:
// an empty search or parameters equal to the defaults are dropped.
func Canonical(base string, cfg Config, raw url.Values, keep ...string) (string, bool) {
	v := ParseQuery(raw, cfg).Values(cfg)
	for _, k := range keep {
		if vals, ok := raw[k]; ok {
			v[k] = vals
		}
	}
	target := base
	if len(v) > 0 {
		target += "?" + v.Encode()
	}
	return target, v.Encode() == raw.Encode()
}

// ParseQuery restores a query from URL values. Invalid values fall back to
// cfg defaults.
func ParseQuery(values url.Values, cfg Config) Query {
	q := cfg.Defaults()
	if raw := strings.TrimSpace(values.Get("offset")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			q.Offset = n
		}
	}
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && AllowedLimit(n) {
			q.Limit = n
		}
	}
	if field := strings.TrimSpace(values.Get("sort")); field != "" {
		if len(cfg.Sortable) == 0 || slices.Contains(cfg.Sortable, field) {
			q.Sort = field
		}
	}
	switch strings.ToLower(strings.TrimSpace(values.Get("desc"))) {
	case "desc", "true", "1":
		q.Descending = true
	case "asc", "false", "0":
		q.Descending = false
	}
	q.Search = strings.TrimSpace(values.Get("search"))
	for _, name := range cfg.Filters {
		if _, present := values[name]; !present {
			continue
		}
		val := strings.TrimSpace(values.Get(name))
		if val == "" || val == FilterAll {
			delete(q.Filters, name)
			continue
		}
		q.Filters[name] = val
	}
	return q
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
