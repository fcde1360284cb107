package listing

import (
	"strconv"

	"github.com/grantdesk/grantdesk/internal/backend"
)

// Page is the template model for list navigation. Every link is the result
// of applying one Query transition to the current state.
type Page struct {
	Base    string
	Query   Query
	Count   int
	Pages   int
	Visible []int
	Loading bool
	Error   string

	cfg Config
}

func newPage(base string, cfg Config, q Query, count int, loading bool, err error) Page {
	pages := PageCount(count, q.Limit)
	p := Page{
		Base:    base,
		Query:   q,
		Count:   count,
		Pages:   pages,
		Visible: VisiblePages(q.Offset, pages),
		Loading: loading,
		cfg:     cfg,
	}
	if err != nil {
		p.Error = backend.Humanize(err)
	}
	return p
}

func (p Page) href(q Query) string {
	v := q.Values(p.cfg)
	if len(v) == 0 {
		return p.Base
	}
	return p.Base + "?" + v.Encode()
}

// Self links to the current state.
func (p Page) Self() string { return p.href(p.Query) }

// SortHref links to the state after sorting by field.
func (p Page) SortHref(field string) string { return p.href(p.Query.WithSort(field)) }

// SortIndicator is "asc", "desc" or "" for the column header of field.
func (p Page) SortIndicator(field string) string {
	if p.Query.Sort != field {
		return ""
	}
	if p.Query.Descending {
		return "desc"
	}
	return "asc"
}

// PageHref links to page index n.
func (p Page) PageHref(n int) string { return p.href(p.Query.WithPage(n)) }

// LimitHref links to the state with page size n.
func (p Page) LimitHref(n int) string { return p.href(p.Query.WithLimit(n)) }

// FilterHref links to the state with filter name set to value.
func (p Page) FilterHref(name, value string) string {
	return p.href(p.Query.WithFilter(name, value))
}

// RefreshHref links to the cleared state.
func (p Page) RefreshHref() string { return p.href(p.Query.Cleared(p.cfg)) }

// HasPrev reports whether a previous page exists.
func (p Page) HasPrev() bool { return p.Query.Offset > 0 }

// HasNext reports whether a next page exists.
func (p Page) HasNext() bool { return p.Query.Offset < p.Pages-1 }

// PrevHref links to the previous page.
func (p Page) PrevHref() string { return p.PageHref(p.Query.Offset - 1) }

// NextHref links to the next page.
func (p Page) NextHref() string { return p.PageHref(p.Query.Offset + 1) }

// Limits lists the selectable page sizes.
func (p Page) Limits() []int { return Limits }

// Filter returns the active value of a filter or FilterAll.
func (p Page) Filter(name string) string { return p.Query.Filter(name) }

// HiddenFields are the non-search values a search form must resubmit so
// sort and page size survive a search.
func (p Page) HiddenFields() map[string]string {
	fields := map[string]string{}
	v := p.Query.WithSearch("").Values(p.cfg)
	for k := range v {
		if k == "offset" || k == "search" {
			continue
		}
		fields[k] = v.Get(k)
	}
	return fields
}

// Summary renders "showing a-b of n".
func (p Page) Summary() string {
	if p.Count == 0 {
		return "No records"
	}
	limit := p.Query.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	from := p.Query.Offset*limit + 1
	to := from + limit - 1
	if to > p.Count {
		to = p.Count
	}
	if from > p.Count {
		return "No records on this page"
	}
	return "Showing " + strconv.Itoa(from) + "–" + strconv.Itoa(to) + " of " + strconv.Itoa(p.Count)
}
