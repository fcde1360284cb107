package backend

import (
	"net/url"
	"sort"
	"strconv"
)

// ListParams is the query contract every list endpoint honours.
type ListParams struct {
	// Offset is a row offset, already multiplied by Limit.
	Offset     int
	Limit      int
	Sort       string
	Descending bool
	Search     string
	Filters    map[string]string
}

// Values encodes the params as
// offset=&limit=&sort=&desc=asc|desc&search=&<filter>=<value>.
func (p ListParams) Values() url.Values {
	v := url.Values{}
	v.Set("offset", strconv.Itoa(p.Offset))
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Sort != "" {
		v.Set("sort", p.Sort)
		if p.Descending {
			v.Set("desc", "desc")
		} else {
			v.Set("desc", "asc")
		}
	}
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	keys := make([]string, 0, len(p.Filters))
	for k := range p.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if val := p.Filters[k]; val != "" {
			v.Set(k, val)
		}
	}
	return v
}

// ListResult is the response of every list endpoint. Count is the total
// number of matching rows, not the page size.
type ListResult[T any] struct {
	Data  []T `json:"data"`
	Count int `json:"count"`
}
