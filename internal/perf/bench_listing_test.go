package perf

import (
	"net/url"
	"testing"

	"github.com/grantdesk/grantdesk/internal/listing"
)

var projectsList = listing.Config{
	Endpoint:    "/projects",
	DefaultSort: "name",
	Sortable:    []string{"name", "start_date", "end_date", "status"},
	Filters:     []string{"status", "center_id"},
}

func BenchmarkParseQuery(b *testing.B) {
	values := url.Values{
		"offset": {"4"},
		"limit":  {"25"},
		"sort":   {"start_date"},
		"desc":   {"desc"},
		"search": {"water"},
		"status": {"active"},
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		q := listing.ParseQuery(values, projectsList)
		_ = q.Params()
		_ = q.Values(projectsList)
	}
}

func BenchmarkVisiblePages(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = listing.VisiblePages(i%500, 500)
	}
}
