package listing

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

var centersConfig = Config{
	Endpoint:    "/centers",
	DefaultSort: "name",
	Sortable:    []string{"name", "city", "created_at"},
	Filters:     []string{"status", "city"},
}

func TestValuesOmitEmptySearch(t *testing.T) {
	q := centersConfig.Defaults().WithPage(4).WithSearch("")
	assert.Empty(t, q.Values(centersConfig).Encode())

	q = centersConfig.Defaults().WithPage(4).WithSearch("foo")
	assert.Equal(t, "search=foo", q.Values(centersConfig).Encode())
}

func TestCanonicalDropsEmptyAndDefaultParams(t *testing.T) {
	raw := url.Values{"search": {""}, "sort": {"name"}, "desc": {"asc"}, "limit": {"10"}}
	target, ok := Canonical("/centers", centersConfig, raw)
	assert.False(t, ok)
	assert.Equal(t, "/centers", target)

	raw = url.Values{"search": {"foo"}, "status": {"active"}}
	target, ok = Canonical("/centers", centersConfig, raw)
	assert.True(t, ok)
	assert.Equal(t, "/centers?search=foo&status=active", target)

	target, ok = Canonical("/centers", centersConfig, url.Values{})
	assert.True(t, ok)
	assert.Equal(t, "/centers", target)
}

func TestCanonicalKeepsNamedParams(t *testing.T) {
	raw := url.Values{"dialog": {"edit"}, "id": {"c1"}, "search": {" x "}}
	target, ok := Canonical("/centers", centersConfig, raw, "dialog", "id")
	assert.False(t, ok)
	assert.Equal(t, "/centers?dialog=edit&id=c1&search=x", target)

	canonical, err := url.ParseQuery("dialog=edit&id=c1&search=x")
	assert.NoError(t, err)
	_, ok = Canonical("/centers", centersConfig, canonical, "dialog", "id")
	assert.True(t, ok)
}

func TestCanonicalIsStable(t *testing.T) {
	for _, raw := range []string{"offset=3&limit=25", "sort=city&desc=desc", "status=all", "city=Quito&search=a+b", "limit=7&offset=-1"} {
		values, err := url.ParseQuery(raw)
		assert.NoError(t, err)
		target, _ := Canonical("/centers", centersConfig, values)
		again, err := url.Parse(target)
		assert.NoError(t, err)
		_, ok := Canonical("/centers", centersConfig, again.Query())
		assert.True(t, ok, raw)
	}
}

func TestTransitionsResetOffset(t *testing.T) {
	base := centersConfig.Defaults().WithPage(5)

	assert.Equal(t, 0, base.WithSearch("x").Offset)
	assert.Equal(t, 0, base.WithFilter("status", "active").Offset)
	assert.Equal(t, 0, base.WithLimit(25).Offset)
	assert.Equal(t, 0, base.Cleared(centersConfig).Offset)
	assert.Equal(t, 0, base.WithSort("city").Offset)
	assert.Equal(t, 5, base.WithSort("name").Offset, "direction toggle keeps the page")
	assert.Equal(t, 7, base.WithPage(7).Offset)
}

func TestWithSortTogglesOnSameField(t *testing.T) {
	q := centersConfig.Defaults()
	q = q.WithSort("name")
	assert.True(t, q.Descending)
	q = q.WithSort("name")
	assert.False(t, q.Descending)

	q = q.WithSort("name").WithSort("city")
	assert.Equal(t, "city", q.Sort)
	assert.True(t, q.Descending, "switching field keeps direction")
}

func TestWithFilterAllClears(t *testing.T) {
	q := centersConfig.Defaults().WithFilter("status", "active")
	assert.Equal(t, "active", q.Filter("status"))
	q = q.WithFilter("status", FilterAll)
	_, present := q.Filters["status"]
	assert.False(t, present)
	assert.Equal(t, FilterAll, q.Filter("status"))
}

func TestWithLimitRejectsUnknownSizes(t *testing.T) {
	q := centersConfig.Defaults().WithPage(3)
	assert.Equal(t, q, q.WithLimit(7))
}

func TestTransitionsDoNotShareFilters(t *testing.T) {
	a := centersConfig.Defaults().WithFilter("status", "active")
	b := a.WithFilter("status", "inactive")
	assert.Equal(t, "active", a.Filters["status"])
	assert.Equal(t, "inactive", b.Filters["status"])
}

func TestParamsUsesRowOffset(t *testing.T) {
	q := Query{Offset: 2, Limit: 10, Sort: "name", Descending: true}
	p := q.Params()
	assert.Equal(t, 20, p.Offset)
	assert.Equal(t, 10, p.Limit)
	assert.Equal(t, "name", p.Sort)
	assert.True(t, p.Descending)
}

func TestParseQueryRoundTripsValues(t *testing.T) {
	q := centersConfig.Defaults().
		WithSort("city").
		WithSort("city").
		WithLimit(50).
		WithFilter("status", "inactive").
		WithSearch("north").
		WithPage(3)

	parsed := ParseQuery(q.Values(centersConfig), centersConfig)
	assert.Equal(t, q, parsed)
}

func TestParseQueryIgnoresInvalidValues(t *testing.T) {
	values := url.Values{
		"offset": {"-3"},
		"limit":  {"13"},
		"sort":   {"password"},
		"status": {FilterAll},
		"role":   {"admin"},
	}
	q := ParseQuery(values, centersConfig)
	assert.Equal(t, 0, q.Offset)
	assert.Equal(t, DefaultLimit, q.Limit)
	assert.Equal(t, "name", q.Sort)
	assert.Empty(t, q.Filters)
}

func TestDefaultFilterClearedSurvivesReload(t *testing.T) {
	cfg := centersConfig
	cfg.DefaultFilters = map[string]string{"status": "active"}

	q := cfg.Defaults().WithFilter("status", FilterAll)
	values := q.Values(cfg)
	assert.Equal(t, FilterAll, values.Get("status"))

	parsed := ParseQuery(values, cfg)
	assert.Equal(t, FilterAll, parsed.Filter("status"))
}

func TestPageLinks(t *testing.T) {
	q := centersConfig.Defaults().WithSearch("foo")
	p := newPage("/centers", centersConfig, q, 25, false, nil)

	assert.Equal(t, 3, p.Pages)
	assert.Equal(t, "/centers?search=foo", p.Self())
	assert.Equal(t, "/centers?offset=2&search=foo", p.PageHref(2))
	assert.Equal(t, "/centers?desc=desc&search=foo&sort=name", p.SortHref("name"))
	assert.Equal(t, "/centers?limit=25&search=foo", p.LimitHref(25))
	assert.Equal(t, "/centers", p.RefreshHref())
	assert.Equal(t, "Showing 1–10 of 25", p.Summary())
	assert.False(t, p.HasPrev())
	assert.True(t, p.HasNext())
}
