package listing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/grantdesk/grantdesk/internal/backend"
	"github.com/grantdesk/grantdesk/internal/shared"
)

var (
	// ErrTokenPending means the query was recorded but no fetch was issued
	// because no bearer token exists yet.
	ErrTokenPending = errors.New("listing: waiting for authentication token")
	// ErrSuperseded means the response arrived after a newer fetch started
	// and was discarded.
	ErrSuperseded = errors.New("listing: response superseded by a newer request")
	// ErrInvalidLimit rejects page sizes outside Limits.
	ErrInvalidLimit = errors.New("listing: unsupported page size")
)

// Fetcher loads one page from the backend.
type Fetcher[T any] func(ctx context.Context, token string, params backend.ListParams) (backend.ListResult[T], error)

// RemoteFetcher binds a Fetcher to a backend endpoint.
func RemoteFetcher[T any](client *backend.Client, endpoint string) Fetcher[T] {
	return func(ctx context.Context, token string, params backend.ListParams) (backend.ListResult[T], error) {
		return backend.List[T](ctx, client, token, endpoint, params)
	}
}

// Notifier surfaces transient user-facing messages.
type Notifier interface {
	Notify(kind, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(kind, message string)

// Notify calls f.
func (f NotifierFunc) Notify(kind, message string) { f(kind, message) }

// Controller owns the list state for one resource collection. It is safe
// for concurrent use; only the most recently started fetch may update the
// visible data.
type Controller[T any] struct {
	cfg    Config
	fetch  Fetcher[T]
	tokens backend.TokenSource
	notify Notifier

	mu          sync.Mutex
	query       Query
	data        []T
	count       int
	loading     bool
	generation  uint64
	lastErr     error
	pendingInit bool
	hadToken    bool
}

// NewController builds a controller. tokens and notify may be nil.
func NewController[T any](cfg Config, fetch Fetcher[T], tokens backend.TokenSource, notify Notifier) *Controller[T] {
	return &Controller[T]{
		cfg:    cfg,
		fetch:  fetch,
		tokens: tokens,
		notify: notify,
		query:  cfg.Defaults(),
		data:   []T{},
	}
}

// Initialize performs the first fetch at offset 0. Without a token the
// fetch is deferred until TokenChanged observes one.
func (c *Controller[T]) Initialize(ctx context.Context, search string, filters map[string]string) error {
	q := c.cfg.Defaults().WithSearch(search)
	for name, value := range filters {
		q = q.WithFilter(name, value)
	}
	return c.start(ctx, q)
}

// Restore performs the first fetch from a query parsed off the page URL.
// The URL only feeds state on this initial load.
func (c *Controller[T]) Restore(ctx context.Context, q Query) error {
	return c.start(ctx, q.clone())
}

func (c *Controller[T]) start(ctx context.Context, q Query) error {
	c.mu.Lock()
	c.query = q
	if c.currentToken() == "" {
		c.pendingInit = true
		c.mu.Unlock()
		return ErrTokenPending
	}
	c.hadToken = true
	c.pendingInit = false
	c.mu.Unlock()
	return c.load(ctx, q)
}

// TokenChanged re-runs a deferred initialization once the token goes from
// absent to present. Later calls are no-ops.
func (c *Controller[T]) TokenChanged(ctx context.Context) error {
	c.mu.Lock()
	present := c.currentToken() != ""
	if !present {
		c.hadToken = false
		c.mu.Unlock()
		return nil
	}
	if c.hadToken || !c.pendingInit {
		c.hadToken = true
		c.mu.Unlock()
		return nil
	}
	c.hadToken = true
	c.pendingInit = false
	q := c.query
	c.mu.Unlock()
	return c.load(ctx, q)
}

// SetSort toggles the direction on the current field or switches field.
func (c *Controller[T]) SetSort(ctx context.Context, field string) error {
	return c.apply(ctx, func(q Query) Query { return q.WithSort(field) })
}

// Search applies free text and goes back to the first page.
func (c *Controller[T]) Search(ctx context.Context, text string) error {
	return c.apply(ctx, func(q Query) Query { return q.WithSearch(text) })
}

// SetFilter sets or clears one filter and goes back to the first page.
func (c *Controller[T]) SetFilter(ctx context.Context, name, value string) error {
	return c.apply(ctx, func(q Query) Query { return q.WithFilter(name, value) })
}

// Paginate moves to page index p without touching other query fields.
func (c *Controller[T]) Paginate(ctx context.Context, p int) error {
	return c.apply(ctx, func(q Query) Query { return q.WithPage(p) })
}

// SetLimit changes the page size and goes back to the first page.
func (c *Controller[T]) SetLimit(ctx context.Context, n int) error {
	if !AllowedLimit(n) {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}
	return c.apply(ctx, func(q Query) Query { return q.WithLimit(n) })
}

// Refresh clears search and filters, resets the offset and fetches.
func (c *Controller[T]) Refresh(ctx context.Context) error {
	return c.apply(ctx, func(q Query) Query { return q.Cleared(c.cfg) })
}

// Reload fetches again with the unchanged query, keeping the user's place.
func (c *Controller[T]) Reload(ctx context.Context) error {
	return c.apply(ctx, func(q Query) Query { return q })
}

func (c *Controller[T]) apply(ctx context.Context, next func(Query) Query) error {
	c.mu.Lock()
	q := next(c.query)
	c.query = q
	if c.currentToken() == "" {
		c.mu.Unlock()
		return ErrTokenPending
	}
	c.mu.Unlock()
	return c.load(ctx, q)
}

func (c *Controller[T]) load(ctx context.Context, q Query) error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.loading = true
	token := c.currentToken()
	c.mu.Unlock()

	res, err := c.fetch(ctx, token, q.Params())

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return ErrSuperseded
	}
	c.loading = false
	if err != nil {
		c.lastErr = err
		c.mu.Unlock()
		if c.notify != nil {
			c.notify.Notify(shared.FlashError, backend.Humanize(err))
		}
		return err
	}
	c.lastErr = nil
	c.data = res.Data
	if c.data == nil {
		c.data = []T{}
	}
	c.count = res.Count
	c.mu.Unlock()
	return nil
}

func (c *Controller[T]) currentToken() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

// Query returns the current query.
func (c *Controller[T]) Query() Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query.clone()
}

// Data returns the last successfully fetched rows.
func (c *Controller[T]) Data() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.data))
	copy(out, c.data)
	return out
}

// Count returns the total count reported by the last successful fetch.
func (c *Controller[T]) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Pages returns ceil(count / limit).
func (c *Controller[T]) Pages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return PageCount(c.count, c.query.Limit)
}

// Loading reports whether a fetch is in flight.
func (c *Controller[T]) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Err returns the error of the last handled fetch, nil after a success.
func (c *Controller[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// MirrorURL is the query string for the address bar, "" when the state
// equals the defaults.
func (c *Controller[T]) MirrorURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.query.Values(c.cfg)
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// Page returns the navigation model for templates, with links under base.
func (c *Controller[T]) Page(base string) Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return newPage(base, c.cfg, c.query.clone(), c.count, c.loading, c.lastErr)
}
