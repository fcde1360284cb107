// Package options loads dropdown choices from the backend. Lookups are best
// effort: a failure yields an empty list and never blocks the page.
package options

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/grantdesk/grantdesk/internal/backend"
)

// Option is one select entry.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Source describes where the options of one kind come from.
type Source struct {
	Name     string
	Endpoint string
	Sort     string
	// LabelFields are joined with a space to build the label.
	LabelFields []string
}

// Sources known to the console.
var Sources = []Source{
	{Name: "centers", Endpoint: "/centers", Sort: "name", LabelFields: []string{"name"}},
	{Name: "projects", Endpoint: "/projects", Sort: "name", LabelFields: []string{"name"}},
	{Name: "users", Endpoint: "/users", Sort: "name", LabelFields: []string{"name"}},
	{Name: "financing_sources", Endpoint: "/financing-sources", Sort: "name", LabelFields: []string{"name"}},
	{Name: "instructors", Endpoint: "/instructors", Sort: "last_name", LabelFields: []string{"first_name", "last_name"}},
}

const fetchLimit = 500

// Fetcher loads raw records for a source.
type Fetcher func(ctx context.Context, token string, src Source) ([]map[string]any, error)

// RemoteFetcher reads sources through the backend client.
func RemoteFetcher(client *backend.Client) Fetcher {
	return func(ctx context.Context, token string, src Source) ([]map[string]any, error) {
		res, err := backend.List[map[string]any](ctx, client, token, src.Endpoint, backend.ListParams{Limit: fetchLimit, Sort: src.Sort})
		if err != nil {
			return nil, err
		}
		return res.Data, nil
	}
}

// Service caches options in Redis and collapses concurrent loads.
type Service struct {
	fetch   Fetcher
	redis   *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	group   singleflight.Group
	sources map[string]Source
}

// NewService builds a Service. redis may be nil to disable caching.
func NewService(fetch Fetcher, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{fetch: fetch, redis: client, ttl: ttl, logger: logger, sources: map[string]Source{}}
	for _, src := range Sources {
		s.sources[src.Name] = src
	}
	return s
}

// Lookup returns the options of a source, or an empty list on any failure.
func (s *Service) Lookup(ctx context.Context, token, name string) []Option {
	opts, err := s.lookup(ctx, token, name)
	if err != nil {
		s.logger.Debug("options lookup failed", slog.String("source", name), slog.Any("error", err))
		return []Option{}
	}
	return opts
}

// LookupMany resolves several sources at once.
func (s *Service) LookupMany(ctx context.Context, token string, names ...string) map[string][]Option {
	out := make(map[string][]Option, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, done := out[name]; done {
			continue
		}
		out[name] = s.Lookup(ctx, token, name)
	}
	return out
}

// Invalidate drops the cached options of a source after a mutation.
func (s *Service) Invalidate(ctx context.Context, name string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, cacheKey(name)).Err(); err != nil {
		s.logger.Debug("options invalidate", slog.String("source", name), slog.Any("error", err))
	}
}

func (s *Service) lookup(ctx context.Context, token, name string) ([]Option, error) {
	src, ok := s.sources[name]
	if !ok {
		return nil, fmt.Errorf("options: unknown source %q", name)
	}
	if cached, err := s.cached(ctx, name); err == nil {
		return cached, nil
	}
	v, err, _ := s.group.Do(name, func() (any, error) {
		rows, err := s.fetch(ctx, token, src)
		if err != nil {
			return nil, err
		}
		opts := toOptions(rows, src)
		s.store(ctx, name, opts)
		return opts, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Option), nil
}

var errNoCache = errors.New("options: cache disabled")

func (s *Service) cached(ctx context.Context, name string) ([]Option, error) {
	if s.redis == nil {
		return nil, errNoCache
	}
	raw, err := s.redis.Get(ctx, cacheKey(name)).Bytes()
	if err != nil {
		return nil, err
	}
	var opts []Option
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, err
	}
	return opts, nil
}

func (s *Service) store(ctx context.Context, name string, opts []Option) {
	if s.redis == nil || s.ttl <= 0 {
		return
	}
	payload, err := json.Marshal(opts)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, cacheKey(name), payload, s.ttl).Err(); err != nil {
		s.logger.Debug("options cache store", slog.String("source", name), slog.Any("error", err))
	}
}

func cacheKey(name string) string {
	return "grantdesk:options:" + name
}

func toOptions(rows []map[string]any, src Source) []Option {
	opts := make([]Option, 0, len(rows))
	for _, row := range rows {
		id := stringify(row["id"])
		if id == "" {
			continue
		}
		parts := make([]string, 0, len(src.LabelFields))
		for _, f := range src.LabelFields {
			if v := stringify(row[f]); v != "" {
				parts = append(parts, v)
			}
		}
		label := strings.Join(parts, " ")
		if label == "" {
			label = id
		}
		opts = append(opts, Option{Value: id, Label: label})
	}
	sort.SliceStable(opts, func(i, j int) bool {
		return strings.ToLower(opts[i].Label) < strings.ToLower(opts[j].Label)
	})
	return opts
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// Label finds the label of value in opts, or returns value itself.
func Label(opts []Option, value string) string {
	for _, o := range opts {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}
