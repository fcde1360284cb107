package options

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestLookupBuildsSortedLabels(t *testing.T) {
	fetch := func(ctx context.Context, token string, src Source) ([]map[string]any, error) {
		return []map[string]any{
			{"id": float64(7), "first_name": "Zoe", "last_name": "Adams"},
			{"id": "i-2", "first_name": "ana", "last_name": "Birch"},
			{"first_name": "no id"},
		}, nil
	}
	svc := NewService(fetch, nil, 0, nil)
	got := svc.Lookup(context.Background(), "tok", "instructors")
	assert.Equal(t, []Option{{Value: "i-2", Label: "ana Birch"}, {Value: "7", Label: "Zoe Adams"}}, got)
}

func TestLookupIsBestEffort(t *testing.T) {
	fetch := func(ctx context.Context, token string, src Source) ([]map[string]any, error) {
		return nil, errors.New("backend down")
	}
	svc := NewService(fetch, newRedis(t), time.Minute, nil)
	assert.Empty(t, svc.Lookup(context.Background(), "tok", "centers"))
	assert.NotNil(t, svc.Lookup(context.Background(), "tok", "centers"))
	assert.Empty(t, svc.Lookup(context.Background(), "tok", "planets"))
}

func TestLookupCachesInRedis(t *testing.T) {
	var calls atomic.Int32
	fetch := func(ctx context.Context, token string, src Source) ([]map[string]any, error) {
		calls.Add(1)
		return []map[string]any{{"id": "c1", "name": "North"}}, nil
	}
	client := newRedis(t)
	svc := NewService(fetch, client, time.Minute, nil)
	ctx := context.Background()

	first := svc.Lookup(ctx, "tok", "centers")
	second := svc.Lookup(ctx, "tok", "centers")
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, calls.Load())

	svc.Invalidate(ctx, "centers")
	svc.Lookup(ctx, "tok", "centers")
	assert.EqualValues(t, 2, calls.Load())
}

func TestLookupCollapsesConcurrentLoads(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context, token string, src Source) ([]map[string]any, error) {
		calls.Add(1)
		<-release
		return []map[string]any{{"id": "p1", "name": "Wells"}}, nil
	}
	svc := NewService(fetch, nil, 0, nil)

	var wg sync.WaitGroup
	results := make([][]Option, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.Lookup(context.Background(), "tok", "projects")
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.LessOrEqual(t, calls.Load(), int32(5))
	for _, r := range results {
		assert.Equal(t, []Option{{Value: "p1", Label: "Wells"}}, r)
	}
}

func TestLabel(t *testing.T) {
	opts := []Option{{Value: "1", Label: "One"}}
	assert.Equal(t, "One", Label(opts, "1"))
	assert.Equal(t, "2", Label(opts, "2"))
}
