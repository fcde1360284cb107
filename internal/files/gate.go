package files

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/grantdesk/grantdesk/internal/shared"
)

const defaultGateTTL = 10 * time.Minute

// releaseScript deletes the flag only while it still holds the caller's
// token, so a transfer that outlived the TTL cannot clear its successor.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Gate allows one upload or download in flight per session. The flag
// expires on its own so a crashed transfer cannot block a session forever.
type Gate struct {
	client *redis.Client
	ttl    time.Duration
}

// NewGate builds a Gate; ttl <= 0 uses ten minutes.
func NewGate(client *redis.Client, ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = defaultGateTTL
	}
	return &Gate{client: client, ttl: ttl}
}

// Acquire marks a transfer as running for sessionID. It returns
// shared.ErrBusy while another one holds the flag.
func (g *Gate) Acquire(ctx context.Context, sessionID string) (release func(), err error) {
	key := shared.TransferLockKey(sessionID)
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("files: acquire transfer gate: %w", err)
	}
	if !ok {
		return nil, shared.ErrBusy
	}
	return func() {
		_ = releaseScript.Run(context.WithoutCancel(ctx), g.client, []string{key}, token).Err()
	}, nil
}
