package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANTI-REPEAT WINDOW
// One sorted set per user: member = content signature or bank question ID,
// score = served-at unix time. Reads trim nothing; writes prune entries
// older than the window so the set stays bounded.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultRepeatWindow is the rolling span within which content must not be
// re-served to the same user.
const DefaultRepeatWindow = 7 * 24 * time.Hour

// RepeatWindow implements the planner's anti-repeat lookup and the serving
// layer's mark-served write on Redis sorted sets.
type RepeatWindow struct {
	client *redis.Client
	window time.Duration
}

// NewRepeatWindow creates a repeat window store. A zero window falls back
// to the 7-day default.
func NewRepeatWindow(client *redis.Client, window time.Duration) *RepeatWindow {
	if window <= 0 {
		window = DefaultRepeatWindow
	}
	return &RepeatWindow{client: client, window: window}
}

func (w *RepeatWindow) key(user shared.UserID) string {
	return PrefixServed + string(user)
}

// WasServed reports whether the key was served to the user within the
// window. Entries older than the window are ignored even before pruning.
func (w *RepeatWindow) WasServed(ctx context.Context, user shared.UserID, key string) (bool, error) {
	if key == "" {
		return false, ErrKeyEmpty
	}

	score, err := w.client.ZScore(ctx, w.key(user), key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("repeat window: zscore: %w", err)
	}

	servedAt := time.Unix(int64(score), 0)
	return time.Since(servedAt) < w.window, nil
}

// MarkServed stamps the key into the user's window, prunes expired entries,
// and refreshes the set's own TTL so abandoned users cost nothing.
func (w *RepeatWindow) MarkServed(ctx context.Context, user shared.UserID, key string) error {
	if key == "" {
		return ErrKeyEmpty
	}

	now := time.Now().UTC()
	setKey := w.key(user)
	cutoff := now.Add(-w.window).Unix()

	pipe := w.client.TxPipeline()
	pipe.ZAdd(ctx, setKey, redis.Z{Score: float64(now.Unix()), Member: key})
	pipe.ZRemRangeByScore(ctx, setKey, "-inf", fmt.Sprintf("%d", cutoff))
	pipe.Expire(ctx, setKey, w.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("repeat window: mark served: %w", err)
	}
	return nil
}

// ServedCount returns the number of live entries in the user's window.
func (w *RepeatWindow) ServedCount(ctx context.Context, user shared.UserID) (int64, error) {
	cutoff := time.Now().UTC().Add(-w.window).Unix()
	n, err := w.client.ZCount(ctx, w.key(user), fmt.Sprintf("%d", cutoff), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("repeat window: count: %w", err)
	}
	return n, nil
}
