package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/policy"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARD COOLDOWNS
// One plain key per (user, action type) with the cooldown as its TTL.
// Existence of the key means the cooldown is active; expiry clears it
// without any sweeper.
// ══════════════════════════════════════════════════════════════════════════════

// CooldownStore implements policy.CooldownStore on Redis keys.
type CooldownStore struct {
	client *redis.Client
}

// NewCooldownStore creates a cooldown store.
func NewCooldownStore(client *redis.Client) *CooldownStore {
	return &CooldownStore{client: client}
}

func (s *CooldownStore) key(user shared.UserID, action policy.ActionType) string {
	return fmt.Sprintf("%s%s:%s", PrefixCooldown, user, action)
}

// Active reports whether an action of this type is still inside its
// cooldown window for the user.
func (s *CooldownStore) Active(ctx context.Context, user shared.UserID, action policy.ActionType) (bool, error) {
	err := s.client.Get(ctx, s.key(user, action)).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("cooldown: get: %w", err)
	}
	return true, nil
}

// MarkIssued stamps an issuance. NX keeps an earlier, longer cooldown from
// being shortened by a concurrent decision.
func (s *CooldownStore) MarkIssued(ctx context.Context, user shared.UserID, action policy.ActionType, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.SetNX(ctx, s.key(user, action), time.Now().UTC().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("cooldown: mark issued: %w", err)
	}
	return nil
}

// Remaining returns the time left on a cooldown, zero when none is active.
func (s *CooldownStore) Remaining(ctx context.Context, user shared.UserID, action policy.ActionType) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, s.key(user, action)).Result()
	if err != nil {
		return 0, fmt.Errorf("cooldown: ttl: %w", err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}
