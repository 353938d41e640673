package redisadapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gridgate/contexts/market-exchange/incoming-message-service/ports"
	"gridgate/internal/shared/markets"
)

// AuthorizationCache is a read-through Redis cache in front of the
// authorization service. Sender grants change rarely; caching them keeps the
// intake validator's hot path off the grant store.
type AuthorizationCache struct {
	client *redis.Client
	inner  ports.AuthorizationService
	ttl    time.Duration
}

func NewAuthorizationCache(
	client *redis.Client,
	inner ports.AuthorizationService,
	ttl time.Duration,
) *AuthorizationCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AuthorizationCache{client: client, inner: inner, ttl: ttl}
}

func (c *AuthorizationCache) IsAuthorized(
	ctx context.Context,
	actorNumber markets.ActorNumber,
	role markets.ActorRole,
	callerIdentity string,
) (bool, error) {
	key := fmt.Sprintf("intake:authz:%s:%s:%s", actorNumber.String(), role.Code(), callerIdentity)

	cached, err := c.client.Get(ctx, key).Result()
	if err == nil {
		return cached == "1", nil
	}
	if !errors.Is(err, redis.Nil) {
		return false, err
	}

	authorized, err := c.inner.IsAuthorized(ctx, actorNumber, role, callerIdentity)
	if err != nil {
		return false, err
	}
	value := "0"
	if authorized {
		value = "1"
	}
	// Cache write failures are not worth failing the submission over.
	_ = c.client.Set(ctx, key, value, c.ttl).Err()
	return authorized, nil
}
