package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"numera-billing-sync/internal/domain/model"
	"numera-billing-sync/internal/domain/ports/repository"
	"numera-billing-sync/internal/infra/metrics"
	red "numera-billing-sync/internal/infra/redis"
)

var _ repository.UserRepository = (*userRepoCacheDecorator)(nil)

// userRepoCacheDecorator serves the hot entitlement-read path from redis.
// Writes invalidate before delegating, so the cache can only ever lag by a
// concurrent read, never hold a hand-edited value.
type userRepoCacheDecorator struct {
	inner repository.UserRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewUserRepoCacheDecorator(inner repository.UserRepository, cache red.RedisClient, ttl time.Duration) repository.UserRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &userRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func userIDKey(id string) string     { return fmt.Sprintf("user:id:%s", id) }
func userCustKey(cust string) string { return fmt.Sprintf("user:cust:%s", cust) }

func (d *userRepoCacheDecorator) invalidate(ctx context.Context, u *model.User) {
	keys := []string{userIDKey(u.ID)}
	if u.GatewayCustomerID != nil {
		keys = append(keys, userCustKey(*u.GatewayCustomerID))
	}
	_ = d.cache.Del(ctx, keys...)
}

func (d *userRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	d.invalidate(ctx, u)
	return d.inner.Save(ctx, tx, u)
}

func (d *userRepoCacheDecorator) UpdateEntitlement(ctx context.Context, tx repository.Tx, userID string, ent model.Entitlement) error {
	// The customer-id key is invalidated lazily via TTL; entitlement reads go
	// through the user-id key.
	_ = d.cache.Del(ctx, userIDKey(userID))
	return d.inner.UpdateEntitlement(ctx, tx, userID, ent)
}

func (d *userRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	// Transactional lookups must see row-locked state, not a cache.
	if tx != nil {
		return d.inner.FindByID(ctx, tx, id)
	}

	key := userIDKey(id)
	if val, err := d.cache.Get(ctx, key); err == nil {
		var user model.User
		if json.Unmarshal([]byte(val), &user) == nil {
			metrics.IncCacheRequest("user", "hit")
			return &user, nil
		}
	}

	metrics.IncCacheRequest("user", "miss")
	user, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	d.warm(ctx, user)
	return user, nil
}

func (d *userRepoCacheDecorator) FindByGatewayCustomerID(ctx context.Context, tx repository.Tx, customerID string) (*model.User, error) {
	if tx != nil {
		return d.inner.FindByGatewayCustomerID(ctx, tx, customerID)
	}

	key := userCustKey(customerID)
	if val, err := d.cache.Get(ctx, key); err == nil {
		var user model.User
		if json.Unmarshal([]byte(val), &user) == nil {
			metrics.IncCacheRequest("user", "hit")
			return &user, nil
		}
	}

	metrics.IncCacheRequest("user", "miss")
	user, err := d.inner.FindByGatewayCustomerID(ctx, tx, customerID)
	if err != nil {
		return nil, err
	}
	d.warm(ctx, user)
	return user, nil
}

func (d *userRepoCacheDecorator) warm(ctx context.Context, u *model.User) {
	if u == nil {
		return
	}
	bytes, err := json.Marshal(u)
	if err != nil {
		return
	}
	_ = d.cache.Set(ctx, userIDKey(u.ID), bytes, d.ttl)
	if u.GatewayCustomerID != nil {
		_ = d.cache.Set(ctx, userCustKey(*u.GatewayCustomerID), bytes, d.ttl)
	}
}

// Pass-through: the expiry sweep must scan authoritative rows.
func (d *userRepoCacheDecorator) ListPremiumExpiredBefore(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.User, error) {
	return d.inner.ListPremiumExpiredBefore(ctx, tx, cutoff, limit)
}
