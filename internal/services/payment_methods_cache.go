// internal/services/payment_methods_cache.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tarksober/license-backend/internal/models"
)

// CachedMethods is the last payment-method list fetched from the gateway.
type CachedMethods struct {
	Methods   json.RawMessage `json:"methods"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// MethodsCache stores the list without expiring it; freshness is decided by
// the caller so a stale copy stays available when the gateway is down.
// Get returns nil, nil on a miss.
type MethodsCache interface {
	Get(ctx context.Context) (*CachedMethods, error)
	Put(ctx context.Context, methods json.RawMessage, fetchedAt time.Time) error
}

const redisMethodsKey = "payments:methods:v1"

type RedisMethodsCache struct {
	client *redis.Client
}

func NewRedisMethodsCache(client *redis.Client) *RedisMethodsCache {
	return &RedisMethodsCache{client: client}
}

func (c *RedisMethodsCache) Get(ctx context.Context) (*CachedMethods, error) {
	raw, err := c.client.Get(ctx, redisMethodsKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var cached CachedMethods
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, err
	}
	return &cached, nil
}

func (c *RedisMethodsCache) Put(ctx context.Context, methods json.RawMessage, fetchedAt time.Time) error {
	raw, err := json.Marshal(CachedMethods{Methods: methods, FetchedAt: fetchedAt})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, redisMethodsKey, raw, 0).Err()
}

// DBMethodsCache keeps the list in the payment_methods_cache singleton row.
type DBMethodsCache struct {
	db *gorm.DB
}

func NewDBMethodsCache(db *gorm.DB) *DBMethodsCache {
	return &DBMethodsCache{db: db}
}

func (c *DBMethodsCache) Get(ctx context.Context) (*CachedMethods, error) {
	var row models.PaymentMethodsCache
	err := c.db.WithContext(ctx).Where("id = ?", models.PaymentMethodsCacheID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &CachedMethods{
		Methods:   json.RawMessage(row.Methods),
		FetchedAt: row.FetchedAt,
	}, nil
}

func (c *DBMethodsCache) Put(ctx context.Context, methods json.RawMessage, fetchedAt time.Time) error {
	row := models.PaymentMethodsCache{
		ID:        models.PaymentMethodsCacheID,
		Methods:   models.RawJSON(methods),
		FetchedAt: fetchedAt,
	}
	return c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"methods", "fetched_at"}),
	}).Create(&row).Error
}
