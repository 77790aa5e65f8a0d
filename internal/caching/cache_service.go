package caching

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"subsettle/internal/models"

	"github.com/redis/go-redis/v9"
)

type CacheService interface {
	// Subscription caching
	GetSubscription(ctx context.Context, address string) (*models.Subscription, error)
	SetSubscription(ctx context.Context, subscription *models.Subscription, ttl time.Duration) error
	DeleteSubscription(ctx context.Context, address string) error

	// Price schedule persistence. Operator updates are written here so a
	// restart restores the current schedule instead of reverting to the
	// deploy-time defaults.
	GetPrices(ctx context.Context) (monthly, yearly int64, found bool, err error)
	SetPrices(ctx context.Context, monthly, yearly int64, ttl time.Duration) error

	// Rate limiting for the public pay endpoints
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// Ping reports cache connectivity for the health surface
	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(addr, password string, db int) CacheService {
	// Accept redis://host:port as well as bare host:port
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if hostPort := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://"); hostPort != addr {
			parsedAddr = hostPort
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		log.Printf("WARN: Redis ping failed on initialization: %v (address: %s)", pingErr, parsedAddr)
	}

	return &redisCacheService{client: client}
}

func (r *redisCacheService) GetSubscription(ctx context.Context, address string) (*models.Subscription, error) {
	key := fmt.Sprintf("subsettle:subscription:%s", address)
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var subscription models.Subscription
	if err := json.Unmarshal(data, &subscription); err != nil {
		return nil, err
	}
	return &subscription, nil
}

func (r *redisCacheService) SetSubscription(ctx context.Context, subscription *models.Subscription, ttl time.Duration) error {
	key := fmt.Sprintf("subsettle:subscription:%s", subscription.Address)
	data, err := json.Marshal(subscription)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *redisCacheService) DeleteSubscription(ctx context.Context, address string) error {
	key := fmt.Sprintf("subsettle:subscription:%s", address)
	return r.client.Del(ctx, key).Err()
}

type cachedPrices struct {
	Monthly int64 `json:"monthly"`
	Yearly  int64 `json:"yearly"`
}

func (r *redisCacheService) GetPrices(ctx context.Context) (int64, int64, bool, error) {
	data, err := r.client.Get(ctx, "subsettle:prices").Bytes()
	if err != nil {
		if err == redis.Nil {
			return 0, 0, false, nil
		}
		return 0, 0, false, err
	}

	var prices cachedPrices
	if err := json.Unmarshal(data, &prices); err != nil {
		return 0, 0, false, err
	}
	return prices.Monthly, prices.Yearly, true, nil
}

func (r *redisCacheService) SetPrices(ctx context.Context, monthly, yearly int64, ttl time.Duration) error {
	data, err := json.Marshal(cachedPrices{Monthly: monthly, Yearly: yearly})
	if err != nil {
		return err
	}
	return r.client.Set(ctx, "subsettle:prices", data, ttl).Err()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	rateKey := fmt.Sprintf("subsettle:ratelimit:%s", key)
	count, err := r.client.Incr(ctx, rateKey).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, rateKey, window).Err(); err != nil {
			return false, err
		}
	}
	return count > int64(limit), nil
}
