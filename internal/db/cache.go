package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type CacheService struct {
	client *redis.Client
}

func NewCacheService(addr string, user string, password string) (*CacheService, error) {
	if addr == "" {
		return nil, fmt.Errorf("env LEDGER_CACHE_URL is not set")
	}
	db := redis.NewClient(&redis.Options{
		Addr:        addr,
		Username:    user,
		Password:    password,
		DB:          0,
		MaxRetries:  5,
		DialTimeout: 10 * time.Second,
	})
	err := db.Ping(context.Background()).Err()
	if err != nil {
		return nil, err
	}
	return &CacheService{db}, nil
}

func (c *CacheService) GetBalance(ctx context.Context, key string) (points int64, err error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, fmt.Errorf("not found")
	} else if err != nil {
		return 0, err
	}
	points, err = strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, err
	}
	return points, nil
}

func (c *CacheService) SetBalance(ctx context.Context, key string, points int64) error {
	return c.client.Set(ctx, key, points, 5*time.Minute).Err()
}

func (c *CacheService) InvalidateBalance(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
