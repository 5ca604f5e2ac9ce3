package server

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chaos-io/rembg/config"
	"github.com/chaos-io/rembg/rembg"
)

const cachePrefix = "rembg:result:"

// ResultCache 输入指纹 -> 结果 ID
// Get 未命中时返回 "" 和 nil
type ResultCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, id string) error
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(cfg *config.RedisConfig) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisCache{
		client: client,
		ttl:    cfg.TTL,
	}
}

func (s *RedisCache) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisCache) Get(ctx context.Context, key string) (string, error) {
	id, err := s.client.Get(ctx, cachePrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return id, nil
}

func (s *RedisCache) Set(ctx context.Context, key, id string) error {
	return s.client.Set(ctx, cachePrefix+key, id, s.ttl).Err()
}

func (s *RedisCache) Close() error {
	return s.client.Close()
}

// NopCache Redis 不可用时使用，永远不命中
type NopCache struct{}

func (NopCache) Get(context.Context, string) (string, error) { return "", nil }
func (NopCache) Set(context.Context, string, string) error   { return nil }

// CacheKey md5(原图字节) + 影响输出的参数
func CacheKey(data []byte, opts rembg.RemovalOptions, trim bool, format string) string {
	sum := md5.Sum(data)
	return fmt.Sprintf("%s:t%d:b%t:s%t:c%t:%s", hex.EncodeToString(sum[:]),
		opts.Threshold, opts.Binary, opts.StickerOutline, trim, format)
}
