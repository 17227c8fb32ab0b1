package config

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to the address (plain host:port or a
// redis:// / rediss:// URL) and verifies it with a ping.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}
