package db

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

var Redis *redis.Client

func ConnectRedis(ctx context.Context, redisURL string) error {
	if redisURL == "" {
		return errors.New("REDIS_URL environment variable is not set")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{Addr: redisURL}
	}

	Redis = redis.NewClient(opt)

	if err := Redis.Ping(ctx).Err(); err != nil {
		Redis.Close()
		Redis = nil
		return err
	}
	return nil
}

func CloseRedis() {
	if Redis != nil {
		Redis.Close()
	}
}
