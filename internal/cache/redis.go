package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis wraps the shared Redis client
type Redis struct {
	Client *redis.Client
}

// NewRedis creates a Redis client from a URL and verifies connectivity
func NewRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log.Info().Msg("Redis connection established")
	return &Redis{Client: client}, nil
}

// Close closes the Redis connection
func (r *Redis) Close() {
	if err := r.Client.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close Redis connection")
	}
}
