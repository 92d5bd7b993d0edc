// Package redis persists client credentials in Redis.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dialTimeout = 5 * time.Second

// Config is the credential store connection.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Connect returns a client once the server answers a ping.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  dialTimeout,
		WriteTimeout: dialTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewStores returns the bearer and provider slots of one client instance.
func NewStores(client *redis.Client, instanceID string, ttl time.Duration) (bearer, provider *CredentialStore) {
	return NewCredentialStore(client, instanceID, SlotBearer, ttl),
		NewCredentialStore(client, instanceID, SlotProvider, ttl)
}
