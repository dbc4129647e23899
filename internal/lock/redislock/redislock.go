// Package redislock serializes award processing per user across service instances.
package redislock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MarkoPoloResearchLab/gamification/pkg/ledger"
)

const (
	defaultKeyPrefix    = "awards:user-lock:"
	defaultTTL          = 30 * time.Second
	defaultPollInterval = 25 * time.Millisecond
	releaseTimeout      = 2 * time.Second
)

// releaseScript deletes the key only while it still carries the holder's token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Locker implements ledger.UserLocker with SET NX PX leases.
type Locker struct {
	client       redis.UniversalClient
	keyPrefix    string
	ttl          time.Duration
	pollInterval time.Duration
	newToken     func() string
}

// Option configures a Locker.
type Option func(*Locker)

// WithTTL sets the lease length. A crashed holder frees the user after ttl.
func WithTTL(ttl time.Duration) Option {
	return func(locker *Locker) {
		if ttl > 0 {
			locker.ttl = ttl
		}
	}
}

// WithPollInterval sets how often a waiter retries the lease.
func WithPollInterval(interval time.Duration) Option {
	return func(locker *Locker) {
		if interval > 0 {
			locker.pollInterval = interval
		}
	}
}

// WithKeyPrefix namespaces lock keys.
func WithKeyPrefix(prefix string) Option {
	return func(locker *Locker) {
		if prefix != "" {
			locker.keyPrefix = prefix
		}
	}
}

// New builds a Locker on an existing client.
func New(client redis.UniversalClient, options ...Option) *Locker {
	locker := &Locker{
		client:       client,
		keyPrefix:    defaultKeyPrefix,
		ttl:          defaultTTL,
		pollInterval: defaultPollInterval,
		newToken:     uuid.NewString,
	}
	for _, option := range options {
		option(locker)
	}
	return locker
}

var _ ledger.UserLocker = (*Locker)(nil)

// Lock waits for the user's lease. Redis failures and cancellation surface as ledger.ErrUnavailable.
func (locker *Locker) Lock(ctx context.Context, userID ledger.UserID) (func(), error) {
	key := locker.keyPrefix + userID.String()
	token := locker.newToken()
	ticker := time.NewTicker(locker.pollInterval)
	defer ticker.Stop()
	for {
		acquired, err := locker.client.SetNX(ctx, key, token, locker.ttl).Result()
		if err != nil {
			return nil, ledger.WrapError("lock", "user", "acquire", fmt.Errorf("%w: %v", ledger.ErrUnavailable, err))
		}
		if acquired {
			return locker.unlocker(key, token), nil
		}
		select {
		case <-ctx.Done():
			return nil, ledger.WrapError("lock", "user", "wait", fmt.Errorf("%w: %v", ledger.ErrUnavailable, ctx.Err()))
		case <-ticker.C:
		}
	}
}

func (locker *Locker) unlocker(key string, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			// An expired lease is simply left alone; the next holder owns the key.
			_ = releaseScript.Run(ctx, locker.client, []string{key}, token).Err()
		})
	}
}
