package ledger

import (
	"context"
	"fmt"
	"sync"
)

// UserLocker serializes award processing per user. Users never contend with each other.
type UserLocker interface {
	Lock(ctx context.Context, userID UserID) (unlock func(), error)
}

// KeyedLocker is an in-process UserLocker. Waiting honors context cancellation.
type KeyedLocker struct {
	mutex sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	token   chan struct{}
	waiters int
}

// NewKeyedLocker builds an empty locker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{slots: make(map[string]*lockSlot)}
}

// Lock blocks until the user's slot is free or ctx is done.
func (locker *KeyedLocker) Lock(ctx context.Context, userID UserID) (func(), error) {
	key := userID.String()
	locker.mutex.Lock()
	slot, ok := locker.slots[key]
	if !ok {
		slot = &lockSlot{token: make(chan struct{}, 1)}
		locker.slots[key] = slot
	}
	slot.waiters++
	locker.mutex.Unlock()

	select {
	case slot.token <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.token
				locker.release(key, slot)
			})
		}, nil
	case <-ctx.Done():
		locker.release(key, slot)
		return nil, WrapError("lock", "user", "canceled", fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err()))
	}
}

func (locker *KeyedLocker) release(key string, slot *lockSlot) {
	locker.mutex.Lock()
	defer locker.mutex.Unlock()
	slot.waiters--
	if slot.waiters == 0 {
		delete(locker.slots, key)
	}
}
