package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	pkgredis "github.com/angelmondragon/ghanadude-checkout/pkg/redis"
)

type kvStore interface {
	Get(ctx context.Context, key string) (string, error)
	Update(ctx context.Context, key string, ttl time.Duration, fn func(current string, found bool) (string, error)) error
}

// RedisPersister stores cart states as JSON strings under StorageKey(owner).
// Writes run under WATCH so a racing instance cannot overwrite them unseen.
type RedisPersister struct {
	store kvStore
	ttl   time.Duration
}

// NewRedisPersister builds a persister over the redis client; ttl 0 keeps carts forever.
func NewRedisPersister(store kvStore, ttl time.Duration) (*RedisPersister, error) {
	if store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	return &RedisPersister{store: store, ttl: ttl}, nil
}

func (p *RedisPersister) Load(ctx context.Context, owner string) (*State, error) {
	raw, err := p.store.Get(ctx, StorageKey(owner))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}
	return decodeState([]byte(raw))
}

func (p *RedisPersister) Save(ctx context.Context, owner string, expected int64, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	err = p.store.Update(ctx, StorageKey(owner), p.ttl, func(current string, found bool) (string, error) {
		var stored int64
		if found {
			stored = revisionOf([]byte(current))
		}
		if stored != expected {
			return "", ErrRevisionConflict
		}
		return string(data), nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRevisionConflict), errors.Is(err, pkgredis.ErrWatchConflict):
		return ErrRevisionConflict
	}
	return fmt.Errorf("redis set cart: %w", err)
}

// ErrCorruptState marks stored payloads that cannot be turned back into a State.
var ErrCorruptState = errors.New("corrupt cart state")

// decodeState parses a stored payload. On failure it still returns an empty
// state holding whatever revision could be read.
func decodeState(data []byte) (*State, error) {
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return corruptState(data), fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if state.Version != SchemaVersion {
		return corruptState(data), fmt.Errorf("%w: unsupported version %d", ErrCorruptState, state.Version)
	}
	if state.Lines == nil {
		state.Lines = []Line{}
	}
	return &state, nil
}

func corruptState(data []byte) *State {
	state := emptyState()
	state.Revision = revisionOf(data)
	return &state
}

// revisionOf reads only the revision of a payload; unreadable payloads are 0.
func revisionOf(data []byte) int64 {
	var head struct {
		Revision int64 `json:"revision"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return 0
	}
	return head.Revision
}
