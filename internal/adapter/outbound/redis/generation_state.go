package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vidgen/studio/internal/model"
	"github.com/vidgen/studio/internal/port/outbound"
)

const (
	generationStateKeyPrefix  = "generation:state:"
	defaultGenerationStateTTL = 24 * time.Hour
)

// GenerationStateAdapter implements LifecycleStateStorePort.
type GenerationStateAdapter struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewGenerationStateAdapter creates a new generation state adapter.
func NewGenerationStateAdapter(client redis.UniversalClient, ttl time.Duration) *GenerationStateAdapter {
	if ttl <= 0 {
		ttl = defaultGenerationStateTTL
	}
	return &GenerationStateAdapter{client: client, ttl: ttl}
}

func stateKey(session string, mode model.GenerationMode) string {
	return generationStateKeyPrefix + session + ":" + string(mode)
}

func (a *GenerationStateAdapter) Get(ctx context.Context, session string, mode model.GenerationMode) (*model.LifecycleState, error) {
	data, err := a.client.Get(ctx, stateKey(session, mode)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}

	var state model.LifecycleState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &state, nil
}

func (a *GenerationStateAdapter) Set(ctx context.Context, session string, state *model.LifecycleState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := a.client.Set(ctx, stateKey(session, state.Mode), data, a.ttl).Err(); err != nil {
		return fmt.Errorf("set state: %w", err)
	}
	return nil
}

func (a *GenerationStateAdapter) Delete(ctx context.Context, session string, mode model.GenerationMode) error {
	if err := a.client.Del(ctx, stateKey(session, mode)).Err(); err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (a *GenerationStateAdapter) Ping(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}

// Compile-time interface check
var _ outbound.LifecycleStateStorePort = (*GenerationStateAdapter)(nil)
