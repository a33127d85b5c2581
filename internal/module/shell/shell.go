package shell

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vidgen/studio/internal/model"
	"github.com/vidgen/studio/internal/port/inbound"
	"github.com/vidgen/studio/internal/port/outbound"
	"github.com/vidgen/studio/internal/utils/requestctx"
)

const stateWriteTimeout = 5 * time.Second

// run tracks one in-flight submission.
type run struct {
	cancel context.CancelFunc
}

// Shell drives the per-session, per-mode lifecycle state that a front-end
// renders. Submissions run in the background; callers poll State.
type Shell struct {
	lifecycle inbound.GenerationLifecyclePort
	states    outbound.LifecycleStateStorePort
	logger    *zap.Logger

	mu      sync.Mutex
	running map[stateKey]*run

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// NewShell creates a shell. states defaults to an in-memory store.
func NewShell(lifecycle inbound.GenerationLifecyclePort, states outbound.LifecycleStateStorePort, logger *zap.Logger) *Shell {
	if states == nil {
		states = NewMemoryStateStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Shell{
		lifecycle: lifecycle,
		states:    states,
		logger:    logger,
		running:   make(map[stateKey]*run),
		baseCtx:   ctx,
		stop:      stop,
	}
}

// Start validates req and launches its submission, returning the pending state.
// Invalid input is rejected without touching the stored state.
func (s *Shell) Start(ctx context.Context, session string, req *model.GenerationRequest) (*model.LifecycleState, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := stateKey{session, req.Mode}

	// State writes for a key happen under mu so that Clear and a finishing
	// run cannot interleave with a new Start.
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.running[key]; busy {
		return nil, model.NewInProgressError(req.Mode)
	}
	if s.baseCtx.Err() != nil {
		return nil, model.NewCancelledError(s.baseCtx.Err())
	}

	pending := model.PendingState(req.Mode)
	if err := s.states.Set(ctx, session, pending); err != nil {
		return nil, fmt.Errorf("store pending state: %w", err)
	}

	runCtx := requestctx.WithSession(s.baseCtx, session)
	runCtx = requestctx.WithRequestID(runCtx, requestctx.RequestID(ctx))
	runCtx, cancel := context.WithCancel(runCtx)
	r := &run{cancel: cancel}
	s.running[key] = r

	s.wg.Add(1)
	go s.execute(runCtx, key, r, req)

	s.logger.Debug("Generation started",
		zap.String("session", session),
		zap.String("mode", string(req.Mode)),
	)
	return pending, nil
}

// execute runs one submission and records its terminal state.
func (s *Shell) execute(ctx context.Context, key stateKey, r *run, req *model.GenerationRequest) {
	defer s.wg.Done()
	defer r.cancel()

	var state *model.LifecycleState
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("Generation panicked",
				zap.String("session", key.session),
				zap.String("mode", string(key.mode)),
				zap.Any("panic", p),
			)
			state = model.FailedState(key.mode, model.GenerationErrorTransport, MessageFailed)
		}
		s.complete(key, r, state)
	}()

	result, err := s.lifecycle.Submit(ctx, req)
	if err != nil {
		state = model.FailedState(key.mode, model.GenerationErrorKindOf(err), Notification(err))
		return
	}
	state = model.SucceededState(result)
}

// complete stores the outcome of r and then releases its key. Nothing is
// stored when r was cleared while running.
func (s *Shell) complete(key stateKey, r *run, state *model.LifecycleState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[key] != r {
		return
	}
	s.record(key, state)
	delete(s.running, key)
}

func (s *Shell) record(key stateKey, state *model.LifecycleState) {
	ctx, cancel := context.WithTimeout(context.Background(), stateWriteTimeout)
	defer cancel()
	if err := s.states.Set(ctx, key.session, state); err != nil {
		s.logger.Error("Failed to store generation state",
			zap.String("session", key.session),
			zap.String("mode", string(key.mode)),
			zap.Error(err),
		)
	}
}

// State returns the current state for (session, mode); Idle when none is stored.
func (s *Shell) State(ctx context.Context, session string, mode model.GenerationMode) (*model.LifecycleState, error) {
	state, err := s.states.Get(ctx, session, mode)
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}
	if state == nil {
		return model.IdleState(mode), nil
	}
	return state, nil
}

// Clear resets (session, mode) to Idle. An in-flight submission is cancelled
// and its outcome discarded. Any persisted file is left in place.
func (s *Shell) Clear(ctx context.Context, session string, mode model.GenerationMode) error {
	key := stateKey{session, mode}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.running[key]; ok {
		delete(s.running, key)
		r.cancel()
	}

	if err := s.states.Delete(ctx, session, mode); err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	return nil
}

// Cancel aborts the in-flight submission for (session, mode). It reports
// false when nothing is running.
func (s *Shell) Cancel(session string, mode model.GenerationMode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.running[stateKey{session, mode}]
	if !ok {
		return false
	}
	r.cancel()
	return true
}

// Stop cancels every in-flight submission and waits for them to finish.
func (s *Shell) Stop() {
	s.stop()
	s.wg.Wait()
}
