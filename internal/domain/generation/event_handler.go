package generation

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vidgen/studio/internal/infra/events"
)

// OutcomeSucceeded labels successful generations for a Recorder.
const OutcomeSucceeded = "succeeded"

// Recorder receives generation outcomes, typically prometheus metrics.
type Recorder interface {
	RecordGeneration(mode, outcome string, duration time.Duration, size int64)
}

// EventHandler turns lifecycle events into recorded outcomes.
type EventHandler struct {
	recorder Recorder
	logger   *zap.Logger
}

// NewEventHandler creates a new generation event handler.
func NewEventHandler(recorder Recorder, logger *zap.Logger) *EventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHandler{recorder: recorder, logger: logger}
}

// Handles returns the event types this handler processes.
func (h *EventHandler) Handles() []string {
	return []string{EventTypeSucceeded, EventTypeFailed}
}

// Handle records the outcome carried by event.
func (h *EventHandler) Handle(event events.Event) error {
	switch e := event.(type) {
	case *SucceededEvent:
		h.recorder.RecordGeneration(string(e.Mode), OutcomeSucceeded, e.Duration, e.Size)
	case *FailedEvent:
		h.recorder.RecordGeneration(string(e.Mode), string(e.Kind), e.Duration, 0)
		if e.StatusCode != 0 {
			h.logger.Debug("Generation failed with remote status",
				zap.String("mode", string(e.Mode)),
				zap.Int("status_code", e.StatusCode),
			)
		}
	default:
		return fmt.Errorf("unexpected event type %T", event)
	}
	return nil
}

var _ events.Handler = (*EventHandler)(nil)
