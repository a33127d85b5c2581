package generation

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vidgen/studio/internal/infra/events"
	"github.com/vidgen/studio/internal/model"
)

const (
	EventTypeSucceeded = "generation.succeeded"
	EventTypeFailed    = "generation.failed"
)

// Publisher receives lifecycle events.
type Publisher interface {
	Publish(event events.Event)
}

// SucceededEvent is published when a video was generated and saved.
type SucceededEvent struct {
	events.BaseEvent
	Mode     model.GenerationMode `json:"mode"`
	Size     int64                `json:"size"`
	Duration time.Duration        `json:"duration"`
}

// FailedEvent is published when a submission ends in an error.
type FailedEvent struct {
	events.BaseEvent
	Mode       model.GenerationMode      `json:"mode"`
	Kind       model.GenerationErrorKind `json:"kind"`
	StatusCode int                       `json:"status_code,omitempty"`
	Duration   time.Duration             `json:"duration"`
}

func newSucceededEvent(result *model.GenerationResult, elapsed time.Duration) *SucceededEvent {
	return &SucceededEvent{
		BaseEvent: events.NewBaseEvent(EventTypeSucceeded, result.ID),
		Mode:      result.Mode,
		Size:      result.Size,
		Duration:  elapsed,
	}
}

func newFailedEvent(mode model.GenerationMode, err error, elapsed time.Duration) *FailedEvent {
	e := &FailedEvent{
		BaseEvent: events.NewBaseEvent(EventTypeFailed, uuid.New()),
		Mode:      mode,
		Kind:      model.GenerationErrorKindOf(err),
		Duration:  elapsed,
	}
	var genErr *model.GenerationError
	if errors.As(err, &genErr) {
		e.StatusCode = genErr.StatusCode
	}
	return e
}
