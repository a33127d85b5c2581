package inbound

import (
	"context"

	"github.com/vidgen/studio/internal/model"
)

// GenerationLifecyclePort runs one generation attempt end to end.
type GenerationLifecyclePort interface {
	Submit(ctx context.Context, req *model.GenerationRequest) (*model.GenerationResult, error)
}
