package generation

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vidgen/studio/internal/infra/events"
	"github.com/vidgen/studio/internal/model"
	"github.com/vidgen/studio/internal/port/inbound"
	"github.com/vidgen/studio/internal/port/outbound"
	"github.com/vidgen/studio/internal/utils/requestctx"
)

// flight identifies a caller's submission for one mode. The session comes
// from the submission context; callers without one share the empty session.
type flight struct {
	session string
	mode    model.GenerationMode
}

// Domain runs the generation request lifecycle: validate, call the API,
// persist the returned video and hand back its location.
type Domain struct {
	generator outbound.VideoGeneratorPort
	artifacts outbound.VideoArtifactStorePort
	publisher Publisher
	config    *Config
	logger    *zap.Logger

	mu       sync.Mutex
	inFlight map[flight]bool
}

// NewDomain creates a new generation domain. publisher may be nil.
func NewDomain(
	generator outbound.VideoGeneratorPort,
	artifacts outbound.VideoArtifactStorePort,
	publisher Publisher,
	config *Config,
	logger *zap.Logger,
) *Domain {
	cfg := DefaultConfig()
	if config != nil {
		copied := *config
		cfg = &copied
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Domain{
		generator: generator,
		artifacts: artifacts,
		publisher: publisher,
		config:    cfg,
		logger:    logger,
		inFlight:  make(map[flight]bool),
	}
}

// Configured reports whether an API credential is set.
func (d *Domain) Configured() bool {
	return strings.TrimSpace(d.config.APIKey) != ""
}

// InFlight reports whether session has a submission for mode running.
func (d *Domain) InFlight(session string, mode model.GenerationMode) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight[flight{session, mode}]
}

// Submit runs one generation attempt. Every failure is a *model.GenerationError;
// no error result references a file.
func (d *Domain) Submit(ctx context.Context, req *model.GenerationRequest) (*model.GenerationResult, error) {
	start := time.Now()

	result, err := d.submit(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		d.logFailure(ctx, req, err, elapsed)
		if req != nil && !model.IsGenerationErrorKind(err, model.GenerationErrorInProgress) {
			d.publish(newFailedEvent(req.Mode, err, elapsed))
		}
		return nil, err
	}

	d.logger.Info("Video generated",
		zap.String("session", requestctx.Session(ctx)),
		zap.String("request_id", requestctx.RequestID(ctx)),
		zap.String("mode", string(result.Mode)),
		zap.String("result_id", result.ID.String()),
		zap.String("location", result.Location),
		zap.Int64("size", result.Size),
		zap.Duration("elapsed", elapsed),
	)
	d.publish(newSucceededEvent(result, elapsed))
	return result, nil
}

func (d *Domain) submit(ctx context.Context, req *model.GenerationRequest) (*model.GenerationResult, error) {
	if !d.Configured() {
		return nil, model.NewConfigurationError("no API key configured")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := flight{requestctx.Session(ctx), req.Mode}
	if !d.acquire(key) {
		return nil, model.NewInProgressError(req.Mode)
	}
	defer d.release(key)

	body, err := d.generator.Generate(ctx, d.config.APIKey, req.Mode, model.NewVideoAPIRequest(req, d.config.Model))
	if err != nil {
		return nil, classify(ctx, err, model.NewTransportError)
	}
	defer body.Close()

	src := &trackingReader{r: body}
	artifact, err := d.artifacts.Save(ctx, req.Mode, src)
	if err != nil {
		if src.err != nil {
			return nil, classify(ctx, src.err, model.NewTransportError)
		}
		return nil, classify(ctx, err, model.NewStorageError)
	}

	return &model.GenerationResult{
		ID:        artifact.ID,
		Mode:      req.Mode,
		Location:  artifact.Location,
		Size:      artifact.Size,
		CreatedAt: artifact.CreatedAt,
	}, nil
}

func (d *Domain) acquire(key flight) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inFlight[key] {
		return false
	}
	d.inFlight[key] = true
	return true
}

func (d *Domain) release(key flight) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inFlight, key)
}

func (d *Domain) publish(e events.Event) {
	if d.publisher != nil {
		d.publisher.Publish(e)
	}
}

func (d *Domain) logFailure(ctx context.Context, req *model.GenerationRequest, err error, elapsed time.Duration) {
	fields := []zap.Field{
		zap.String("session", requestctx.Session(ctx)),
		zap.String("request_id", requestctx.RequestID(ctx)),
		zap.String("kind", string(model.GenerationErrorKindOf(err))),
		zap.Duration("elapsed", elapsed),
		zap.Error(err),
	}
	if req != nil {
		fields = append(fields, zap.String("mode", string(req.Mode)))
	}

	var genErr *model.GenerationError
	if errors.As(err, &genErr) && genErr.Kind == model.GenerationErrorRemote {
		fields = append(fields, zap.Int("status_code", genErr.StatusCode), zap.String("body", genErr.Body))
	}

	switch model.GenerationErrorKindOf(err) {
	case model.GenerationErrorValidation, model.GenerationErrorInProgress, model.GenerationErrorCancelled:
		d.logger.Info("Video generation rejected", fields...)
	default:
		d.logger.Warn("Video generation failed", fields...)
	}
}

// classify turns err into a GenerationError. Errors that already carry a kind
// pass through; a done context wins over everything else.
func classify(ctx context.Context, err error, fallback func(error) *model.GenerationError) error {
	if ctx.Err() != nil {
		return model.NewCancelledError(ctx.Err())
	}
	var genErr *model.GenerationError
	if errors.As(err, &genErr) {
		return genErr
	}
	return fallback(err)
}

// trackingReader remembers the first read error so a failed save can be
// attributed to the network rather than the disk.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}

var _ inbound.GenerationLifecyclePort = (*Domain)(nil)
