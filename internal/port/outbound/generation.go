package outbound

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/vidgen/studio/internal/model"
)

// VideoGeneratorPort calls the remote video generation API.
type VideoGeneratorPort interface {
	// Generate submits req for mode and returns the binary video body.
	// A non-success status is reported as a remote GenerationError and a
	// failure before a status as a transport GenerationError.
	Generate(ctx context.Context, credential string, mode model.GenerationMode, req *model.VideoAPIRequest) (io.ReadCloser, error)
}

// VideoArtifactStorePort persists generated videos in the cache-scoped directory.
type VideoArtifactStorePort interface {
	// Save writes r to a new, uniquely named file. No file remains on error.
	Save(ctx context.Context, mode model.GenerationMode, r io.Reader) (*model.VideoArtifact, error)

	// Open opens a previously saved file for playback.
	Open(location string) (io.ReadSeekCloser, error)

	// Dir returns the output directory.
	Dir() string
}

// ErrShareUnavailable indicates no share backend is configured.
var ErrShareUnavailable = errors.New("share storage not configured")

// ShareLink is a reference a user can hand to another app or person.
type ShareLink struct {
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// VideoSharePort publishes a persisted video for sharing.
type VideoSharePort interface {
	// Share makes the file at location reachable and returns its link.
	Share(ctx context.Context, result *model.GenerationResult) (*ShareLink, error)
}

// LifecycleStateStorePort keeps the presentation shell's per-mode state.
type LifecycleStateStorePort interface {
	// Get returns the state for (session, mode), or nil when none is stored.
	Get(ctx context.Context, session string, mode model.GenerationMode) (*model.LifecycleState, error)

	// Set stores the state for (session, mode).
	Set(ctx context.Context, session string, state *model.LifecycleState) error

	// Delete removes the state for (session, mode).
	Delete(ctx context.Context, session string, mode model.GenerationMode) error
}
