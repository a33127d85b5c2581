package model

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerationMode selects the generation endpoint and request shape.
type GenerationMode string

const (
	GenerationModeTextToVideo  GenerationMode = "text-to-video"
	GenerationModeImageToVideo GenerationMode = "image-to-video"
)

// GenerationModes lists every supported mode.
var GenerationModes = []GenerationMode{GenerationModeTextToVideo, GenerationModeImageToVideo}

// ParseGenerationMode parses a mode name.
func ParseGenerationMode(s string) (GenerationMode, error) {
	m := GenerationMode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", NewValidationError(fmt.Sprintf("unsupported mode %q", s))
	}
	return m, nil
}

// Valid reports whether m is a supported mode.
func (m GenerationMode) Valid() bool {
	return m == GenerationModeTextToVideo || m == GenerationModeImageToVideo
}

// Endpoint returns the API path for the mode.
func (m GenerationMode) Endpoint() string {
	return "/v1/" + string(m)
}

// RequiresImage reports whether the mode needs a source image.
func (m GenerationMode) RequiresImage() bool {
	return m == GenerationModeImageToVideo
}

// VideoDuration is the clip length in seconds.
type VideoDuration int

const (
	VideoDurationShort VideoDuration = 5
	VideoDurationLong  VideoDuration = 8
)

// Valid reports whether d is a supported duration.
func (d VideoDuration) Valid() bool {
	return d == VideoDurationShort || d == VideoDurationLong
}

// Seconds returns the duration as time.Duration.
func (d VideoDuration) Seconds() time.Duration {
	return time.Duration(d) * time.Second
}

// VideoResolution is the output frame size.
type VideoResolution string

const (
	VideoResolution720p  VideoResolution = "1280x720"
	VideoResolution1080p VideoResolution = "1920x1080"
)

// Valid reports whether r is a supported resolution.
func (r VideoResolution) Valid() bool {
	return r == VideoResolution720p || r == VideoResolution1080p
}

// SourceImage is the binary image attached to an image-to-video request.
type SourceImage struct {
	Data        []byte `json:"-"`
	ContentType string `json:"content_type"`
	Name        string `json:"name,omitempty"`
}

// Empty reports whether the image carries no data.
func (i *SourceImage) Empty() bool {
	return i == nil || len(i.Data) == 0
}

// DataURI encodes the image as a base64 data URI.
func (i *SourceImage) DataURI() string {
	contentType := i.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(i.Data)
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// GenerationRequest is one user-initiated generation attempt.
type GenerationRequest struct {
	Mode        GenerationMode  `json:"mode"`
	Prompt      string          `json:"prompt"`
	SourceImage *SourceImage    `json:"source_image,omitempty"`
	Duration    VideoDuration   `json:"duration"`
	Resolution  VideoResolution `json:"resolution"`
}

// Validate checks the request invariants. It never touches the network.
func (r *GenerationRequest) Validate() error {
	if r == nil {
		return NewValidationError("request is required")
	}
	if !r.Mode.Valid() {
		return NewValidationError(fmt.Sprintf("unsupported mode %q", r.Mode))
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return NewValidationError("prompt is required")
	}
	if r.Mode.RequiresImage() && r.SourceImage.Empty() {
		return NewValidationError("a source image is required for image-to-video")
	}
	if !r.Mode.RequiresImage() && !r.SourceImage.Empty() {
		return NewValidationError("a source image is only accepted for image-to-video")
	}
	if !r.Duration.Valid() {
		return NewValidationError(fmt.Sprintf("duration must be %d or %d seconds", VideoDurationShort, VideoDurationLong))
	}
	if !r.Resolution.Valid() {
		return NewValidationError(fmt.Sprintf("resolution must be %s or %s", VideoResolution720p, VideoResolution1080p))
	}
	return nil
}

// VideoAPIRequest is the JSON body sent to the generation endpoints.
type VideoAPIRequest struct {
	Prompt     string          `json:"prompt"`
	Model      string          `json:"model"`
	Duration   VideoDuration   `json:"duration"`
	Resolution VideoResolution `json:"resolution"`
	Image      string          `json:"image,omitempty"`
}

// NewVideoAPIRequest builds the wire body for req.
func NewVideoAPIRequest(req *GenerationRequest, modelID string) *VideoAPIRequest {
	out := &VideoAPIRequest{
		Prompt:     strings.TrimSpace(req.Prompt),
		Model:      modelID,
		Duration:   req.Duration,
		Resolution: req.Resolution,
	}
	if req.Mode.RequiresImage() && !req.SourceImage.Empty() {
		out.Image = req.SourceImage.DataURI()
	}
	return out
}

// VideoArtifact is a persisted binary video file.
type VideoArtifact struct {
	ID        uuid.UUID `json:"id"`
	Location  string    `json:"location"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// GenerationResult references the video produced by a successful request.
type GenerationResult struct {
	ID        uuid.UUID      `json:"id"`
	Mode      GenerationMode `json:"mode"`
	Location  string         `json:"location"`
	Size      int64          `json:"size"`
	CreatedAt time.Time      `json:"created_at"`
}

// LifecycleStatus is the phase of a mode's lifecycle.
type LifecycleStatus string

const (
	LifecycleStatusIdle      LifecycleStatus = "idle"
	LifecycleStatusPending   LifecycleStatus = "pending"
	LifecycleStatusSucceeded LifecycleStatus = "succeeded"
	LifecycleStatusFailed    LifecycleStatus = "failed"
)

// LifecycleState is what the presentation shell renders for one mode.
type LifecycleState struct {
	Mode      GenerationMode      `json:"mode"`
	Status    LifecycleStatus     `json:"status"`
	Result    *GenerationResult   `json:"result,omitempty"`
	Reason    string              `json:"reason,omitempty"`
	ErrorKind GenerationErrorKind `json:"error_kind,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// IdleState returns the initial state for mode.
func IdleState(mode GenerationMode) *LifecycleState {
	return &LifecycleState{Mode: mode, Status: LifecycleStatusIdle, UpdatedAt: time.Now()}
}

// PendingState returns the state of an in-flight request.
func PendingState(mode GenerationMode) *LifecycleState {
	return &LifecycleState{Mode: mode, Status: LifecycleStatusPending, UpdatedAt: time.Now()}
}

// SucceededState returns the state holding result.
func SucceededState(result *GenerationResult) *LifecycleState {
	return &LifecycleState{Mode: result.Mode, Status: LifecycleStatusSucceeded, Result: result, UpdatedAt: time.Now()}
}

// FailedState returns the state for a terminal failure.
func FailedState(mode GenerationMode, kind GenerationErrorKind, reason string) *LifecycleState {
	return &LifecycleState{Mode: mode, Status: LifecycleStatusFailed, ErrorKind: kind, Reason: reason, UpdatedAt: time.Now()}
}

// IsPending reports whether a request is in flight.
func (s *LifecycleState) IsPending() bool {
	return s != nil && s.Status == LifecycleStatusPending
}
