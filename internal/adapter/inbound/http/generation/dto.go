package generationhttp

import (
	"time"

	"github.com/google/uuid"

	"github.com/vidgen/studio/internal/model"
)

// submitRequest is the JSON form of a generation submission.
type submitRequest struct {
	Prompt           string `json:"prompt"`
	Duration         int    `json:"duration"`
	Resolution       string `json:"resolution"`
	ImageBase64      string `json:"image_base64,omitempty"`
	ImageContentType string `json:"image_content_type,omitempty"`
	ImageName        string `json:"image_name,omitempty"`
}

// stateResponse is what clients render for one mode.
type stateResponse struct {
	Mode         model.GenerationMode      `json:"mode"`
	Status       model.LifecycleStatus     `json:"status"`
	Result       *resultResponse           `json:"result,omitempty"`
	Notification string                    `json:"notification,omitempty"`
	ErrorKind    model.GenerationErrorKind `json:"error_kind,omitempty"`
	UpdatedAt    time.Time                 `json:"updated_at"`
}

type resultResponse struct {
	ID        uuid.UUID `json:"id"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	VideoURL  string    `json:"video_url"`
}

type cancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

type shareResponse struct {
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Local     bool       `json:"local"`
}
