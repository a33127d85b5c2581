package shell

import (
	"errors"

	"github.com/vidgen/studio/internal/model"
)

// User-facing messages. Remote status codes and bodies are logged, never shown.
const (
	MessageNotConfigured = "Video generation is not configured. Set an API key."
	MessageFailed        = "Video generation failed. Please try again."
	MessageCancelled     = "Video generation was cancelled."
	MessageInProgress    = "A video is already being generated."
)

// Notification maps err to the single message shown to the user.
func Notification(err error) string {
	if err == nil {
		return ""
	}
	var genErr *model.GenerationError
	if !errors.As(err, &genErr) {
		return MessageFailed
	}
	switch genErr.Kind {
	case model.GenerationErrorConfiguration:
		return MessageNotConfigured
	case model.GenerationErrorValidation:
		return genErr.Message
	case model.GenerationErrorCancelled:
		return MessageCancelled
	case model.GenerationErrorInProgress:
		return MessageInProgress
	default:
		return MessageFailed
	}
}
