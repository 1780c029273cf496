package cli

import (
	"errors"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/fpang/smart-image-moderation/internal/filehandler"
	"github.com/fpang/smart-image-moderation/internal/moderation"
)

// ResolveImagePath returns the absolute form of path, or path unchanged if
// it cannot be made absolute.
func ResolveImagePath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// UserMessage turns an error from selection or upload into the line shown
// to the user.
func UserMessage(err error) string {
	var uploadErr *moderation.UploadError
	switch {
	case errors.As(err, &uploadErr):
		return uploadErr.UserMessage()
	case errors.Is(err, filehandler.ErrEmptyFile):
		return "The selected file is empty. Choose an image file."
	case errors.Is(err, filehandler.ErrNotImage):
		return "The selected file is not an image. Choose a JPEG, PNG or WebP file."
	case errors.Is(err, ErrPickerCanceled):
		return "No file selected."
	default:
		return err.Error()
	}
}

// ReportUploadError logs the technical cause under the user-facing message.
// The caller decides the exit code so that deferred cleanup still runs.
func ReportUploadError(err error) {
	var uploadErr *moderation.UploadError
	if errors.As(err, &uploadErr) {
		evt := log.Error().Err(err)
		if uploadErr.StatusCode != 0 {
			evt = evt.Int("status_code", uploadErr.StatusCode)
		}
		if uploadErr.Detail != "" {
			evt = evt.Str("detail", uploadErr.Detail)
		}
		evt.Msg(uploadErr.UserMessage())
		return
	}
	log.Error().Err(err).Msg(UserMessage(err))
}
