package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"

	"github.com/fpang/smart-image-moderation/internal/filehandler"
)

// ErrPickerCanceled is returned when the user closes the file dialog.
var ErrPickerCanceled = errors.New("file selection canceled")

// PickImage opens the native file dialog filtered to supported images.
func PickImage() (string, error) {
	selected, err := zenity.SelectFile(
		zenity.Title("Select an image to analyze"),
		zenity.FileFilters{
			{
				Name:     "Images",
				Patterns: imagePatterns(),
			},
		},
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return "", ErrPickerCanceled
		}
		log.Error().Err(err).Msg("File picker failed")
		return "", fmt.Errorf("file picker failed: %w", err)
	}

	log.Debug().Str("path", selected).Msg("Image picked")
	return selected, nil
}

func imagePatterns() []string {
	patterns := make([]string, 0, len(filehandler.SupportedImageExtensions))
	for ext := range filehandler.SupportedImageExtensions {
		patterns = append(patterns, "*"+ext)
	}
	sort.Strings(patterns)
	return patterns
}
