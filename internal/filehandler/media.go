// Package filehandler loads user-selected images for upload.
//
// Selection is where the input constraints are enforced: the file must exist,
// be non-empty, carry a supported image extension and sniff as image/* from
// its content. The bytes are read into memory once; the upload never goes
// back to disk.
package filehandler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"github.com/fpang/smart-image-moderation/internal/moderation"
)

// MaxImageBytes caps how much of a selected file is read into memory.
const MaxImageBytes = 32 << 20

// SupportedImageExtensions maps selectable extensions to their media type.
// The backend accepts JPEG, PNG and WebP; the others are selectable so that
// its rejection reaches the user as an upload error.
var SupportedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".heic": "image/heic",
	".heif": "image/heif",
}

var (
	// ErrEmptyFile is returned for zero-byte selections.
	ErrEmptyFile = errors.New("file is empty")
	// ErrNotImage is returned when the content does not sniff as an image.
	ErrNotImage = errors.New("file is not an image")
)

// ImageFile is a selected image held in memory.
type ImageFile struct {
	Path     string
	MIMEType string
	Size     int64
	Data     []byte
	Metadata *ImageMetadata
	Preview  *Preview
}

// UploadRequest converts the selection into the payload handed to the client.
func (f *ImageFile) UploadRequest() moderation.UploadRequest {
	return moderation.UploadRequest{
		Filename:  filepath.Base(f.Path),
		MediaType: f.MIMEType,
		Data:      f.Data,
	}
}

// LoadImage validates and reads the image at filePath.
func LoadImage(filePath string) (*ImageFile, error) {
	log.Debug().Str("path", filePath).Msg("Loading image file")

	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", filePath)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", filePath)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%s: %w", filePath, ErrEmptyFile)
	}
	if info.Size() > MaxImageBytes {
		return nil, fmt.Errorf("%s: file is %d bytes, limit is %d", filePath, info.Size(), MaxImageBytes)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	mimeType, err := GetMIMEType(ext)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return nil, fmt.Errorf("%s: content sniffed as %s: %w", filePath, detected.String(), ErrNotImage)
	}
	if base, _, _ := strings.Cut(detected.String(), ";"); base != mimeType {
		log.Debug().
			Str("path", filePath).
			Str("extension_type", mimeType).
			Str("detected_type", base).
			Msg("Extension and content disagree, using detected type")
		mimeType = base
	}

	img := &ImageFile{
		Path:     filePath,
		MIMEType: mimeType,
		Size:     info.Size(),
		Data:     data,
	}

	if meta, err := ExtractImageMetadata(data); err != nil {
		log.Debug().Err(err).Str("path", filePath).Msg("No EXIF metadata, continuing without it")
	} else {
		img.Metadata = meta
	}

	if preview, err := BuildPreview(data); err != nil {
		log.Debug().Err(err).Str("path", filePath).Msg("Could not decode image dimensions")
	} else {
		img.Preview = preview
	}

	log.Info().
		Str("path", filePath).
		Str("mime_type", mimeType).
		Int64("size_bytes", info.Size()).
		Msg("Image loaded")

	return img, nil
}

// GetMIMEType returns the MIME type for a given image extension.
func GetMIMEType(ext string) (string, error) {
	if mimeType, ok := SupportedImageExtensions[strings.ToLower(ext)]; ok {
		return mimeType, nil
	}
	return "", fmt.Errorf("unsupported file extension: %q", ext)
}
