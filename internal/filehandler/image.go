package filehandler

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
)

// ImageMetadata is the EXIF subset shown next to the selected file.
// PNG and WebP files usually carry none; that is not an error for upload.
type ImageMetadata struct {
	CameraMake  string
	CameraModel string

	DateTaken time.Time
	HasDate   bool

	HasGPS bool
}

// ExtractImageMetadata decodes EXIF from an in-memory image.
func ExtractImageMetadata(data []byte) (*ImageMetadata, error) {
	exifData, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode EXIF metadata: %w", err)
	}

	meta := &ImageMetadata{
		CameraMake:  strings.TrimSpace(exifData.Make),
		CameraModel: strings.TrimSpace(exifData.Model),
		HasGPS:      exifData.GPS.Latitude() != 0 || exifData.GPS.Longitude() != 0,
	}

	// DateTimeOriginal > CreateDate > ModifyDate
	for _, t := range []time.Time{exifData.DateTimeOriginal(), exifData.CreateDate(), exifData.ModifyDate()} {
		if !t.IsZero() {
			meta.DateTaken = t
			meta.HasDate = true
			break
		}
	}

	return meta, nil
}

// Camera returns "Make Model", collapsing the make when the model repeats it.
func (m *ImageMetadata) Camera() string {
	switch {
	case m.CameraModel == "":
		return m.CameraMake
	case m.CameraMake == "", strings.HasPrefix(strings.ToLower(m.CameraModel), strings.ToLower(m.CameraMake)):
		return m.CameraModel
	default:
		return m.CameraMake + " " + m.CameraModel
	}
}

// Summary is a one-line description for the selection preview, or "" when
// the image carries nothing worth showing.
func (m *ImageMetadata) Summary() string {
	if m == nil {
		return ""
	}
	var parts []string
	if c := m.Camera(); c != "" {
		parts = append(parts, c)
	}
	if m.HasDate {
		parts = append(parts, m.DateTaken.Format("2006-01-02 15:04"))
	}
	if m.HasGPS {
		parts = append(parts, "GPS tagged")
	}
	return strings.Join(parts, ", ")
}
