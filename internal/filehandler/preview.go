package filehandler

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	// Decoders for image.DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Preview is the terminal stand-in for a thumbnail: dimensions and format,
// read from the image header only.
type Preview struct {
	Width  int
	Height int
	Format string
}

// BuildPreview reads the image header from data.
func BuildPreview(data []byte) (*Preview, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image header: %w", err)
	}
	return &Preview{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

func (p *Preview) String() string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("%dx%d %s", p.Width, p.Height, strings.ToUpper(p.Format))
}

// Describe combines dimensions and EXIF into the line shown after selection.
func (f *ImageFile) Describe() string {
	parts := []string{formatBytes(f.Size)}
	if s := f.Preview.String(); s != "" {
		parts = append([]string{s}, parts...)
	}
	if s := f.Metadata.Summary(); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}
