package jobs

import (
	"errors"
	"testing"

	"github.com/fpang/smart-image-moderation/internal/moderation"
)

func TestParseResultRoute(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		want    moderation.JobHandle
		wantErr bool
	}{
		{name: "bare id", arg: "4f1c2a9e-1b2c-4d5e-8f90-123456789abc", want: "4f1c2a9e-1b2c-4d5e-8f90-123456789abc"},
		{name: "bare id with spaces", arg: "  abc123 \n", want: "abc123"},
		{name: "path", arg: "/result/abc123", want: "abc123"},
		{name: "absolute url", arg: "http://localhost:3000/result/abc123", want: "abc123"},
		{name: "trailing slash and query", arg: "https://app.example.com/result/abc123/?tab=ocr#top", want: "abc123"},
		{name: "escaped id", arg: "/result/abc%20123", want: "abc 123"},
		{name: "empty", arg: "   ", wantErr: true},
		{name: "result without id", arg: "http://localhost:3000/result/", wantErr: true},
		{name: "other route", arg: "http://localhost:3000/upload", wantErr: true},
		{name: "nested id", arg: "/result/abc/def", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResultRoute(tt.arg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseResultRoute(%q) error = %v, wantErr %v", tt.arg, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseResultRoute(%q) = %q, want %q", tt.arg, got, tt.want)
			}
		})
	}
}

func TestParseResultRoute_EmptyIsEmptyJob(t *testing.T) {
	if _, err := ParseResultRoute(""); !errors.Is(err, moderation.ErrEmptyJob) {
		t.Errorf("expected ErrEmptyJob, got %v", err)
	}
}
