package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fpang/smart-image-moderation/internal/moderation"
	"github.com/fpang/smart-image-moderation/internal/poller"
	"github.com/fpang/smart-image-moderation/internal/uploadform"
)

const (
	rule    = "============================================"
	subrule = "--------------------------------------------"
)

// RenderForm prints the upload page for the current form state.
func RenderForm(w io.Writer, f uploadform.Form) {
	switch f.Phase {
	case uploadform.PhaseSelected:
		fmt.Fprintf(w, "Selected: %s\n", f.Filename)
		if f.Preview != "" {
			fmt.Fprintf(w, "Preview:  %s\n", f.Preview)
		}
	case uploadform.PhaseUploading:
		fmt.Fprintf(w, "Processing... uploading %s\n", f.Filename)
	case uploadform.PhaseSubmitted:
		fmt.Fprintf(w, "Submitted %s as job %s\n", f.Filename, f.Job)
	case uploadform.PhaseFailed:
		fmt.Fprintf(w, "%s\n", f.Err)
	}
}

// RenderHeader prints the result page title for job.
func RenderHeader(w io.Writer, job moderation.JobHandle) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "Analysis Results")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Job ID: %s\n", job)
	fmt.Fprintln(w, subrule)
}

// RenderStatus prints the status line for a snapshot.
func RenderStatus(w io.Writer, s poller.Snapshot) {
	fmt.Fprintf(w, "Status: %s\n", s.StatusText)
}

// RenderSnapshot prints the body for a terminal snapshot: the result cards on
// success or the backend error on failure. Non-terminal snapshots print
// nothing.
func RenderSnapshot(w io.Writer, s poller.Snapshot) {
	switch s.State {
	case poller.StateSucceeded:
		RenderResult(w, s.Result)
	case poller.StateFailed:
		msg := s.Error
		if msg == "" {
			msg = "Analysis failed."
		}
		fmt.Fprintln(w, subrule)
		fmt.Fprintf(w, "Error: %s\n", msg)
	}
}

// RenderResult prints the analysis cards.
func RenderResult(w io.Writer, r *moderation.AnalysisResult) {
	if r == nil {
		return
	}

	nsfw := "Safe"
	if r.NSFW {
		nsfw = "NSFW (flagged)"
	}
	if r.NSFWScore > 0 {
		nsfw = fmt.Sprintf("%s, score %s", nsfw, FormatNumber(r.NSFWScore))
	}

	fmt.Fprintln(w, subrule)
	fmt.Fprintf(w, "NSFW:            %s\n", nsfw)
	fmt.Fprintf(w, "Faces Detected:  %d\n", r.FacesDetected)
	fmt.Fprintf(w, "Blur Score:      %s\n", FormatNumber(r.BlurScore))
	fmt.Fprintf(w, "Quality Score:   %s\n", FormatNumber(r.QualityScore))
	fmt.Fprintf(w, "Processing Time: %s\n", FormatSeconds(r.ProcessingTime))
	if r.Device != "" {
		fmt.Fprintf(w, "Device:          %s\n", r.Device)
	}
	if len(r.Models) > 0 {
		names := make([]string, 0, len(r.Models))
		for k := range r.Models {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			fmt.Fprintf(w, "Model (%s): %s\n", k, formatModelValue(r.Models[k]))
		}
	}

	fmt.Fprintln(w, "OCR Text:")
	text := strings.TrimSpace(r.OCRText)
	if text == "" {
		text = "No text detected"
	}
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(w, "  %s\n", line)
	}
}

// RenderHealth prints a /health report.
func RenderHealth(w io.Writer, baseURL string, h *moderation.HealthReport) {
	fmt.Fprintf(w, "API:    %s (%s)\n", h.API, baseURL)
	fmt.Fprintf(w, "Redis:  %s\n", withError(h.Redis, h.RedisError))
	fmt.Fprintf(w, "Celery: %s\n", withError(h.Celery, h.CeleryError))
	if len(h.Workers) > 0 {
		names := make([]string, 0, len(h.Workers))
		for k := range h.Workers {
			names = append(names, k)
		}
		sort.Strings(names)
		fmt.Fprintf(w, "Workers: %s\n", strings.Join(names, ", "))
	}
}

func formatModelValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return FormatNumber(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

func withError(status, errMsg string) string {
	if errMsg == "" {
		return status
	}
	return fmt.Sprintf("%s (%s)", status, errMsg)
}

// snapshotJSON is the --json output shape.
type snapshotJSON struct {
	JobID  string                     `json:"job_id"`
	State  string                     `json:"state"`
	Status string                     `json:"status"`
	Result *moderation.AnalysisResult `json:"result,omitempty"`
	Error  string                     `json:"error,omitempty"`
}

// WriteSnapshotJSON writes s as one indented JSON document.
func WriteSnapshotJSON(w io.Writer, s poller.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snapshotJSON{
		JobID:  s.Job.String(),
		State:  s.State.String(),
		Status: s.StatusText,
		Result: s.Result,
		Error:  s.Error,
	})
}
