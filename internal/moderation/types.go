// Package moderation is the client for the Smart Image Moderation API.
//
// The API is asynchronous: an image is uploaded with POST /upload, which
// returns a job identifier, and the analysis outcome is fetched later with
// GET /result/{job_id}. This package only speaks the HTTP contract; deciding
// when to poll lives in the poller package.
package moderation

import "strings"

// UploadRequest is a single image selected for analysis.
// It is built at selection time and dropped once the upload attempt completes.
type UploadRequest struct {
	Filename  string
	MediaType string
	Data      []byte
}

// JobHandle is the opaque job identifier issued by POST /upload.
type JobHandle string

// IsZero reports whether the handle is empty (blank counts as empty).
func (h JobHandle) IsZero() bool {
	return strings.TrimSpace(string(h)) == ""
}

func (h JobHandle) String() string {
	return string(h)
}

// JobStatus is the client-side interpretation of the backend status string.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusSuccess    JobStatus = "success"
	StatusFailure    JobStatus = "failure"
	// StatusUnknown covers states the client does not recognise (e.g. RETRY).
	// They are treated as non-terminal.
	StatusUnknown JobStatus = "unknown"
)

// ParseStatus maps the backend status string onto a JobStatus.
// The backend reports Celery task states, lower-cased for the common ones.
func ParseStatus(raw string) JobStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "received":
		return StatusPending
	case "processing", "running", "started":
		return StatusProcessing
	case "success":
		return StatusSuccess
	case "failed", "failure", "error":
		return StatusFailure
	default:
		return StatusUnknown
	}
}

// Terminal reports whether no further polling should happen after this status.
func (s JobStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// AnalysisResult is the outcome of a successful job.
type AnalysisResult struct {
	NSFW           bool    `json:"nsfw"`
	FacesDetected  int     `json:"faces_detected"`
	BlurScore      float64 `json:"blur_score"`
	QualityScore   float64 `json:"quality_score"`
	ProcessingTime float64 `json:"processing_time"`
	OCRText        string  `json:"ocr_text"`

	// Optional fields; zero when the backend omits them.
	NSFWScore float64        `json:"nsfw_score,omitempty"`
	Device    string         `json:"device,omitempty"`
	Models    map[string]any `json:"model,omitempty"`
}

// StatusResponse is one decoded answer from GET /result/{job_id}.
// Result is non-nil only when Status is StatusSuccess.
type StatusResponse struct {
	Status    JobStatus
	RawStatus string
	Result    *AnalysisResult
	Error     string
}

// HealthReport is the decoded answer from GET /health.
type HealthReport struct {
	API         string         `json:"api"`
	Redis       string         `json:"redis"`
	Celery      string         `json:"celery"`
	RedisError  string         `json:"redis_error,omitempty"`
	CeleryError string         `json:"celery_error,omitempty"`
	Workers     map[string]any `json:"workers,omitempty"`
}

// Healthy reports whether every component answered "ok".
func (h *HealthReport) Healthy() bool {
	return h.API == "ok" && h.Redis == "ok" && h.Celery == "ok"
}
