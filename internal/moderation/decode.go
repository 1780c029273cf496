package moderation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// maxBodySnippet bounds how much of a bad body ends up in errors and logs.
const maxBodySnippet = 200

type uploadResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// statusEnvelope mirrors GET /result/{job_id}. Pointers distinguish
// "missing" from "zero" so that a truncated payload is rejected rather than
// read as a clean image with zero faces.
type statusEnvelope struct {
	Status *string         `json:"status"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type resultPayload struct {
	NSFW           *bool             `json:"nsfw"`
	FacesDetected  *int              `json:"faces_detected"`
	BlurScore      *float64          `json:"blur_score"`
	QualityScore   *float64          `json:"quality_score"`
	ProcessingTime *float64          `json:"processing_time"`
	OCRText        *string           `json:"ocr_text"`
	NSFWScore      float64           `json:"nsfw_score"`
	Device         string            `json:"device"`
	Models         json.RawMessage   `json:"model"`
}

func decodeUploadResponse(body []byte) (JobHandle, error) {
	var resp uploadResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &MalformedResponseError{Reason: "decode upload response", Body: truncate(string(body), maxBodySnippet), Err: err}
	}
	job := JobHandle(strings.TrimSpace(resp.JobID))
	if job.IsZero() {
		return "", &MalformedResponseError{Reason: "missing job_id", Body: truncate(string(body), maxBodySnippet)}
	}
	return job, nil
}

// decodeStatusResponse parses a status body. Anything that does not carry a
// status string, or a success without a complete result, is malformed.
func decodeStatusResponse(body []byte) (*StatusResponse, error) {
	var env statusEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &MalformedResponseError{Reason: "decode status response", Body: truncate(string(body), maxBodySnippet), Err: err}
	}
	if env.Status == nil || strings.TrimSpace(*env.Status) == "" {
		return nil, &MalformedResponseError{Reason: "missing status", Body: truncate(string(body), maxBodySnippet)}
	}

	resp := &StatusResponse{
		Status:    ParseStatus(*env.Status),
		RawStatus: strings.TrimSpace(*env.Status),
		Error:     env.Error,
	}
	if resp.Status != StatusSuccess {
		return resp, nil
	}

	result, err := decodeResult(env.Result)
	if err != nil {
		return nil, &MalformedResponseError{Reason: "invalid result", Body: truncate(string(body), maxBodySnippet), Err: err}
	}
	resp.Result = result
	return resp, nil
}

func decodeResult(raw json.RawMessage) (*AnalysisResult, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, fmt.Errorf("result missing")
	}

	var p resultPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}

	switch {
	case p.NSFW == nil:
		return nil, fmt.Errorf("nsfw missing")
	case p.FacesDetected == nil:
		return nil, fmt.Errorf("faces_detected missing")
	case *p.FacesDetected < 0:
		return nil, fmt.Errorf("faces_detected is negative: %d", *p.FacesDetected)
	case p.BlurScore == nil:
		return nil, fmt.Errorf("blur_score missing")
	case p.QualityScore == nil:
		return nil, fmt.Errorf("quality_score missing")
	case p.ProcessingTime == nil:
		return nil, fmt.Errorf("processing_time missing")
	}

	result := &AnalysisResult{
		NSFW:           *p.NSFW,
		FacesDetected:  *p.FacesDetected,
		BlurScore:      *p.BlurScore,
		QualityScore:   *p.QualityScore,
		ProcessingTime: *p.ProcessingTime,
		NSFWScore:      p.NSFWScore,
		Device:         p.Device,
		Models:         decodeModels(p.Models),
	}
	if p.OCRText != nil {
		result.OCRText = *p.OCRText
	}
	return result, nil
}

// decodeModels reads the optional model info. The backend types it as a free
// form object, so anything that is not a JSON object is dropped rather than
// failing the whole result.
func decodeModels(raw json.RawMessage) map[string]any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var models map[string]any
	if err := json.Unmarshal(raw, &models); err != nil {
		log.Debug().Err(err).Str("model", truncate(string(raw), maxBodySnippet)).Msg("Ignoring unreadable model info")
		return nil
	}
	return models
}

// errorDetail extracts FastAPI's "detail" from an error body. Validation
// errors carry a list there; those are returned verbatim.
func errorDetail(body []byte) string {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Detail) == 0 {
		return truncate(strings.TrimSpace(string(body)), maxBodySnippet)
	}
	var detail string
	if err := json.Unmarshal(resp.Detail, &detail); err == nil {
		return detail
	}
	return truncate(string(resp.Detail), maxBodySnippet)
}

// truncate returns at most n bytes of s, cut on a rune boundary, appending
// "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
