package moderation

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/smart-image-moderation/internal/metrics"
)

const (
	// DefaultTimeout bounds a single upload or status request.
	DefaultTimeout = 30 * time.Second

	// uploadField is the multipart field the backend reads the image from.
	uploadField = "file"

	uploadPath = "/upload"
	resultPath = "/result/{jobID}"
	healthPath = "/health"

	requestIDHeader = "X-Request-ID"
	userAgent       = "smart-image-moderation-cli/1.0"
)

// Client talks to the moderation API. It is safe for concurrent use.
type Client struct {
	http    *resty.Client
	baseURL string
}

// NewClient creates a client for the API rooted at baseURL.
// A non-positive timeout selects DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetLogger(restyLogger{}).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent)

	rc.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if r.Header.Get(requestIDHeader) == "" {
			r.SetHeader(requestIDHeader, uuid.NewString())
		}
		return nil
	})
	rc.OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
		log.Debug().
			Str("requestId", r.Request.Header.Get(requestIDHeader)).
			Str("method", r.Request.Method).
			Str("url", r.Request.URL).
			Int("statusCode", r.StatusCode()).
			Dur("latency", r.Time()).
			Msg("Moderation API response")
		return nil
	})
	rc.OnError(func(r *resty.Request, err error) {
		log.Debug().
			Err(err).
			Str("requestId", r.Header.Get(requestIDHeader)).
			Str("method", r.Method).
			Str("url", r.URL).
			Msg("Moderation API request failed")
	})

	return &Client{http: rc, baseURL: baseURL}
}

// BaseURL returns the API root the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Submit uploads one image and returns the job handle issued for it.
// Exactly one request is made. On any failure the returned error is an
// *UploadError and the handle is empty.
func (c *Client) Submit(ctx context.Context, req UploadRequest) (JobHandle, error) {
	start := time.Now()
	job, err := c.submit(ctx, req)

	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.New(metrics.Namespace).
		Dimension("Result", result).
		Property("filename", req.Filename).
		Metric("UploadLatencyMs", float64(time.Since(start).Milliseconds()), metrics.UnitMilliseconds).
		Metric("UploadBytes", float64(len(req.Data)), metrics.UnitBytes).
		Flush()

	return job, err
}

func (c *Client) submit(ctx context.Context, req UploadRequest) (JobHandle, error) {
	log.Debug().
		Str("filename", req.Filename).
		Str("mediaType", req.MediaType).
		Int("sizeBytes", len(req.Data)).
		Msg("Uploading image")

	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartField(uploadField, req.Filename, req.MediaType, bytes.NewReader(req.Data)).
		Post(uploadPath)
	if err != nil {
		return "", &UploadError{Err: fmt.Errorf("request failed: %w", err)}
	}

	if !resp.IsSuccess() {
		uploadErr := &UploadError{StatusCode: resp.StatusCode(), Detail: errorDetail(resp.Body())}
		log.Warn().
			Int("statusCode", uploadErr.StatusCode).
			Str("detail", uploadErr.Detail).
			Msg("Upload rejected by backend")
		return "", uploadErr
	}

	job, err := decodeUploadResponse(resp.Body())
	if err != nil {
		return "", &UploadError{StatusCode: resp.StatusCode(), Err: err}
	}

	log.Info().Str("jobId", job.String()).Str("filename", req.Filename).Msg("Image submitted")
	return job, nil
}

// Status fetches the current status of a job. Errors are either
// *PollTransportError or *MalformedResponseError; callers that poll are
// expected to treat both as a skipped tick.
func (c *Client) Status(ctx context.Context, job JobHandle) (*StatusResponse, error) {
	if job.IsZero() {
		return nil, ErrEmptyJob
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("jobID", job.String()).
		Get(resultPath)
	if err != nil {
		return nil, &PollTransportError{Job: job, Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &PollTransportError{Job: job, StatusCode: resp.StatusCode()}
	}

	return decodeStatusResponse(resp.Body())
}

// Health queries GET /health. A 2xx answer is decoded even when a component
// reports an error; callers inspect HealthReport.Healthy.
func (c *Client) Health(ctx context.Context) (*HealthReport, error) {
	report := &HealthReport{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(report).
		Get(healthPath)
	if err != nil {
		return nil, fmt.Errorf("health request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("health request: unexpected status %d", resp.StatusCode())
	}
	return report, nil
}

// restyLogger routes resty's internal messages through zerolog.
type restyLogger struct{}

func (restyLogger) Errorf(format string, v ...interface{}) {
	log.Error().Msgf(format, v...)
}

func (restyLogger) Warnf(format string, v ...interface{}) {
	log.Warn().Msgf(format, v...)
}

func (restyLogger) Debugf(format string, v ...interface{}) {
	log.Debug().Msgf(format, v...)
}
