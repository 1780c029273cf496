package moderation

import (
	"errors"
	"fmt"
)

// ErrEmptyJob is returned when a status query is attempted without a job handle.
var ErrEmptyJob = errors.New("job handle is empty")

// uploadFailedMessage is what the user sees for any failed submission.
const uploadFailedMessage = "Upload failed. Check backend logs."

// UploadError reports a submission that did not yield a job handle.
// StatusCode is zero when the request never got a response.
type UploadError struct {
	StatusCode int
	Detail     string
	Err        error
}

func (e *UploadError) Error() string {
	msg := "upload failed"
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// UserMessage returns the generic, actionable message shown to the user.
func (e *UploadError) UserMessage() string {
	return uploadFailedMessage
}

// PollTransportError reports a status query that did not produce a usable
// HTTP response. Non-2xx answers are reported here as well.
type PollTransportError struct {
	Job        JobHandle
	StatusCode int
	Err        error
}

func (e *PollTransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("status query for job %s: unexpected status %d", e.Job, e.StatusCode)
	}
	return fmt.Sprintf("status query for job %s: %v", e.Job, e.Err)
}

func (e *PollTransportError) Unwrap() error {
	return e.Err
}

// MalformedResponseError reports a response body that does not match the
// expected shape.
type MalformedResponseError struct {
	Reason string
	Body   string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	msg := "malformed response: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" {
		msg += " (body: " + e.Body + ")"
	}
	return msg
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a PollTransportError.
func IsTransport(err error) bool {
	var transportErr *PollTransportError
	return errors.As(err, &transportErr)
}

// IsMalformed reports whether err is a MalformedResponseError.
func IsMalformed(err error) bool {
	var malformedErr *MalformedResponseError
	return errors.As(err, &malformedErr)
}
