// Package uploadform models the upload page as an explicit state value.
//
// Every user or network event is applied with Reduce, which never mutates its
// input. The selected image travels inside the form only until the upload
// attempt finishes; after that the form keeps the file name for display but
// drops the bytes, so a manual retry needs a fresh selection.
package uploadform

import "github.com/fpang/smart-image-moderation/internal/moderation"

// Phase is where the page is in the select → upload flow.
type Phase int

const (
	PhaseEmpty Phase = iota
	PhaseSelected
	PhaseUploading
	PhaseSubmitted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseEmpty:
		return "empty"
	case PhaseSelected:
		return "selected"
	case PhaseUploading:
		return "uploading"
	case PhaseSubmitted:
		return "submitted"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Form is the state of one upload page.
type Form struct {
	Phase    Phase
	Request  *moderation.UploadRequest
	Filename string
	Preview  string
	Job      moderation.JobHandle
	Err      string
}

// Event is something that happened on the page.
type Event interface {
	isEvent()
}

// FileSelected records a newly chosen image and clears any previous error.
type FileSelected struct {
	Request moderation.UploadRequest
	Preview string
}

// UploadStarted marks the upload as in flight.
type UploadStarted struct{}

// UploadSucceeded carries the job handle issued for the upload.
type UploadSucceeded struct {
	Job moderation.JobHandle
}

// UploadFailed carries the message shown to the user.
type UploadFailed struct {
	Message string
}

func (FileSelected) isEvent()    {}
func (UploadStarted) isEvent()   {}
func (UploadSucceeded) isEvent() {}
func (UploadFailed) isEvent()    {}

// Reduce applies ev to f and returns the next form. Events that make no
// sense in the current phase leave the form unchanged.
func Reduce(f Form, ev Event) Form {
	switch ev := ev.(type) {
	case FileSelected:
		if f.Phase == PhaseUploading || len(ev.Request.Data) == 0 {
			return f
		}
		req := ev.Request
		return Form{
			Phase:    PhaseSelected,
			Request:  &req,
			Filename: req.Filename,
			Preview:  ev.Preview,
		}

	case UploadStarted:
		if !f.CanUpload() {
			return f
		}
		next := f
		next.Phase = PhaseUploading
		next.Err = ""
		return next

	case UploadSucceeded:
		if f.Phase != PhaseUploading || ev.Job.IsZero() {
			return f
		}
		next := f
		next.Phase = PhaseSubmitted
		next.Request = nil
		next.Job = ev.Job
		return next

	case UploadFailed:
		if f.Phase != PhaseUploading {
			return f
		}
		next := f
		next.Phase = PhaseFailed
		next.Request = nil
		next.Err = ev.Message
		return next
	}
	return f
}

// CanUpload reports whether the upload button would be enabled.
func (f Form) CanUpload() bool {
	return f.Phase == PhaseSelected && f.Request != nil
}

// Loading reports whether an upload is in flight.
func (f Form) Loading() bool {
	return f.Phase == PhaseUploading
}
