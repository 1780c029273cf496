package uploadform

import (
	"testing"

	"github.com/fpang/smart-image-moderation/internal/moderation"
)

func selected() Form {
	return Reduce(Form{}, FileSelected{
		Request: moderation.UploadRequest{Filename: "cat.jpg", MediaType: "image/jpeg", Data: []byte{0xFF, 0xD8}},
		Preview: "640x480 JPEG",
	})
}

func TestReduce_HappyPath(t *testing.T) {
	f := selected()
	if f.Phase != PhaseSelected || !f.CanUpload() {
		t.Fatalf("expected selected form ready to upload, got %+v", f)
	}
	if f.Filename != "cat.jpg" || f.Preview != "640x480 JPEG" {
		t.Errorf("unexpected selection: %+v", f)
	}

	f = Reduce(f, UploadStarted{})
	if !f.Loading() || f.CanUpload() {
		t.Fatalf("expected uploading form, got %+v", f)
	}

	f = Reduce(f, UploadSucceeded{Job: "abc123"})
	if f.Phase != PhaseSubmitted || f.Job != "abc123" {
		t.Fatalf("expected submitted form with job, got %+v", f)
	}
	if f.Request != nil {
		t.Error("payload must be dropped after the attempt completes")
	}
}

func TestReduce_FailureThenReselect(t *testing.T) {
	f := Reduce(Reduce(selected(), UploadStarted{}), UploadFailed{Message: "Upload failed. Check backend logs."})
	if f.Phase != PhaseFailed || f.Err == "" {
		t.Fatalf("expected failed form with message, got %+v", f)
	}
	if f.Request != nil || f.CanUpload() {
		t.Error("failed form must not keep the payload")
	}
	if f.Filename != "cat.jpg" {
		t.Errorf("expected file name to stay visible, got %q", f.Filename)
	}

	f = Reduce(f, FileSelected{Request: moderation.UploadRequest{Filename: "dog.png", MediaType: "image/png", Data: []byte{1}}})
	if f.Phase != PhaseSelected || f.Err != "" || f.Filename != "dog.png" {
		t.Errorf("expected a clean selection after reselect, got %+v", f)
	}
}

func TestReduce_IgnoresOutOfOrderEvents(t *testing.T) {
	tests := []struct {
		name string
		form Form
		ev   Event
	}{
		{name: "upload without file", form: Form{}, ev: UploadStarted{}},
		{name: "success while idle", form: Form{}, ev: UploadSucceeded{Job: "abc"}},
		{name: "failure while selected", form: selected(), ev: UploadFailed{Message: "x"}},
		{name: "second start while uploading", form: Reduce(selected(), UploadStarted{}), ev: UploadStarted{}},
		{name: "empty success", form: Reduce(selected(), UploadStarted{}), ev: UploadSucceeded{}},
		{name: "select while uploading", form: Reduce(selected(), UploadStarted{}), ev: FileSelected{Request: moderation.UploadRequest{Data: []byte{1}}}},
		{name: "select empty payload", form: Form{}, ev: FileSelected{Request: moderation.UploadRequest{Filename: "empty.jpg"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reduce(tt.form, tt.ev)
			if got.Phase != tt.form.Phase || got.Job != tt.form.Job || got.Err != tt.form.Err {
				t.Errorf("expected unchanged form %+v, got %+v", tt.form, got)
			}
		})
	}
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	before := selected()
	_ = Reduce(before, UploadStarted{})
	if before.Phase != PhaseSelected {
		t.Errorf("input form was mutated: %+v", before)
	}
}
