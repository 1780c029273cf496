package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpang/smart-image-moderation/internal/metrics"
	"github.com/fpang/smart-image-moderation/internal/moderation"
)

const testInterval = 20 * time.Millisecond

type step struct {
	resp *moderation.StatusResponse
	err  error
}

func pending() step {
	return step{resp: &moderation.StatusResponse{Status: moderation.StatusPending, RawStatus: "pending"}}
}

func succeeded(faces int) step {
	r := successResponse(faces)
	return step{resp: &r}
}

// scriptedFetcher answers checks from a fixed script; the last step repeats.
type scriptedFetcher struct {
	mu     sync.Mutex
	steps  []step
	calls  []time.Time
	onCall func(n int)
}

func (f *scriptedFetcher) Status(ctx context.Context, job moderation.JobHandle) (*moderation.StatusResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, time.Now())
	n := len(f.calls)
	idx := n - 1
	if idx >= len(f.steps) {
		idx = len(f.steps) - 1
	}
	s := f.steps[idx]
	onCall := f.onCall
	f.mu.Unlock()

	if onCall != nil {
		onCall(n)
	}
	return s.resp, s.err
}

func (f *scriptedFetcher) callTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.calls...)
}

type fetcherFunc func(ctx context.Context, job moderation.JobHandle) (*moderation.StatusResponse, error)

func (f fetcherFunc) Status(ctx context.Context, job moderation.JobHandle) (*moderation.StatusResponse, error) {
	return f(ctx, job)
}

func waitDone(t *testing.T, p *Poller) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := p.Wait(ctx)
	require.NoError(t, err, "poller did not finish in time")
	return snap
}

func TestPoller_SucceedsAndStops(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{pending(), pending(), succeeded(1)}}
	p := New(fetcher, WithInterval(testInterval))
	defer p.Stop()

	require.NoError(t, p.Start(context.Background(), "abc123"))
	assert.Equal(t, StatePolling, p.Snapshot().State)

	snap := waitDone(t, p)
	assert.Equal(t, StateSucceeded, snap.State)
	require.NotNil(t, snap.Result)
	assert.Equal(t, 1, snap.Result.FacesDetected)
	assert.Equal(t, 3, p.Checks())

	time.Sleep(5 * testInterval)
	assert.Equal(t, 3, p.Checks(), "no check may fire after success")
	assert.Len(t, fetcher.callTimes(), 3)
}

func TestPoller_FailureIsTerminal(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{
		pending(),
		{resp: &moderation.StatusResponse{Status: moderation.StatusFailure, RawStatus: "failed", Error: "Invalid image"}},
	}}
	p := New(fetcher, WithInterval(testInterval))
	defer p.Stop()

	require.NoError(t, p.Start(context.Background(), "abc123"))
	snap := waitDone(t, p)

	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, "Invalid image", snap.Error)
	assert.Nil(t, snap.Result)

	time.Sleep(5 * testInterval)
	assert.Equal(t, 2, p.Checks())
}

func TestPoller_UnknownStatusKeepsPolling(t *testing.T) {
	retry := step{resp: &moderation.StatusResponse{Status: moderation.StatusUnknown, RawStatus: "RETRY"}}
	fetcher := &scriptedFetcher{steps: []step{retry, retry, retry, succeeded(0)}}
	p := New(fetcher, WithInterval(testInterval))
	defer p.Stop()

	require.NoError(t, p.Start(context.Background(), "abc123"))
	snap := waitDone(t, p)

	assert.Equal(t, StateSucceeded, snap.State)
	assert.Equal(t, 4, p.Checks())
}

func TestPoller_TransportErrorKeepsCadence(t *testing.T) {
	transportErr := &moderation.PollTransportError{Job: "abc123", Err: errors.New("connection reset")}

	var p *Poller
	var afterError Snapshot
	fetcher := &scriptedFetcher{
		steps: []step{pending(), {err: transportErr}, pending(), succeeded(1)},
	}
	fetcher.onCall = func(n int) {
		if n == 3 {
			afterError = p.Snapshot()
		}
	}
	p = New(fetcher, WithInterval(testInterval))
	defer p.Stop()

	require.NoError(t, p.Start(context.Background(), "abc123"))
	snap := waitDone(t, p)

	assert.Equal(t, StateSucceeded, snap.State)
	assert.Equal(t, StatePolling, afterError.State, "transport error must not change state")
	assert.Equal(t, "pending", afterError.StatusText, "status keeps its last known value")

	calls := fetcher.callTimes()
	require.Len(t, calls, 4)
	gap := calls[2].Sub(calls[1])
	assert.GreaterOrEqual(t, gap, testInterval/2, "check after an error must wait for the next tick")
	assert.Less(t, gap, 20*testInterval, "check after an error must still fire on schedule")
}

func TestPoller_MalformedResponseIsNoOp(t *testing.T) {
	malformed := &moderation.MalformedResponseError{Reason: "missing status"}
	fetcher := &scriptedFetcher{steps: []step{{err: malformed}, {err: malformed}, succeeded(2)}}
	p := New(fetcher, WithInterval(testInterval))
	defer p.Stop()

	require.NoError(t, p.Start(context.Background(), "abc123"))
	snap := waitDone(t, p)

	assert.Equal(t, StateSucceeded, snap.State)
	assert.Equal(t, 2, snap.Result.FacesDetected)
	assert.Equal(t, 3, p.Checks())
}

func TestPoller_NilResponseIsNoOp(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{{}, pending(), succeeded(1)}}
	p := New(fetcher, WithInterval(testInterval))
	defer p.Stop()

	require.NoError(t, p.Start(context.Background(), "abc123"))
	snap := waitDone(t, p)

	assert.Equal(t, StateSucceeded, snap.State)
	assert.Equal(t, 3, p.Checks())
}

func TestPoller_EmitsCheckMetrics(t *testing.T) {
	var buf bytes.Buffer
	metrics.SetOutput(&buf)
	defer metrics.SetOutput(nil)

	transportErr := &moderation.PollTransportError{Job: "abc123", StatusCode: http.StatusBadGateway}
	fetcher := &scriptedFetcher{steps: []step{{err: transportErr}, succeeded(1)}}
	p := New(fetcher, WithInterval(testInterval))
	defer p.Stop()

	require.NoError(t, p.Start(context.Background(), "abc123"))
	waitDone(t, p)

	var docs []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var doc map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &doc), "metric line: %s", line)
		docs = append(docs, doc)
	}
	require.Len(t, docs, 3, "two check documents and one completion document")

	assert.Equal(t, "transport_error", docs[0]["Outcome"])
	assert.Equal(t, float64(1), docs[0]["CheckErrors"])

	var sawSuccess, sawCompletion bool
	for _, doc := range docs {
		assert.Equal(t, "abc123", doc["jobId"])
		if doc["Outcome"] == "success" {
			sawSuccess = true
			assert.NotContains(t, doc, "CheckErrors")
		}
		if checks, ok := doc["StatusChecks"]; ok {
			sawCompletion = true
			assert.Equal(t, float64(2), checks)
		}
	}
	assert.True(t, sawSuccess, "successful check must be recorded")
	assert.True(t, sawCompletion, "completion must record the check count")
}

func TestPoller_EmptyJobStaysIdle(t *testing.T) {
	var calls int32
	p := New(fetcherFunc(func(ctx context.Context, job moderation.JobHandle) (*moderation.StatusResponse, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	}), WithInterval(testInterval))

	err := p.Start(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoJob)
	assert.Equal(t, StateIdle, p.Snapshot().State)

	time.Sleep(3 * testInterval)
	assert.Zero(t, atomic.LoadInt32(&calls))
	assert.Zero(t, p.Checks())

	p.Stop()
	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after stopping an idle poller")
	}
}

func TestPoller_StartTwice(t *testing.T) {
	p := New(&scriptedFetcher{steps: []step{pending()}}, WithInterval(testInterval))
	defer p.Stop()

	require.NoError(t, p.Start(context.Background(), "abc123"))
	assert.ErrorIs(t, p.Start(context.Background(), "other"), ErrAlreadyStarted)
	assert.Equal(t, moderation.JobHandle("abc123"), p.Snapshot().Job)
}

func TestPoller_StopDiscardsInFlightCheck(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	fetcher := fetcherFunc(func(ctx context.Context, job moderation.JobHandle) (*moderation.StatusResponse, error) {
		entered <- struct{}{}
		<-release
		r := successResponse(1)
		return &r, nil
	})

	p := New(fetcher, WithInterval(testInterval))
	require.NoError(t, p.Start(context.Background(), "abc123"))

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("check never started")
	}

	p.Stop()
	close(release)
	waitDone(t, p)

	snap := p.Snapshot()
	assert.Equal(t, StatePolling, snap.State, "late result must not be applied")
	assert.Nil(t, snap.Result)
	assert.Equal(t, 1, p.Checks())

	time.Sleep(3 * testInterval)
	assert.Equal(t, 1, p.Checks(), "no check may fire after teardown")
	p.Stop()
}

func TestPoller_ContextCancelTearsDown(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{pending()}}
	p := New(fetcher, WithInterval(testInterval))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx, "abc123"))

	require.Eventually(t, func() bool { return p.Checks() >= 2 }, 5*time.Second, testInterval/2)
	cancel()
	waitDone(t, p)

	checks := p.Checks()
	time.Sleep(4 * testInterval)
	assert.Equal(t, checks, p.Checks())
	assert.Equal(t, StatePolling, p.Snapshot().State)
}

func TestPoller_UpdatesStream(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{
		{resp: &moderation.StatusResponse{Status: moderation.StatusProcessing, RawStatus: "running"}},
		succeeded(3),
	}}
	p := New(fetcher, WithInterval(testInterval))
	defer p.Stop()

	require.NoError(t, p.Start(context.Background(), "abc123"))

	var last Snapshot
	var seen int
	for s := range p.Updates() {
		last = s
		seen++
	}

	assert.GreaterOrEqual(t, seen, 1)
	assert.Equal(t, StateSucceeded, last.State)
	assert.Equal(t, p.Snapshot(), last)
}

// The scenarios below run the real HTTP client against a stub backend.

func TestScenario_SubmitThenPollToSuccess(t *testing.T) {
	var resultCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/upload":
			io.WriteString(w, `{"job_id":"abc123","status":"processing"}`)
		case "/result/abc123":
			if atomic.AddInt32(&resultCalls, 1) <= 2 {
				io.WriteString(w, `{"status":"pending"}`)
				return
			}
			io.WriteString(w, `{"status":"success","result":{"nsfw":false,"faces_detected":1,"blur_score":12.3,"quality_score":0.87,"processing_time":1.4,"ocr_text":""}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := moderation.NewClient(server.URL, time.Second)
	job, err := client.Submit(context.Background(), moderation.UploadRequest{
		Filename:  "photo.jpg",
		MediaType: "image/jpeg",
		Data:      []byte{0xFF, 0xD8, 0xFF, 0xE0},
	})
	require.NoError(t, err)
	require.Equal(t, moderation.JobHandle("abc123"), job)

	p := New(client, WithInterval(testInterval))
	defer p.Stop()
	require.NoError(t, p.Start(context.Background(), job))

	snap := waitDone(t, p)
	require.Equal(t, StateSucceeded, snap.State)
	assert.Equal(t, moderation.AnalysisResult{
		NSFW:           false,
		FacesDetected:  1,
		BlurScore:      12.3,
		QualityScore:   0.87,
		ProcessingTime: 1.4,
		OCRText:        "",
	}, *snap.Result)

	time.Sleep(5 * testInterval)
	assert.Equal(t, int32(3), atomic.LoadInt32(&resultCalls), "polling must stop after success")
}

func TestScenario_UploadFailsNoPolling(t *testing.T) {
	var resultCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/upload" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		atomic.AddInt32(&resultCalls, 1)
	}))
	defer server.Close()

	client := moderation.NewClient(server.URL, time.Second)
	job, err := client.Submit(context.Background(), moderation.UploadRequest{Filename: "photo.jpg", MediaType: "image/jpeg", Data: []byte{0xFF}})

	var uploadErr *moderation.UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, http.StatusInternalServerError, uploadErr.StatusCode)
	assert.True(t, job.IsZero())

	p := New(client, WithInterval(testInterval))
	defer p.Stop()
	assert.ErrorIs(t, p.Start(context.Background(), job), ErrNoJob)
	assert.Equal(t, StateIdle, p.Snapshot().State)

	time.Sleep(3 * testInterval)
	assert.Zero(t, atomic.LoadInt32(&resultCalls))
}

func TestScenario_TransportErrorMidSequence(t *testing.T) {
	var resultCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&resultCalls, 1)
		switch n {
		case 2:
			hj, ok := w.(http.Hijacker)
			if ok {
				conn, _, _ := hj.Hijack()
				conn.Close()
			}
			return
		case 1, 3:
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"status":"pending"}`)
		default:
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"status":"success","result":{"nsfw":true,"faces_detected":0,"blur_score":3.1,"quality_score":0.2,"processing_time":0.9,"ocr_text":"HELLO"}}`)
		}
	}))
	defer server.Close()

	p := New(moderation.NewClient(server.URL, time.Second), WithInterval(testInterval))
	defer p.Stop()
	require.NoError(t, p.Start(context.Background(), "abc123"))

	snap := waitDone(t, p)
	require.Equal(t, StateSucceeded, snap.State)
	assert.True(t, snap.Result.NSFW)
	assert.Equal(t, "HELLO", snap.Result.OCRText)
	assert.Equal(t, int32(4), atomic.LoadInt32(&resultCalls))
}
