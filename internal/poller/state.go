package poller

import "github.com/fpang/smart-image-moderation/internal/moderation"

// State is the lifecycle position of a tracked job.
type State int

const (
	// StateIdle means no job handle is known; nothing is polled.
	StateIdle State = iota
	// StatePolling means a job is in flight and checks are scheduled.
	StatePolling
	// StateSucceeded carries the analysis result. Terminal.
	StateSucceeded
	// StateFailed means the backend reported the job as failed. Terminal.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends polling.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Snapshot is an immutable view of a tracked job.
// Result is set if and only if State is StateSucceeded; treat it as read-only.
type Snapshot struct {
	Job        moderation.JobHandle
	State      State
	Status     moderation.JobStatus
	StatusText string
	Result     *moderation.AnalysisResult
	Error      string
}

func idleSnapshot() Snapshot {
	return Snapshot{
		State:      StateIdle,
		Status:     moderation.StatusPending,
		StatusText: string(moderation.StatusPending),
	}
}

// Begin returns the snapshot for a job that has just entered polling.
// An empty handle yields an idle snapshot.
func Begin(job moderation.JobHandle) Snapshot {
	s := idleSnapshot()
	if job.IsZero() {
		return s
	}
	s.Job = job
	s.State = StatePolling
	return s
}

// Reduce applies one status response to a snapshot and returns the next one.
// It is pure: only polling snapshots change, so terminal snapshots absorb
// duplicate or late responses unchanged.
func Reduce(s Snapshot, resp moderation.StatusResponse) Snapshot {
	if s.State != StatePolling {
		return s
	}

	next := s
	next.Status = resp.Status
	next.StatusText = resp.RawStatus
	if next.StatusText == "" {
		next.StatusText = string(resp.Status)
	}

	if !resp.Status.Terminal() {
		return next
	}

	switch resp.Status {
	case moderation.StatusSuccess:
		if resp.Result == nil {
			return s
		}
		next.State = StateSucceeded
		next.Result = copyResult(resp.Result)
	case moderation.StatusFailure:
		next.State = StateFailed
		next.Error = resp.Error
	}
	return next
}

func copyResult(r *moderation.AnalysisResult) *moderation.AnalysisResult {
	c := *r
	if r.Models != nil {
		c.Models = make(map[string]any, len(r.Models))
		for k, v := range r.Models {
			c.Models[k] = v
		}
	}
	return &c
}
