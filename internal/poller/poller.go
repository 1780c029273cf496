// Package poller tracks one moderation job from submission to a terminal
// status by querying its status endpoint on a fixed cadence.
//
// A Poller is bound to a single job handle. It is started once, checks
// serially (one outstanding query at a time), and stops on its own when the
// job succeeds or fails. Stop tears it down from the outside; after Stop no
// further check fires and a check already in flight has its answer dropped.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/smart-image-moderation/internal/metrics"
	"github.com/fpang/smart-image-moderation/internal/moderation"
)

// DefaultInterval is the check period.
const DefaultInterval = 2 * time.Second

var (
	// ErrNoJob is returned by Start when the job handle is empty.
	ErrNoJob = errors.New("poller: no job handle")
	// ErrAlreadyStarted is returned by Start on a poller that was started or stopped before.
	ErrAlreadyStarted = errors.New("poller: already started")
)

// StatusFetcher performs one status query. *moderation.Client implements it.
type StatusFetcher interface {
	Status(ctx context.Context, job moderation.JobHandle) (*moderation.StatusResponse, error)
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval overrides the check period. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// Poller drives the Idle → Polling → Succeeded | Failed state machine.
type Poller struct {
	fetcher  StatusFetcher
	interval time.Duration

	mu      sync.Mutex
	snap    Snapshot
	checks  int
	started bool
	stopped bool
	closed  bool
	cancel  context.CancelFunc

	updates chan Snapshot
	done    chan struct{}
}

// New creates an idle poller.
func New(fetcher StatusFetcher, opts ...Option) *Poller {
	p := &Poller{
		fetcher:  fetcher,
		interval: DefaultInterval,
		snap:     idleSnapshot(),
		updates:  make(chan Snapshot, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start enters polling for job and schedules the first check one interval
// from now. An empty job leaves the poller idle and returns ErrNoJob.
// Cancelling ctx has the same effect as Stop.
func (p *Poller) Start(ctx context.Context, job moderation.JobHandle) error {
	if job.IsZero() {
		log.Debug().Msg("No job handle, staying idle")
		return ErrNoJob
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.stopped {
		return ErrAlreadyStarted
	}
	p.started = true

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.snap = Begin(job)
	p.publishLocked(p.snap)

	log.Info().Str("jobId", job.String()).Dur("interval", p.interval).Msg("Polling job status")
	go p.run(runCtx, job)
	return nil
}

// Stop tears the poller down. It is safe to call more than once and from any
// goroutine. It does not wait for an in-flight check; use Done for that.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	p.stopped = true
	if p.cancel != nil {
		p.cancel()
	}
	if !p.started {
		p.closeLocked()
	}
}

// Snapshot returns the current view of the job.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// Checks returns how many status queries have been issued.
func (p *Poller) Checks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checks
}

// Updates delivers snapshots as they change. Only the latest undelivered
// snapshot is kept. The channel is closed once polling has ended.
func (p *Poller) Updates() <-chan Snapshot {
	return p.updates
}

// Done is closed once polling has ended, by a terminal status or teardown.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until polling ends or ctx is done and returns the latest snapshot.
func (p *Poller) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-p.done:
		return p.Snapshot(), nil
	case <-ctx.Done():
		return p.Snapshot(), ctx.Err()
	}
}

func (p *Poller) run(ctx context.Context, job moderation.JobHandle) {
	defer p.finish()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("jobId", job.String()).Msg("Polling cancelled")
			return
		case <-ticker.C:
		}

		if p.check(ctx, job) {
			return
		}
	}
}

// check issues one status query and applies its answer. It reports whether
// polling should end.
func (p *Poller) check(ctx context.Context, job moderation.JobHandle) bool {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return true
	}
	p.checks++
	checkNum := p.checks
	p.mu.Unlock()

	start := time.Now()
	resp, err := p.fetcher.Status(ctx, job)
	latency := time.Since(start)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped || ctx.Err() != nil {
		log.Debug().Str("jobId", job.String()).Int("check", checkNum).Msg("Discarding check result after teardown")
		return true
	}

	outcome := "ok"
	checkFailed := false
	defer func() {
		rec := metrics.New(metrics.Namespace).
			Dimension("Outcome", outcome).
			Property("jobId", job.String()).
			Metric("CheckLatencyMs", float64(latency.Milliseconds()), metrics.UnitMilliseconds)
		if checkFailed {
			rec.Count("CheckErrors")
		}
		rec.Flush()
	}()

	switch {
	case err != nil && moderation.IsMalformed(err):
		outcome, checkFailed = "malformed", true
		log.Warn().Err(err).Str("jobId", job.String()).Int("check", checkNum).Msg("Malformed status response, skipping tick")
		return false
	case err != nil:
		outcome, checkFailed = "error", true
		if moderation.IsTransport(err) {
			outcome = "transport_error"
		}
		log.Warn().Err(err).Str("jobId", job.String()).Int("check", checkNum).Msg("Status poll error, retrying on next tick")
		return false
	case resp == nil:
		outcome, checkFailed = "malformed", true
		log.Warn().Str("jobId", job.String()).Int("check", checkNum).Msg("Empty status response, skipping tick")
		return false
	}

	outcome = string(resp.Status)
	next := Reduce(p.snap, *resp)
	if next == p.snap {
		return false
	}
	p.snap = next
	p.publishLocked(next)

	switch next.State {
	case StateSucceeded:
		log.Info().Str("jobId", job.String()).Int("checks", checkNum).Msg("Job completed")
	case StateFailed:
		log.Warn().Str("jobId", job.String()).Int("checks", checkNum).Str("error", next.Error).Msg("Job failed")
	default:
		log.Debug().Str("jobId", job.String()).Str("status", next.StatusText).Dur("nextPoll", p.interval).Msg("Job still in progress")
		return false
	}

	metrics.New(metrics.Namespace).
		Dimension("State", next.State.String()).
		Property("jobId", job.String()).
		Metric("StatusChecks", float64(checkNum), metrics.UnitCount).
		Flush()
	return true
}

func (p *Poller) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	p.closeLocked()
}

// publishLocked replaces any undelivered snapshot with s. Callers hold p.mu,
// so the buffered slot is always free after the drain.
func (p *Poller) publishLocked(s Snapshot) {
	if p.closed {
		return
	}
	select {
	case <-p.updates:
	default:
	}
	p.updates <- s
}

func (p *Poller) closeLocked() {
	if p.closed {
		return
	}
	p.closed = true
	close(p.updates)
	close(p.done)
}
