package preview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/llehouerou/ptui/internal/config"
	"github.com/llehouerou/ptui/internal/decode"
	"github.com/llehouerou/ptui/internal/logging"
	"github.com/llehouerou/ptui/internal/metrics"
	"github.com/llehouerou/ptui/internal/render"
)

// ErrClosed is the failure reason of jobs still queued when the scheduler
// is closed.
var ErrClosed = errors.New("scheduler closed")

// Priority orders queued jobs. Visible jobs are always taken first.
type Priority int

const (
	PriorityVisible Priority = iota
	PriorityPrefetch
)

// Generation tags a scheduled request. Each Schedule call returns a value
// strictly greater than all earlier ones.
type Generation uint64

// Slot names a place in the UI that shows one preview at a time. A newer
// request for a slot supersedes older ones.
type Slot string

// SlotFocus is the main preview pane.
const SlotFocus Slot = "focus"

// OutcomeKind tells what GetOrSchedule found.
type OutcomeKind int

const (
	OutcomeHit OutcomeKind = iota
	OutcomeScheduled
	OutcomeError
)

// Outcome is the answer to a preview request. Hit carries the entry,
// Scheduled the shared in-flight job, and Error the reason plus a
// placeholder entry to display.
type Outcome struct {
	Kind  OutcomeKind
	Key   Key
	Entry *Entry
	Job   *Job
	Err   error
}

// Result is a delivered preview for a scheduled request.
type Result struct {
	Generation Generation
	Slot       Slot
	Request    Request
	Outcome
}

// Decoder produces pixels covering a target box.
type Decoder interface {
	Decode(ctx context.Context, path string, boxW, boxH int) (*decode.Image, error)
}

// SnapshotSource provides the current configuration.
type SnapshotSource interface {
	Current() *config.Snapshot
}

// ChainFactory builds the renderer chain for a configuration.
type ChainFactory func(cfg config.ConverterConfig) *render.Chain

// Options configures a Scheduler.
type Options struct {
	Workers       int
	PrefetchDepth int
	Cache         *Cache
	Config        SnapshotSource
	Decoder       Decoder
	Files         FileSource
	// Chains defaults to render.NewChain with Capabilities.
	Chains       ChainFactory
	Capabilities render.Capabilities
}

// ticket is one scheduled request awaiting delivery.
type ticket struct {
	gen       Generation
	slot      Slot
	req       Request
	key       Key
	outcome   Outcome
	job       *Job
	cancelled bool
	pinned    bool
}

// Scheduler runs decode+render jobs on a fixed worker pool and delivers
// results tagged with generations. Delivery is by polling Drain; results
// for superseded requests are dropped.
//
// Lock order: Scheduler.mu before Cache.mu.
type Scheduler struct {
	cache  *Cache
	config SnapshotSource
	dec    Decoder
	files  FileSource
	chains ChainFactory
	depth  int

	gen atomic.Uint64

	mu       sync.Mutex
	cond     *sync.Cond
	visible  []*Job
	prefetch []*Job
	waiting  map[*Job][]*ticket
	slots    map[Slot]*ticket
	ready    []*ticket
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler starts the worker pool.
func NewScheduler(opts Options) (*Scheduler, error) {
	if opts.Workers < 1 {
		return nil, fmt.Errorf("start scheduler: invalid worker count %d", opts.Workers)
	}
	if opts.Cache == nil || opts.Config == nil || opts.Decoder == nil {
		return nil, errors.New("start scheduler: cache, config and decoder are required")
	}
	if opts.Files == nil {
		opts.Files = OSFiles{}
	}
	if opts.Chains == nil {
		caps := opts.Capabilities
		opts.Chains = func(cfg config.ConverterConfig) *render.Chain {
			return render.NewChain(cfg, caps)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cache:   opts.Cache,
		config:  opts.Config,
		dec:     opts.Decoder,
		files:   opts.Files,
		chains:  opts.Chains,
		depth:   max(opts.PrefetchDepth, 0),
		waiting: make(map[*Job][]*ticket),
		slots:   make(map[Slot]*ticket),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.cond = sync.NewCond(&s.mu)

	for i := range opts.Workers {
		s.wg.Add(1)
		go s.worker(i)
	}
	logging.Debug("preview: scheduler started with %d workers", opts.Workers)
	return s, nil
}

// Cache returns the scheduler's cache.
func (s *Scheduler) Cache() *Cache { return s.cache }

// GetOrSchedule returns the cached entry for req, or the job producing it,
// starting one if needed. Kind and ConfigVersion are filled from the
// current snapshot.
func (s *Scheduler) GetOrSchedule(req Request) Outcome {
	p := s.prepare(req, s.config.Current())

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrScheduleLocked(p, PriorityVisible, false)
}

// prepared is a request stamped with its snapshot and key.
type prepared struct {
	req  Request
	snap *config.Snapshot
	key  Key
	err  error
}

// prepare stamps req with the snapshot and derives its key. The file is
// stat'ed here, outside the scheduler lock.
func (s *Scheduler) prepare(req Request, snap *config.Snapshot) prepared {
	req.Kind = snap.Selected()
	req.ConfigVersion = snap.Version

	st, err := s.files.Stat(req.Path)
	if err != nil {
		return prepared{req: req, snap: snap, err: &decode.Error{Kind: decode.IoError, Path: req.Path, Err: err}}
	}
	return prepared{req: req, snap: snap, key: DeriveKey(req, st)}
}

func (s *Scheduler) getOrScheduleLocked(p prepared, prio Priority, pin bool) Outcome {
	if p.err != nil {
		return Outcome{Kind: OutcomeError, Entry: failureEntry(p.req, p.err), Err: p.err}
	}
	if s.closed {
		return Outcome{Kind: OutcomeError, Key: p.key, Entry: failureEntry(p.req, ErrClosed), Err: ErrClosed}
	}

	entry, job, started := s.cache.acquire(p.key, pin, func() *Job {
		return newJob(p.key, p.req, p.snap, prio)
	})
	if entry != nil {
		return Outcome{Kind: OutcomeHit, Key: p.key, Entry: entry}
	}
	if started {
		s.enqueueLocked(job)
	} else if prio == PriorityVisible && job.priority == PriorityPrefetch {
		s.promoteLocked(job)
	}
	return Outcome{Kind: OutcomeScheduled, Key: p.key, Job: job}
}

// Schedule requests a preview for slot and returns its generation. Older
// undelivered requests for the same slot are cancelled: their jobs still
// run to fill the cache, but their results are never delivered.
func (s *Scheduler) Schedule(req Request, slot Slot) Generation {
	p := s.prepare(req, s.config.Current())

	s.mu.Lock()
	defer s.mu.Unlock()

	gen := Generation(s.gen.Add(1))
	out := s.getOrScheduleLocked(p, PriorityVisible, true)

	t := &ticket{gen: gen, slot: slot, req: p.req, key: out.Key, outcome: out}
	switch out.Kind {
	case OutcomeScheduled:
		t.job = out.Job
		if out.Job.watchers == 0 {
			out.Job.rejoin()
		}
		out.Job.watchers++
		s.waiting[out.Job] = append(s.waiting[out.Job], t)
	case OutcomeHit:
		t.pinned = true
		s.ready = append(s.ready, t)
	default:
		s.ready = append(s.ready, t)
	}

	// The new ticket joins its job before the old one leaves, so a job
	// shared by both is not marked cancelled.
	if old := s.slots[slot]; old != nil {
		s.cancelTicketLocked(old)
	}
	s.slots[slot] = t
	return gen
}

// Prefetch warms the cache for upcoming previews at low priority. At most
// PrefetchDepth requests are taken; results are never delivered.
func (s *Scheduler) Prefetch(reqs ...Request) {
	if len(reqs) > s.depth {
		reqs = reqs[:s.depth]
	}
	if len(reqs) == 0 {
		return
	}
	snap := s.config.Current()
	ps := make([]prepared, len(reqs))
	for i, req := range reqs {
		ps[i] = s.prepare(req, snap)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range ps {
		if p.err == nil {
			s.getOrScheduleLocked(p, PriorityPrefetch, false)
		}
	}
}

// Cancel supersedes the undelivered request of slot, if any.
func (s *Scheduler) Cancel(slot Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.slots[slot]; t != nil {
		s.cancelTicketLocked(t)
		delete(s.slots, slot)
	}
}

func (s *Scheduler) cancelTicketLocked(t *ticket) {
	if t.cancelled {
		return
	}
	t.cancelled = true
	if t.job != nil {
		t.job.watchers--
		if t.job.watchers == 0 {
			t.job.cancel()
		}
	}
}

// Drain returns the results completed since the last call, in completion
// order. It never blocks on work in progress.
func (s *Scheduler) Drain() []Result {
	s.mu.Lock()
	ready := s.ready
	s.ready = nil

	var out []Result
	for _, t := range ready {
		if t.pinned {
			s.cache.Unpin(t.key)
		}
		if s.slots[t.slot] == t {
			delete(s.slots, t.slot)
		}
		if t.cancelled {
			metrics.StaleResults.Inc()
			continue
		}
		out = append(out, Result{Generation: t.gen, Slot: t.slot, Request: t.req, Outcome: t.outcome})
	}
	s.mu.Unlock()
	return out
}

// Pending reports whether any request awaits delivery.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots) > 0 || len(s.ready) > 0
}

func (s *Scheduler) enqueueLocked(job *Job) {
	if job.priority == PriorityVisible {
		s.visible = append(s.visible, job)
	} else {
		s.prefetch = append(s.prefetch, job)
	}
	s.cond.Signal()
}

// promoteLocked moves a queued prefetch job to the visible queue.
func (s *Scheduler) promoteLocked(job *Job) {
	job.priority = PriorityVisible
	for i, j := range s.prefetch {
		if j == job {
			s.prefetch = append(s.prefetch[:i], s.prefetch[i+1:]...)
			s.visible = append(s.visible, job)
			return
		}
	}
}

func (s *Scheduler) next() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.visible) == 0 && len(s.prefetch) == 0 && !s.closed {
		s.cond.Wait()
	}
	if s.closed {
		return nil
	}
	var job *Job
	if len(s.visible) > 0 {
		job, s.visible = s.visible[0], s.visible[1:]
	} else {
		job, s.prefetch = s.prefetch[0], s.prefetch[1:]
	}
	return job
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	logging.Debug("preview: worker %d started", id)
	for {
		job := s.next()
		if job == nil {
			break
		}
		s.run(job)
	}
	logging.Debug("preview: worker %d finished", id)
}

func (s *Scheduler) run(job *Job) {
	job.setRunning()
	metrics.JobsInFlight.Inc()
	start := time.Now()

	entry, err := s.produce(job)

	metrics.JobsInFlight.Dec()
	backend := "none"
	if entry != nil && entry.Backend != "" {
		backend = string(entry.Backend)
	}
	metrics.JobDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())

	s.finish(job, entry, err)
	metrics.JobsTotal.WithLabelValues(job.State().String()).Inc()
}

// finish publishes a job's result and moves its waiting tickets to the
// ready list.
func (s *Scheduler) finish(job *Job, entry *Entry, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tickets := s.waiting[job]
	delete(s.waiting, job)

	out := Outcome{Kind: OutcomeHit, Key: job.key, Entry: entry}
	if err != nil {
		out = Outcome{Kind: OutcomeError, Key: job.key, Entry: entry, Err: err}
	}

	pins := 0
	for _, t := range tickets {
		t.outcome = out
		if !t.cancelled && err == nil {
			t.pinned = true
			pins++
		}
	}
	s.cache.complete(job, entry, err, pins)
	s.ready = append(s.ready, tickets...)
}

// Close stops the workers and waits for running jobs to finish. Queued
// jobs fail with ErrClosed. Close is idempotent.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	queued := append(s.visible, s.prefetch...)
	s.visible, s.prefetch = nil, nil
	s.cond.Broadcast()
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	for _, job := range queued {
		s.finish(job, failureEntry(job.req, ErrClosed), ErrClosed)
	}
	logging.Debug("preview: scheduler closed")
}
