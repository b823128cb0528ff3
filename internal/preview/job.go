package preview

import (
	"sync"

	"github.com/llehouerou/ptui/internal/config"
)

// JobState is the lifecycle state of a render job.
type JobState int

const (
	JobPending JobState = iota
	JobRunning
	JobDone
	JobCancelled
	JobFailed
)

func (s JobState) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobRunning:
		return "running"
	case JobDone:
		return "done"
	case JobCancelled:
		return "cancelled"
	case JobFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Job is one decode+render attempt for a key. Every requester of the key
// shares the same Job until it completes.
type Job struct {
	key  Key
	req  Request
	snap *config.Snapshot
	done chan struct{}

	// guarded by the scheduler's mutex
	priority Priority
	watchers int

	mu        sync.Mutex
	state     JobState
	cancelled bool
	reason    string
	entry     *Entry
	err       error
}

func newJob(key Key, req Request, snap *config.Snapshot, prio Priority) *Job {
	return &Job{
		key:      key,
		req:      req,
		snap:     snap,
		priority: prio,
		done:     make(chan struct{}),
	}
}

// Key returns the cache key the job produces.
func (j *Job) Key() Key { return j.key }

// Request returns the request that started the job.
func (j *Job) Request() Request { return j.req }

// Done is closed when the job has a result.
func (j *Job) Done() <-chan struct{} { return j.done }

// State returns the current state. A cancelled job reports JobCancelled
// even after its worker has finished.
func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancelled && j.state != JobFailed {
		return JobCancelled
	}
	return j.state
}

// Reason describes why the job failed.
func (j *Job) Reason() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.reason
}

// Result returns the produced entry and error. Before Done is closed it
// returns nil, nil. A failed job returns a placeholder entry with its error.
func (j *Job) Result() (*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.entry, j.err
}

func (j *Job) setRunning() {
	j.mu.Lock()
	j.state = JobRunning
	j.mu.Unlock()
}

// cancel marks the job as no longer wanted. The worker still runs it to
// completion so the cache is populated.
func (j *Job) cancel() {
	j.mu.Lock()
	if j.state == JobPending || j.state == JobRunning {
		j.cancelled = true
	}
	j.mu.Unlock()
}

// rejoin clears a cancellation when a new requester picks the job up
// again before it completes.
func (j *Job) rejoin() {
	j.mu.Lock()
	if j.state == JobPending || j.state == JobRunning {
		j.cancelled = false
	}
	j.mu.Unlock()
}

func (j *Job) finish(entry *Entry, err error) {
	j.mu.Lock()
	j.entry = entry
	j.err = err
	if err != nil {
		j.state = JobFailed
		j.reason = err.Error()
	} else {
		j.state = JobDone
	}
	j.mu.Unlock()
	close(j.done)
}
