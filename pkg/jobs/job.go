// Package jobs runs long-lived entities (modules, relays, handlers) as
// cancellable background jobs tracked by a Registry.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Jobable is implemented by anything that can run as a background job.
type Jobable interface {
	// Start launches the entity. It must not block for the lifetime of the
	// job: long-running work belongs in goroutines owned by the entity.
	Start(ctx context.Context) error

	// Dispose releases every resource held by the entity. It must be
	// idempotent.
	Dispose() error

	// IsDisposed reports whether Dispose has run.
	IsDisposed() bool
}

// State is the lifecycle state of a Job.
type State int

const (
	StatePending State = iota
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

var (
	// ErrNilOwner is returned when a job is created without an owner.
	ErrNilOwner = errors.New("job owner is nil")

	// ErrNotPending is returned when Start is called twice or after dispose.
	ErrNotPending = errors.New("job is not pending")

	// ErrJobNotFound is returned when a job id is not tracked.
	ErrJobNotFound = errors.New("job not found")
)

// Job wraps one Jobable and owns its lifecycle. Dispose transitions the
// job exactly once and calls the owner's Dispose exactly once.
type Job struct {
	id       string
	num      int
	name     string
	owner    Jobable
	registry *Registry

	mu        sync.Mutex
	state     State
	createdAt time.Time
	startedAt time.Time
	endedAt   time.Time
	err       error

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// ID returns the job's unique identifier.
func (j *Job) ID() string { return j.id }

// Num returns the short sequential number assigned by the registry.
func (j *Job) Num() int { return j.num }

// Name returns the display name of the job.
func (j *Job) Name() string { return j.name }

// Owner returns the wrapped entity.
func (j *Job) Owner() Jobable { return j.owner }

// State returns the current state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// StartedAt returns when Start succeeded, or the zero time.
func (j *Job) StartedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.startedAt
}

// CreatedAt returns when the registry created the job.
func (j *Job) CreatedAt() time.Time { return j.createdAt }

// Err returns the start failure, if any.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Done is closed once the job reached a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

// Start invokes the owner's Start and moves the job to Running. A start
// failure moves the job to Failed, disposes the owner and untracks the job.
func (j *Job) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.state != StatePending {
		j.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrNotPending, j.id, j.state)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.mu.Unlock()

	if err := j.owner.Start(runCtx); err != nil {
		j.mu.Lock()
		j.err = err
		j.mu.Unlock()
		j.finish(StateFailed)
		return err
	}

	j.mu.Lock()
	running := j.state == StatePending
	if running {
		j.state = StateRunning
		j.startedAt = time.Now()
	}
	j.mu.Unlock()

	// A concurrent Dispose already ended the job.
	if !running {
		return nil
	}

	j.registry.publish(ctx, EventStarted, j)
	j.registry.logger.Info().
		Str("job_id", j.id).
		Int("job_num", j.num).
		Str("job_name", j.name).
		Msg("Job started")
	return nil
}

// Dispose cancels the job. Only the first call has an effect; owner
// disposal errors are logged and discarded.
func (j *Job) Dispose() {
	state := StateCancelled
	if j.owner.IsDisposed() {
		state = StateCompleted
	}
	j.finish(state)
}

// Complete marks a job whose owner finished on its own.
func (j *Job) Complete() {
	j.finish(StateCompleted)
}

func (j *Job) finish(state State) {
	j.once.Do(func() {
		j.mu.Lock()
		j.state = state
		j.endedAt = time.Now()
		cancel := j.cancel
		j.mu.Unlock()

		// The owner is disposed before its context is cancelled, so no
		// context watcher of the owner can race this call.
		if err := safeDispose(j.owner); err != nil {
			j.registry.logger.Warn().
				Err(err).
				Str("job_id", j.id).
				Msg("Job disposal failed")
		}
		if cancel != nil {
			cancel()
		}

		j.registry.remove(j)
		close(j.done)

		j.registry.publish(context.Background(), EventDisposed, j)
		j.registry.logger.Info().
			Str("job_id", j.id).
			Int("job_num", j.num).
			Str("state", state.String()).
			Msg("Job disposed")
	})
}

// safeDispose calls owner.Dispose, converting a panic into an error.
func safeDispose(owner Jobable) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispose panicked: %v", r)
		}
	}()
	return owner.Dispose()
}

// Info is a read-only snapshot of a job.
type Info struct {
	ID        string
	Num       int
	Name      string
	State     State
	CreatedAt time.Time
	StartedAt time.Time
}

// Snapshot returns the current Info of the job.
func (j *Job) Snapshot() Info {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Info{
		ID:        j.id,
		Num:       j.num,
		Name:      j.name,
		State:     j.state,
		CreatedAt: j.createdAt,
		StartedAt: j.startedAt,
	}
}
