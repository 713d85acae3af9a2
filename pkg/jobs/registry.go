package jobs

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/vulntor/xploit/pkg/event"
)

// Event names published on the registry's bus.
const (
	EventCreated  = "job.created"
	EventStarted  = "job.started"
	EventDisposed = "job.disposed"
)

// Named is optionally implemented by owners to give their job a display name.
type Named interface {
	JobName() string
}

// Registry tracks live jobs. It is safe for concurrent use: module
// execution and relay accept loops create and dispose jobs independently.
type Registry struct {
	mu      sync.Mutex
	jobs    map[string]*Job
	nextNum int
	created int64
	ended   int64

	bus    event.EventBus
	logger zerolog.Logger
	limit  int
}

// Option configures a Registry.
type Option func(*Registry)

// WithEventBus publishes job lifecycle events on bus.
func WithEventBus(bus event.EventBus) Option {
	return func(r *Registry) { r.bus = bus }
}

// WithLogger overrides the registry logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithKillConcurrency bounds how many jobs KillAll disposes in parallel.
// If n <= 0, defaults to 8.
func WithKillConcurrency(n int) Option {
	return func(r *Registry) { r.limit = n }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		jobs:   make(map[string]*Job),
		logger: log.Logger.With().Str("component", "jobs").Logger(),
		limit:  8,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.limit <= 0 {
		r.limit = 8
	}
	return r
}

// Create wraps owner in a tracked, pending Job. It does not start it.
func (r *Registry) Create(owner Jobable) (*Job, error) {
	if owner == nil {
		return nil, ErrNilOwner
	}

	r.mu.Lock()
	r.nextNum++
	r.created++
	j := &Job{
		id:        uuid.NewString(),
		num:       r.nextNum,
		owner:     owner,
		registry:  r,
		state:     StatePending,
		createdAt: time.Now(),
		done:      make(chan struct{}),
	}
	if n, ok := owner.(Named); ok {
		j.name = n.JobName()
	}
	if j.name == "" {
		j.name = fmt.Sprintf("%T", owner)
	}
	r.jobs[j.id] = j
	r.mu.Unlock()

	r.publish(context.Background(), EventCreated, j)
	r.logger.Debug().
		Str("job_id", j.id).
		Int("job_num", j.num).
		Str("job_name", j.name).
		Msg("Job created")
	return j, nil
}

// Run creates and starts a job in one step. On start failure the job is
// already disposed and untracked.
func (r *Registry) Run(ctx context.Context, owner Jobable) (*Job, error) {
	j, err := r.Create(owner)
	if err != nil {
		return nil, err
	}
	if err := j.Start(ctx); err != nil {
		return j, err
	}
	return j, nil
}

// Get looks a job up by id or by its short number.
func (r *Registry) Get(ref string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if j, ok := r.jobs[ref]; ok {
		return j, true
	}
	if n, err := strconv.Atoi(ref); err == nil {
		for _, j := range r.jobs {
			if j.num == n {
				return j, true
			}
		}
	}
	return nil, false
}

// List returns the live jobs ordered by creation.
func (r *Registry) List() []*Job {
	r.mu.Lock()
	out := make([]*Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j)
	}
	r.mu.Unlock()

	sort.Slice(out, func(a, b int) bool { return out[a].num < out[b].num })
	return out
}

// Len returns the number of live jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Kill disposes the job referenced by id or number.
func (r *Registry) Kill(ref string) error {
	j, ok := r.Get(ref)
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, ref)
	}
	j.Dispose()
	return nil
}

// KillAll disposes every tracked job. Disposal errors are captured by
// each Job and never propagate. It returns the number of jobs disposed.
func (r *Registry) KillAll() int {
	return r.KillAllContext(context.Background())
}

// KillAllContext is KillAll bounded by ctx: when ctx ends before every
// disposal returned, the remaining disposals keep running in background.
func (r *Registry) KillAllContext(ctx context.Context) int {
	live := r.List()
	if len(live) == 0 {
		return 0
	}

	var g errgroup.Group
	g.SetLimit(r.limit)
	for _, j := range live {
		g.Go(func() error {
			j.Dispose()
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info().Int("jobs", len(live)).Msg("All jobs killed")
	case <-ctx.Done():
		r.logger.Warn().Int("jobs", len(live)).Msg("Kill-all timed out")
	}
	return len(live)
}

// Status holds registry statistics.
type Status struct {
	Live    int
	Created int64
	Ended   int64
}

// Status returns current registry statistics.
func (r *Registry) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{Live: len(r.jobs), Created: r.created, Ended: r.ended}
}

func (r *Registry) remove(j *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[j.id]; ok {
		delete(r.jobs, j.id)
		r.ended++
	}
}

func (r *Registry) publish(ctx context.Context, name string, j *Job) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(ctx, name, j.Snapshot())
}
