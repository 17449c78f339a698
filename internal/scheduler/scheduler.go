// Package scheduler runs unique, retryable background work keyed by name.
//
// Enqueueing work under a key that already has outstanding work replaces it: the
// old job stops firing and its terminal report is discarded. Retries back off
// linearly (attempt * Backoff) up to MaxAttempts.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Result is returned by a single execution of Work.
type Result int

const (
	// Success ends the job successfully.
	Success Result = iota
	// Retry schedules another attempt if the budget allows.
	Retry
	// Failure ends the job without further attempts.
	Failure
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Retry:
		return "retry"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// Status is the terminal status of a job.
type Status string

const (
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// Run identifies a single execution of a job.
type Run struct {
	Key        string
	Generation uint64
	Attempt    int // 1-based
}

// Work is executed once per attempt.
type Work func(ctx context.Context, run Run) Result

// Policy controls retries of a job.
type Policy struct {
	MaxAttempts  int
	Backoff      time.Duration
	InitialDelay time.Duration
}

// Completion is the terminal report of the current generation of a job.
type Completion struct {
	Key        string
	Generation uint64
	Status     Status
	Attempts   int
}

type job struct {
	generation uint64
	cancel     context.CancelFunc
}

// Scheduler runs unique work.
type Scheduler struct {
	mu     sync.Mutex
	jobs   map[string]*job
	gens   map[string]uint64
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger zerolog.Logger
}

// New creates a scheduler. All jobs stop when Close is called.
func New(logger zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:   make(map[string]*job),
		gens:   make(map[string]uint64),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Enqueue starts work under key, replacing any outstanding job for key, and returns the new generation.
// done is called once with the terminal completion unless the job is replaced or cancelled first.
func (s *Scheduler) Enqueue(key string, policy Policy, work Work, done func(Completion)) uint64 {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	s.mu.Lock()
	if old, ok := s.jobs[key]; ok {
		old.cancel()
		s.logger.Debug().
			Str("key", key).
			Uint64("generation", old.generation).
			Msg("replacing outstanding work")
	}
	s.gens[key]++
	gen := s.gens[key]
	ctx, cancel := context.WithCancel(s.ctx)
	s.jobs[key] = &job{generation: gen, cancel: cancel}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer cancel()
		s.run(ctx, key, gen, policy, work, done)
	}()

	return gen
}

func (s *Scheduler) run(ctx context.Context, key string, gen uint64, policy Policy, work Work, done func(Completion)) {
	if !sleep(ctx, policy.InitialDelay) {
		return
	}

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return
		}

		result := work(ctx, Run{Key: key, Generation: gen, Attempt: attempt})

		s.logger.Debug().
			Str("key", key).
			Uint64("generation", gen).
			Int("attempt", attempt).
			Str("result", result.String()).
			Msg("work attempt finished")

		switch {
		case result == Success:
			s.finish(key, gen, Completion{Key: key, Generation: gen, Status: StatusSucceeded, Attempts: attempt}, done)
			return
		case result == Failure || attempt >= policy.MaxAttempts:
			s.finish(key, gen, Completion{Key: key, Generation: gen, Status: StatusFailed, Attempts: attempt}, done)
			return
		}

		if !sleep(ctx, time.Duration(attempt)*policy.Backoff) {
			return
		}
	}
}

// finish reports c if gen is still the current generation of key.
func (s *Scheduler) finish(key string, gen uint64, c Completion, done func(Completion)) {
	s.mu.Lock()
	j, ok := s.jobs[key]
	if !ok || j.generation != gen {
		s.mu.Unlock()
		s.logger.Debug().Str("key", key).Uint64("generation", gen).Msg("discarding stale completion")
		return
	}
	delete(s.jobs, key)
	s.mu.Unlock()

	if done != nil {
		done(c)
	}
}

// Cancel stops the outstanding job for key. It reports whether a job was outstanding.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[key]
	if !ok {
		return false
	}
	j.cancel()
	delete(s.jobs, key)
	return true
}

// Pending reports whether key has outstanding work and its generation.
func (s *Scheduler) Pending(key string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[key]
	if !ok {
		return 0, false
	}
	return j.generation, true
}

// Current reports whether gen is the outstanding generation for key.
func (s *Scheduler) Current(key string, gen uint64) bool {
	g, ok := s.Pending(key)
	return ok && g == gen
}

// Wait blocks until every started job has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Close cancels all jobs and waits for them to return.
func (s *Scheduler) Close() {
	s.cancel()
	s.mu.Lock()
	for key := range s.jobs {
		delete(s.jobs, key)
	}
	s.mu.Unlock()
	s.Wait()
}

// sleep waits for d or until ctx is done. It reports whether the full duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
