package filedex

import (
	"context"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// ProcessFunc does the real work of indexing one file: process it and
// install (or remove) its entry in the store. Errors are logged by the
// scheduler, not surfaced to the caller of schedule — the next rerun, or
// the next watch event, is the retry mechanism.
type ProcessFunc func(ctx context.Context, p FilePath) error

type reschedule struct {
	processor FileProcessor
	apply     ProcessFunc
}

// Scheduler implements the dedup-and-coalesce indexing contract of spec
// §4.2: at most one worker runs per file at a time; a schedule() call that
// arrives while a file is already in flight is recorded and replayed once
// the in-flight run finishes, so the file is always left reflecting the
// most recent request rather than some earlier one it raced with.
//
// Grounded on imicola-notebit's IndexingPipeline (bounded worker pool,
// sync.Map in-progress dedupe) generalized from "skip duplicate" to
// "latest-wins, rerun after completion" — notebit only implements the
// former.
type Scheduler struct {
	mu           sync.Mutex
	inFlight     map[FilePath]struct{}
	pendingRerun map[FilePath]reschedule
	batchFuture  *Future[struct{}]
	closed       bool

	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger
}

// NewScheduler creates a Scheduler with the given worker concurrency. A
// non-positive workers defaults to max(2, GOMAXPROCS).
func NewScheduler(workers int, logger zerolog.Logger) *Scheduler {
	if workers <= 0 {
		workers = max(2, runtime.GOMAXPROCS(0))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		inFlight:     make(map[FilePath]struct{}),
		pendingRerun: make(map[FilePath]reschedule),
		sem:          semaphore.NewWeighted(int64(workers)),
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger,
	}
}

// Schedule requests that p be (re)indexed via processor and apply. If p is
// already in flight, the request is recorded as a pending rerun and
// replayed — with these latest arguments, discarding any earlier pending
// rerun — once the current run completes.
func (s *Scheduler) Schedule(p FilePath, processor FileProcessor, apply ProcessFunc) {
	if processor == nil || !processor.CanProcess(p) {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, busy := s.inFlight[p]; busy {
		s.pendingRerun[p] = reschedule{processor: processor, apply: apply}
		s.mu.Unlock()
		return
	}
	wasIdle := len(s.inFlight) == 0 && len(s.pendingRerun) == 0
	s.inFlight[p] = struct{}{}
	if wasIdle {
		s.batchFuture = NewFuture[struct{}]()
	}
	s.mu.Unlock()

	s.submit(p, processor, apply)
}

func (s *Scheduler) submit(p FilePath, processor FileProcessor, apply ProcessFunc) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if err := s.sem.Acquire(s.ctx, 1); err != nil {
			s.finishAndMaybeRerun(p)
			return
		}
		s.runSafely(p, apply)
		s.sem.Release(1)

		s.finishAndMaybeRerun(p)
	}()
}

func (s *Scheduler) runSafely(p FilePath, apply ProcessFunc) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("file", string(p)).Interface("panic", r).Msg("indexing apply panicked")
		}
	}()
	if err := apply(s.ctx, p); err != nil {
		s.logger.Warn().Err(err).Str("file", string(p)).Msg("indexing apply failed")
	}
}

// finishAndMaybeRerun marks p no longer in flight and, if a rerun was
// queued while it ran, immediately re-enters it into in-flight under the
// same critical section — so no observer of inFlight/pendingRerun ever
// sees both empty for a file whose work isn't actually done (P7).
func (s *Scheduler) finishAndMaybeRerun(p FilePath) {
	s.mu.Lock()
	delete(s.inFlight, p)

	if resched, ok := s.pendingRerun[p]; ok {
		delete(s.pendingRerun, p)
		s.inFlight[p] = struct{}{}
		s.mu.Unlock()
		s.submit(p, resched.processor, resched.apply)
		return
	}

	if len(s.inFlight) == 0 && len(s.pendingRerun) == 0 && s.batchFuture != nil {
		bf := s.batchFuture
		s.batchFuture = nil
		s.mu.Unlock()
		bf.complete(struct{}{}, nil)
		return
	}
	s.mu.Unlock()
}

// CompletionHandle returns a Future that resolves once every file
// currently scheduled (including any rerun chains still pending) has
// finished. If nothing is outstanding, it resolves immediately.
func (s *Scheduler) CompletionHandle() *Future[struct{}] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.inFlight) == 0 && len(s.pendingRerun) == 0 {
		return completedFuture(struct{}{})
	}
	if s.batchFuture == nil {
		s.batchFuture = NewFuture[struct{}]()
	}
	return s.batchFuture
}

// Stats reports the current count of in-flight and pending-rerun files.
func (s *Scheduler) Stats() (inFlight, pendingRerun int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight), len(s.pendingRerun)
}

// Close stops accepting new work, cancels outstanding semaphore waits (an
// apply already running is allowed to observe ctx and wind down on its own
// terms), and waits for every worker goroutine to exit. Close is
// idempotent.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
