package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/semaphore"

	"github.com/jonathan/course-builder/internal/guidance"
	"github.com/jonathan/course-builder/internal/logging"
	"github.com/jonathan/course-builder/internal/store"
	"github.com/jonathan/course-builder/internal/types"
)

// ErrShuttingDown is returned by Start after Shutdown was called.
var ErrShuttingDown = errors.New("orchestrator is shutting down")

// StageRunner executes the generation stages of a run.
type StageRunner interface {
	Curriculum(ctx context.Context, subject string, survey *types.SurveyResult, guidance []string) (*types.CurriculumScheme, error)
	LessonPlans(ctx context.Context, subject string, curriculum *types.CurriculumScheme, guidance []string) (*types.LessonPlanSet, error)
	LessonContent(ctx context.Context, subject string, plan *types.LessonPlan, guidance []string) (*types.LessonContent, error)
}

// Options configures an Orchestrator.
type Options struct {
	// MaxConcurrentRuns bounds how many runs execute stages at once. Others wait queued.
	MaxConcurrentRuns int64
	Logger            *logging.Logger
	Now               func() time.Time
}

// DefaultMaxConcurrentRuns is used when Options.MaxConcurrentRuns is not positive.
const DefaultMaxConcurrentRuns = 4

// Orchestrator owns the run registry and the workers executing runs.
type Orchestrator struct {
	runner   StageRunner
	store    store.Store
	guidance guidance.Lookup
	logger   *logging.Logger
	now      func() time.Time
	sem      *semaphore.Weighted

	mu       sync.RWMutex
	runs     map[uuid.UUID]*entry
	global   map[int]Observer
	nextObs  int
	closed   bool
	janitor  *cron.Cron
	workers  sync.WaitGroup
	inFlight atomic.Int64
}

type entry struct {
	run       Run
	cancel    context.CancelFunc
	gen       int
	observers map[int]Observer
	// changed is closed and replaced on every state change.
	changed chan struct{}
	// written holds the lesson ids persisted against the current plans.
	written map[string]struct{}

	// seq numbers snapshots under o.mu; delivered is guarded by deliverMu.
	seq       uint64
	deliverMu sync.Mutex
	delivered uint64
}

// delivery is one snapshot waiting to be handed to observers.
type delivery struct {
	e         *entry
	seq       uint64
	run       Run
	observers []Observer
}

func (e *entry) broadcast() {
	close(e.changed)
	e.changed = make(chan struct{})
}

// New creates an Orchestrator. A nil guidance lookup yields no guidance.
func New(runner StageRunner, artifacts store.Store, lookup guidance.Lookup, opts Options) *Orchestrator {
	if opts.MaxConcurrentRuns <= 0 {
		opts.MaxConcurrentRuns = DefaultMaxConcurrentRuns
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if lookup == nil {
		lookup = guidance.Static{}
	}
	return &Orchestrator{
		runner:   runner,
		store:    artifacts,
		guidance: lookup,
		logger:   opts.Logger,
		now:      opts.Now,
		sem:      semaphore.NewWeighted(opts.MaxConcurrentRuns),
		runs:     make(map[uuid.UUID]*entry),
		global:   make(map[int]Observer),
	}
}

// Start validates the survey, persists it and dispatches a background worker.
// It returns as soon as the run is registered.
func (o *Orchestrator) Start(ctx context.Context, userID, subject string, survey *types.SurveyResult) (uuid.UUID, error) {
	userID, subject = strings.TrimSpace(userID), strings.TrimSpace(subject)
	if userID == "" {
		return uuid.Nil, errors.New("user ID is required")
	}
	if subject == "" {
		return uuid.Nil, errors.New("subject is required")
	}
	if survey == nil {
		return uuid.Nil, errors.New("survey result is required")
	}
	if err := survey.Validate(); err != nil {
		return uuid.Nil, fmt.Errorf("invalid survey result: %w", err)
	}

	o.mu.RLock()
	closed := o.closed
	o.mu.RUnlock()
	if closed {
		return uuid.Nil, ErrShuttingDown
	}

	key := store.Key{Kind: store.KindSurveyResult, UserID: userID, Subject: subject}
	if err := o.store.Save(ctx, key, survey); err != nil {
		return uuid.Nil, fmt.Errorf("failed to persist survey result: %w", err)
	}

	now := o.now()
	run := Run{
		ID:        uuid.New(),
		UserID:    userID,
		Subject:   subject,
		Stage:     StageCurriculumGeneration,
		Status:    StatusInProgress,
		Step:      "Queued",
		StartedAt: now,
		UpdatedAt: now,
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return uuid.Nil, ErrShuttingDown
	}
	e := &entry{
		run:       run,
		observers: make(map[int]Observer),
		changed:   make(chan struct{}),
		written:   make(map[string]struct{}),
	}
	o.runs[run.ID] = e
	runCtx := o.dispatchLocked(e)
	gen := e.gen
	d := o.snapshotLocked(e)
	o.mu.Unlock()

	o.logger.Info("pipeline run started", "run_id", run.ID.String(), "user_id", userID, "subject", subject)
	o.emit(d)
	go o.execute(runCtx, run.ID, gen, StageCurriculumGeneration)
	return run.ID, nil
}

// dispatchLocked prepares a fresh worker generation for e. Caller holds o.mu.
func (o *Orchestrator) dispatchLocked(e *entry) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.gen++
	o.workers.Add(1)
	return ctx
}

// GetProgress returns a snapshot of a run.
func (o *Orchestrator) GetProgress(id uuid.UUID) (Run, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	e, ok := o.runs[id]
	if !ok {
		return Run{}, false
	}
	return e.run, true
}

// List returns snapshots of every registered run for a user, or all runs when userID is empty.
func (o *Orchestrator) List(userID string) []Run {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Run, 0, len(o.runs))
	for _, e := range o.runs {
		if userID == "" || e.run.UserID == userID {
			out = append(out, e.run)
		}
	}
	return out
}

// Cancel stops an InProgress run. The in-flight stage call is interrupted
// through its context; the worker never overwrites the Cancelled status.
func (o *Orchestrator) Cancel(id uuid.UUID) bool {
	return o.cancel(id, "Cancelled by request")
}

func (o *Orchestrator) cancel(id uuid.UUID, reason string) bool {
	o.mu.Lock()
	e, ok := o.runs[id]
	if !ok || e.run.Status != StatusInProgress {
		o.mu.Unlock()
		return false
	}
	now := o.now()
	e.run.Status = StatusCancelled
	e.run.Step = "Cancelled"
	e.run.Error = reason
	e.run.CompletedAt = &now
	e.run.EstimatedCompletion = nil
	e.run.UpdatedAt = now
	if e.cancel != nil {
		e.cancel()
	}
	e.broadcast()
	d := o.snapshotLocked(e)
	o.mu.Unlock()

	o.logger.Info("pipeline run cancelled", "run_id", id.String(), "reason", reason)
	o.emit(d)
	return true
}

// Retry resumes a Failed run at the stage that failed. Artifacts from
// earlier stages are reloaded from the store rather than regenerated. When
// content generation failed, lessons this run already wrote are kept.
func (o *Orchestrator) Retry(id uuid.UUID) bool {
	o.mu.Lock()
	e, ok := o.runs[id]
	if !ok || e.run.Status != StatusFailed || o.closed {
		o.mu.Unlock()
		return false
	}
	from := e.run.FailedStage
	if from == "" {
		from = StageCurriculumGeneration
	}
	e.run.Status = StatusInProgress
	e.run.Stage = from
	e.run.Step = "Retrying " + stageOrder[stageIndex(from)].Step
	e.run.Error = ""
	e.run.FailedStage = ""
	e.run.CompletedAt = nil
	e.run.RetryCount++
	e.run.UpdatedAt = o.now()
	runCtx := o.dispatchLocked(e)
	gen := e.gen
	e.broadcast()
	d := o.snapshotLocked(e)
	o.mu.Unlock()

	o.logger.Info("pipeline run retried", "run_id", id.String(), "stage", string(from), "retry_count", d.run.RetryCount)
	o.emit(d)
	go o.execute(runCtx, id, gen, from)
	return true
}

// Cleanup evicts terminal runs that completed at least maxAge ago, along with
// their observers. InProgress runs are never evicted.
func (o *Orchestrator) Cleanup(maxAge time.Duration) int {
	cutoff := o.now().Add(-maxAge)

	o.mu.Lock()
	defer o.mu.Unlock()
	evicted := 0
	for id, e := range o.runs {
		if !e.run.Status.Terminal() {
			continue
		}
		completed := e.run.UpdatedAt
		if e.run.CompletedAt != nil {
			completed = *e.run.CompletedAt
		}
		if completed.After(cutoff) {
			continue
		}
		delete(o.runs, id)
		evicted++
	}
	return evicted
}

// Stats counts registered runs by status.
func (o *Orchestrator) Stats() Stats {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s := Stats{
		Total:         len(o.runs),
		ByStatus:      make(map[Status]int),
		ActiveWorkers: int(o.inFlight.Load()),
	}
	for _, e := range o.runs {
		s.ByStatus[e.run.Status]++
	}
	return s
}

// Subscribe attaches an observer to one run. The returned func detaches it.
func (o *Orchestrator) Subscribe(id uuid.UUID, obs Observer) (func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	o.nextObs++
	key := o.nextObs
	e.observers[key] = obs
	return func() {
		o.mu.Lock()
		delete(e.observers, key)
		o.mu.Unlock()
	}, nil
}

// OnChange attaches an observer to every run. The returned func detaches it.
func (o *Orchestrator) OnChange(obs Observer) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextObs++
	key := o.nextObs
	o.global[key] = obs
	return func() {
		o.mu.Lock()
		delete(o.global, key)
		o.mu.Unlock()
	}
}

// Wait blocks until the run reaches a terminal status or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context, id uuid.UUID) (Run, error) {
	for {
		o.mu.RLock()
		e, ok := o.runs[id]
		if !ok {
			o.mu.RUnlock()
			return Run{}, ErrRunNotFound
		}
		run, changed := e.run, e.changed
		o.mu.RUnlock()

		if run.Status.Terminal() {
			return run, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return run, ctx.Err()
		}
	}
}

// Shutdown cancels every InProgress run, stops the janitor and waits for
// workers to exit or ctx to expire.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	janitor := o.janitor
	o.janitor = nil
	ids := make([]uuid.UUID, 0, len(o.runs))
	for id, e := range o.runs {
		if e.run.Status == StatusInProgress {
			ids = append(ids, id)
		}
	}
	o.mu.Unlock()

	if janitor != nil {
		<-janitor.Stop().Done()
	}
	for _, id := range ids {
		o.cancel(id, "Cancelled: service shutting down")
	}

	done := make(chan struct{})
	go func() {
		o.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// snapshotLocked copies the run and its observers and numbers the snapshot.
// Caller holds o.mu.
func (o *Orchestrator) snapshotLocked(e *entry) delivery {
	observers := make([]Observer, 0, len(e.observers)+len(o.global))
	for _, obs := range e.observers {
		observers = append(observers, obs)
	}
	for _, obs := range o.global {
		observers = append(observers, obs)
	}
	e.seq++
	return delivery{e: e, seq: e.seq, run: e.run, observers: observers}
}

// emit calls observers outside the registry lock. Deliveries for one run are
// serialized, and a snapshot older than one already delivered is dropped, so
// observers never see a run go back to an earlier state. Failures are logged only.
func (o *Orchestrator) emit(d delivery) {
	d.e.deliverMu.Lock()
	defer d.e.deliverMu.Unlock()
	if d.seq <= d.e.delivered {
		return
	}
	d.e.delivered = d.seq
	for _, obs := range d.observers {
		o.callObserver(obs, d.run)
	}
}

func (o *Orchestrator) callObserver(obs Observer, run Run) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("progress observer panicked", "run_id", run.ID.String(), "panic", fmt.Sprint(r))
		}
	}()
	if err := obs(run); err != nil {
		o.logger.Warn("progress observer failed", "run_id", run.ID.String(), "error", err.Error())
	}
}
