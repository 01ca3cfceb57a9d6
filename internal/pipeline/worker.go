package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/course-builder/internal/logging"
	"github.com/jonathan/course-builder/internal/store"
	"github.com/jonathan/course-builder/internal/types"
)

// worker carries the per-dispatch state of one run.
type worker struct {
	o       *Orchestrator
	ctx     context.Context
	id      uuid.UUID
	gen     int
	userID  string
	subject string
	log     *logging.Logger
}

// execute is the worker body. Stages before from are not rerun; their
// artifacts are loaded from the store instead.
func (o *Orchestrator) execute(ctx context.Context, id uuid.UUID, gen int, from Stage) {
	defer o.workers.Done()

	// a run cancelled while queued never starts
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return
	}
	o.inFlight.Add(1)
	defer func() {
		o.inFlight.Add(-1)
		o.sem.Release(1)
	}()

	snap, ok := o.GetProgress(id)
	if !ok {
		return
	}
	w := &worker{
		o:       o,
		ctx:     ctx,
		id:      id,
		gen:     gen,
		userID:  snap.UserID,
		subject: snap.Subject,
		log:     o.logger.With("run_id", id.String(), "subject", snap.Subject),
	}
	defer func() {
		if r := recover(); r != nil {
			w.fail(w.currentStage(), fmt.Errorf("worker panic: %v", r))
		}
	}()

	start := stageIndex(from)

	var curriculum *types.CurriculumScheme
	if start == 0 {
		if curriculum, ok = w.curriculumStage(); !ok {
			return
		}
	} else {
		curriculum = &types.CurriculumScheme{}
		if err := w.load(store.KindCurriculum, "", curriculum); err != nil {
			w.fail(from, fmt.Errorf("failed to reload curriculum: %w", err))
			return
		}
	}

	var plans *types.LessonPlanSet
	if start <= 1 {
		if plans, ok = w.planningStage(curriculum); !ok {
			return
		}
	} else {
		plans = &types.LessonPlanSet{}
		if err := w.load(store.KindLessonPlans, "", plans); err != nil {
			w.fail(from, fmt.Errorf("failed to reload lesson plans: %w", err))
			return
		}
	}

	var keep map[string]struct{}
	if from == StageContentGeneration {
		keep = w.writtenLessons()
	}
	w.contentStage(plans, keep)
}

func (w *worker) curriculumStage() (*types.CurriculumScheme, bool) {
	def := stageOrder[0]
	if !w.enter(def) {
		return nil, false
	}

	var survey types.SurveyResult
	if err := w.load(store.KindSurveyResult, "", &survey); err != nil {
		w.fail(def.Stage, fmt.Errorf("failed to load survey result: %w", err))
		return nil, false
	}

	curriculum, err := w.o.runner.Curriculum(w.ctx, w.subject, &survey, w.guidanceFor(def))
	if err != nil {
		w.fail(def.Stage, err)
		return nil, false
	}
	if err := w.save(store.KindCurriculum, "", curriculum); err != nil {
		w.fail(def.Stage, err)
		return nil, false
	}

	ok := w.mutate(func(r *Run, now time.Time) {
		r.Step = fmt.Sprintf("Curriculum ready with %d lessons", len(curriculum.Lessons))
		r.LessonsTotal = len(curriculum.Lessons)
		advance(r, def.End, now)
	})
	return curriculum, ok
}

func (w *worker) planningStage(curriculum *types.CurriculumScheme) (*types.LessonPlanSet, bool) {
	def := stageOrder[1]
	if !w.enter(def) {
		return nil, false
	}

	plans, err := w.o.runner.LessonPlans(w.ctx, w.subject, curriculum, w.guidanceFor(def))
	if err != nil {
		w.fail(def.Stage, err)
		return nil, false
	}
	if err := w.save(store.KindLessonPlans, "", plans); err != nil {
		w.fail(def.Stage, err)
		return nil, false
	}
	w.resetWritten()

	ok := w.mutate(func(r *Run, now time.Time) {
		r.Step = fmt.Sprintf("Planned %d lessons", len(plans.Plans))
		r.LessonsTotal = len(plans.Plans)
		advance(r, def.End, now)
	})
	return plans, ok
}

// contentStage writes every lesson of plans. Lessons in keep were written by
// an earlier attempt of this run and are reused when still in the store.
func (w *worker) contentStage(plans *types.LessonPlanSet, keep map[string]struct{}) {
	def := stageOrder[2]
	if !w.enter(def) {
		return
	}
	total := len(plans.Plans)
	guidance := w.guidanceFor(def)

	done := 0
	for i := range plans.Plans {
		plan := &plans.Plans[i]
		step := fmt.Sprintf("Writing lesson %d of %d: %s", i+1, total, plan.Title)
		if !w.mutate(func(r *Run, _ time.Time) {
			r.Step = step
			r.LessonsTotal = total
			r.LessonsDone = done
		}) {
			return
		}

		if _, kept := keep[plan.LessonID]; kept {
			var existing types.LessonContent
			if err := w.load(store.KindLessonContent, plan.LessonID, &existing); err == nil {
				done++
				w.lessonDone(done, total)
				continue
			}
		}

		content, err := w.o.runner.LessonContent(w.ctx, w.subject, plan, guidance)
		if err != nil {
			w.fail(def.Stage, fmt.Errorf("lesson %s: %w", plan.LessonID, err))
			return
		}
		if err := w.save(store.KindLessonContent, plan.LessonID, content); err != nil {
			w.fail(def.Stage, err)
			return
		}
		w.recordWritten(plan.LessonID)
		done++
		w.lessonDone(done, total)
	}

	w.complete(total)
}

// lessonDone records progress for finished lessons. The final lesson is
// recorded by complete so that 100% coincides with Completed.
func (w *worker) lessonDone(done, total int) {
	if done >= total {
		return
	}
	w.mutate(func(r *Run, now time.Time) {
		r.LessonsDone = done
		advance(r, lessonProgress(done, total), now)
	})
}

func (w *worker) complete(total int) {
	ok := w.mutate(func(r *Run, now time.Time) {
		r.Status = StatusCompleted
		r.Step = "Completed"
		r.Percent = progressComplete
		r.LessonsTotal = total
		r.LessonsDone = total
		r.CompletedAt = &now
		r.EstimatedCompletion = &now
	})
	if ok {
		w.log.Info("pipeline run completed", "lessons", total)
	}
}

// enter marks the start of a stage. It is also the cooperative cancellation point.
func (w *worker) enter(def stageDef) bool {
	return w.mutate(func(r *Run, now time.Time) {
		r.Stage = def.Stage
		r.Step = def.Step
		advance(r, def.Start, now)
	})
}

func (w *worker) fail(stage Stage, err error) {
	ok := w.mutate(func(r *Run, now time.Time) {
		r.Status = StatusFailed
		r.FailedStage = stage
		r.Error = err.Error()
		r.Step = "Failed"
		r.CompletedAt = &now
		r.EstimatedCompletion = nil
	})
	if ok {
		w.log.Error("pipeline run failed", "stage", string(stage), "error", err.Error())
	} else if !errors.Is(err, context.Canceled) {
		w.log.Debug("stage error after run left progress", "stage", string(stage), "error", err.Error())
	}
}

func (w *worker) currentStage() Stage {
	run, _ := w.o.GetProgress(w.id)
	return run.Stage
}

// mutate applies fn while the run is still InProgress and owned by this
// worker generation, then notifies observers. It reports whether fn ran.
func (w *worker) mutate(fn func(r *Run, now time.Time)) bool {
	if w.ctx.Err() != nil {
		return false
	}
	o := w.o
	o.mu.Lock()
	e, ok := o.runs[w.id]
	if !ok || e.gen != w.gen || e.run.Status != StatusInProgress {
		o.mu.Unlock()
		return false
	}
	now := o.now()
	fn(&e.run, now)
	e.run.UpdatedAt = now
	e.broadcast()
	d := o.snapshotLocked(e)
	o.mu.Unlock()

	o.emit(d)
	return true
}

// owned returns the registry entry while this worker generation still owns it.
// Caller holds o.mu.
func (w *worker) owned() (*entry, bool) {
	e, ok := w.o.runs[w.id]
	if !ok || e.gen != w.gen {
		return nil, false
	}
	return e, true
}

func (w *worker) writtenLessons() map[string]struct{} {
	w.o.mu.RLock()
	defer w.o.mu.RUnlock()
	e, ok := w.owned()
	if !ok {
		return nil
	}
	out := make(map[string]struct{}, len(e.written))
	for id := range e.written {
		out[id] = struct{}{}
	}
	return out
}

func (w *worker) recordWritten(lessonID string) {
	w.o.mu.Lock()
	defer w.o.mu.Unlock()
	if e, ok := w.owned(); ok {
		e.written[lessonID] = struct{}{}
	}
}

// resetWritten forgets lessons written against plans that were just replaced.
func (w *worker) resetWritten() {
	w.o.mu.Lock()
	defer w.o.mu.Unlock()
	if e, ok := w.owned(); ok {
		e.written = make(map[string]struct{})
	}
}

// advance raises the percentage (never lowers it) and refreshes the estimate.
func advance(r *Run, percent float64, now time.Time) {
	if percent > r.Percent {
		r.Percent = percent
	}
	if r.Percent <= 0 || r.Percent >= progressComplete {
		return
	}
	elapsed := now.Sub(r.StartedAt)
	eta := r.StartedAt.Add(time.Duration(float64(elapsed) * progressComplete / r.Percent))
	r.EstimatedCompletion = &eta
}

func (w *worker) guidanceFor(def stageDef) []string {
	fragments, err := w.o.guidance.LoadGuidance(w.ctx, def.Guidance, w.subject)
	if err != nil {
		w.log.Warn("guidance lookup failed, using defaults", "stage", def.Guidance, "error", err.Error())
		return nil
	}
	return fragments
}

func (w *worker) key(kind store.Kind, lessonID string) store.Key {
	return store.Key{Kind: kind, UserID: w.userID, Subject: w.subject, LessonID: lessonID}
}

func (w *worker) save(kind store.Kind, lessonID string, v any) error {
	if err := w.o.store.Save(w.ctx, w.key(kind, lessonID), v); err != nil {
		return fmt.Errorf("failed to persist %s: %w", kind, err)
	}
	return nil
}

func (w *worker) load(kind store.Kind, lessonID string, v any) error {
	return w.o.store.Load(w.ctx, w.key(kind, lessonID), v)
}
