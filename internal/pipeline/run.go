// Package pipeline orchestrates course generation runs: curriculum, lesson
// planning, then content for every lesson, each executed on a background worker.
package pipeline

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run id is not in the registry.
var ErrRunNotFound = errors.New("pipeline run not found")

// Stage is a phase of a run.
type Stage string

const (
	StageSurveyGeneration     Stage = "survey_generation"
	StageCurriculumGeneration Stage = "curriculum_generation"
	StageLessonPlanning       Stage = "lesson_planning"
	StageContentGeneration    Stage = "content_generation"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further work happens for the status without a Retry.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Run is a snapshot of one pipeline run.
type Run struct {
	ID          uuid.UUID `json:"id"`
	UserID      string    `json:"user_id"`
	Subject     string    `json:"subject"`
	Stage       Stage     `json:"stage"`
	Status      Status    `json:"status"`
	Percent     float64   `json:"percent"`
	Step        string    `json:"step"`
	Error       string    `json:"error,omitempty"`
	FailedStage Stage     `json:"failed_stage,omitempty"`

	StartedAt           time.Time  `json:"started_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty"`
	UpdatedAt           time.Time  `json:"updated_at"`

	LessonsTotal int `json:"lessons_total"`
	LessonsDone  int `json:"lessons_done"`
	RetryCount   int `json:"retry_count"`
}

// Observer is called synchronously after every state change of a run.
// Snapshots of one run arrive in order; stale ones are skipped. An observer
// must not call Cancel or Retry on the run it is observing.
// Errors and panics are logged and otherwise ignored.
type Observer func(run Run) error

// Stats aggregates runs currently in the registry.
type Stats struct {
	Total         int            `json:"total"`
	ByStatus      map[Status]int `json:"by_status"`
	ActiveWorkers int            `json:"active_workers"`
}
