package db

import (
	"time"

	"github.com/google/uuid"
)

// RunRecord is a row of pipeline_runs
type RunRecord struct {
	ID          uuid.UUID  `json:"id"`
	UserID      string     `json:"user_id"`
	Subject     string     `json:"subject"`
	Stage       string     `json:"stage"`
	Status      string     `json:"status"`
	Percent     float64    `json:"percent"`
	Step        string     `json:"step"`
	Error       string     `json:"error,omitempty"`
	FailedStage string     `json:"failed_stage,omitempty"`
	RetryCount  int        `json:"retry_count"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
