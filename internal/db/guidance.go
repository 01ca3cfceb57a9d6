package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// DefaultSubject marks guidance rows that apply to every subject
const DefaultSubject = ""

// GuidanceStore serves stage guidance from the stage_guidance table.
// Rows for the exact subject win; otherwise the default rows are returned.
type GuidanceStore struct {
	db *DB
}

// NewGuidanceStore creates a GuidanceStore
func NewGuidanceStore(db *DB) *GuidanceStore {
	return &GuidanceStore{db: db}
}

// LoadGuidance returns ordered fragments for a stage and subject
func (g *GuidanceStore) LoadGuidance(ctx context.Context, stage, subject string) ([]string, error) {
	rows, err := g.db.pool.Query(ctx,
		`SELECT subject, body FROM stage_guidance
		 WHERE stage = $1 AND (subject = $2 OR subject = $3)
		 ORDER BY position ASC, id ASC`,
		stage, subject, DefaultSubject,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load guidance for %s: %w", stage, err)
	}

	type row struct {
		Subject string
		Body    string
	}
	all, err := pgx.CollectRows(rows, pgx.RowToStructByPos[row])
	if err != nil {
		return nil, fmt.Errorf("failed to scan guidance: %w", err)
	}

	var specific, fallback []string
	for _, r := range all {
		if r.Subject == subject && subject != DefaultSubject {
			specific = append(specific, r.Body)
		} else {
			fallback = append(fallback, r.Body)
		}
	}
	if len(specific) > 0 {
		return specific, nil
	}
	return fallback, nil
}

// AddGuidance appends a fragment for a stage and subject
func (g *GuidanceStore) AddGuidance(ctx context.Context, stage, subject, body string) error {
	_, err := g.db.pool.Exec(ctx,
		`INSERT INTO stage_guidance (stage, subject, position, body)
		 VALUES ($1, $2,
		   (SELECT COALESCE(MAX(position) + 1, 0) FROM stage_guidance WHERE stage = $1 AND subject = $2),
		   $3)`,
		stage, subject, body,
	)
	if err != nil {
		return fmt.Errorf("failed to add guidance: %w", err)
	}
	return nil
}
