package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/course-builder/internal/store"
)

// ArtifactStore is a store.Store backed by the course_artifacts table
type ArtifactStore struct {
	db *DB
}

var (
	_ store.Store        = (*ArtifactStore)(nil)
	_ store.LessonLister = (*ArtifactStore)(nil)
)

// NewArtifactStore creates an ArtifactStore
func NewArtifactStore(db *DB) *ArtifactStore {
	return &ArtifactStore{db: db}
}

// Save upserts the artifact for key
func (s *ArtifactStore) Save(ctx context.Context, key store.Key, v any) error {
	if err := key.Validate(); err != nil {
		return err
	}
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	_, err = s.db.pool.Exec(ctx,
		`INSERT INTO course_artifacts (kind, user_id, subject, lesson_id, content)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (kind, user_id, subject, lesson_id)
		 DO UPDATE SET content = EXCLUDED.content, updated_at = NOW()`,
		string(key.Kind), key.UserID, key.Subject, key.LessonID, jsonBytes,
	)
	if err != nil {
		return fmt.Errorf("failed to save artifact %s: %w", key, err)
	}
	return nil
}

// Load decodes the artifact for key into v
func (s *ArtifactStore) Load(ctx context.Context, key store.Key, v any) error {
	var content []byte
	err := s.db.pool.QueryRow(ctx,
		`SELECT content FROM course_artifacts
		 WHERE kind = $1 AND user_id = $2 AND subject = $3 AND lesson_id = $4`,
		string(key.Kind), key.UserID, key.Subject, key.LessonID,
	).Scan(&content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s: %w", key, store.ErrNotFound)
		}
		return fmt.Errorf("failed to load artifact %s: %w", key, err)
	}
	if err := json.Unmarshal(content, v); err != nil {
		return fmt.Errorf("failed to unmarshal artifact %s: %w", key, err)
	}
	return nil
}

// ListLessonIDs returns the lesson ids with stored content for a user and subject
func (s *ArtifactStore) ListLessonIDs(ctx context.Context, userID, subject string) ([]string, error) {
	rows, err := s.db.pool.Query(ctx,
		`SELECT lesson_id FROM course_artifacts
		 WHERE kind = $1 AND user_id = $2 AND subject = $3
		 ORDER BY updated_at ASC`,
		string(store.KindLessonContent), userID, subject,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan lessons: %w", err)
	}
	return ids, nil
}
