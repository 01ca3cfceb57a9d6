// Package store persists generated artifacts by key.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNotFound is returned by Load when no artifact exists for a key.
var ErrNotFound = errors.New("artifact not found")

// Kind names an artifact type.
type Kind string

const (
	KindSurveyResult  Kind = "survey_result"
	KindSurvey        Kind = "survey"
	KindCurriculum    Kind = "curriculum"
	KindLessonPlans   Kind = "lesson_plans"
	KindLessonContent Kind = "lesson_content"
)

// Key addresses one artifact. LessonID is only set for per-lesson artifacts.
type Key struct {
	Kind     Kind
	UserID   string
	Subject  string
	LessonID string
}

// Validate checks the key is complete.
func (k Key) Validate() error {
	switch {
	case k.Kind == "":
		return errors.New("artifact kind is required")
	case strings.TrimSpace(k.UserID) == "":
		return errors.New("user ID is required")
	case strings.TrimSpace(k.Subject) == "":
		return errors.New("subject is required")
	case k.Kind == KindLessonContent && strings.TrimSpace(k.LessonID) == "":
		return errors.New("lesson ID is required for lesson content")
	}
	return nil
}

func (k Key) String() string {
	if k.LessonID != "" {
		return fmt.Sprintf("%s/%s/%s/%s", k.UserID, k.Subject, k.Kind, k.LessonID)
	}
	return fmt.Sprintf("%s/%s/%s", k.UserID, k.Subject, k.Kind)
}

// Store saves and loads artifacts. Values are encoded as JSON.
type Store interface {
	Save(ctx context.Context, key Key, v any) error
	Load(ctx context.Context, key Key, v any) error
}

// LessonLister is implemented by stores that can enumerate stored lesson content.
type LessonLister interface {
	ListLessonIDs(ctx context.Context, userID, subject string) ([]string, error)
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Slug turns a key component into a filesystem and URL safe token.
func Slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = unsafeChars.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-.")
	if s == "" {
		return "_"
	}
	return s
}

// segment names a key component on disk. Slugs are lossy ("C++" and "C#"
// both become "c"), so a hash of the raw value keeps distinct values apart.
func segment(s string) string {
	sum := sha256.Sum256([]byte(s))
	return Slug(s) + "-" + hex.EncodeToString(sum[:4])
}
