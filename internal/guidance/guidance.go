// Package guidance looks up the text fragments that seed each stage's prompt.
package guidance

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jonathan/course-builder/internal/store"
)

// Lookup returns ordered guidance fragments for a stage and subject.
// An empty result is valid; callers fall back to built-in guidance.
type Lookup interface {
	LoadGuidance(ctx context.Context, stage, subject string) ([]string, error)
}

// DefaultFile is read when no subject-specific file exists.
const DefaultFile = "default.md"

var separator = regexp.MustCompile(`(?m)^---\s*$`)

// DirLookup reads markdown files laid out as <root>/<stage>/<subject>.md.
// A file may hold several fragments separated by "---" lines.
type DirLookup struct {
	Root string
}

// NewDirLookup creates a DirLookup rooted at dir.
func NewDirLookup(dir string) *DirLookup {
	return &DirLookup{Root: dir}
}

func (d *DirLookup) LoadGuidance(ctx context.Context, stage, subject string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Root == "" {
		return nil, nil
	}

	candidates := []string{
		filepath.Join(d.Root, stage, store.Slug(subject)+".md"),
		filepath.Join(d.Root, stage, DefaultFile),
	}
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read guidance %s: %w", path, err)
		}
		return Split(string(data)), nil
	}
	return nil, nil
}

// Split breaks a document into trimmed, non-empty fragments.
func Split(doc string) []string {
	var out []string
	for _, part := range separator.Split(doc, -1) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Static serves fixed fragments keyed by stage. Subject is ignored.
type Static map[string][]string

func (s Static) LoadGuidance(_ context.Context, stage, _ string) ([]string, error) {
	return s[stage], nil
}
