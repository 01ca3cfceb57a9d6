package stage

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingInput is returned when a stage is run without the artifact it builds on.
var ErrMissingInput = errors.New("missing stage input")

// QualityGateError rejects a candidate artifact that decoded but is not usable.
type QualityGateError struct {
	Kind    Kind
	Reasons []string
}

func (e *QualityGateError) Error() string {
	return fmt.Sprintf("%s rejected by quality gate: %s", e.Kind, strings.Join(e.Reasons, "; "))
}

// GenerationFailed is returned after every semantic attempt was rejected.
type GenerationFailed struct {
	Kind     Kind
	Attempts int
	Errors   []error
}

func (e *GenerationFailed) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s generation failed after %d attempts", e.Kind, e.Attempts)
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "; attempt %d: %v", i+1, err)
	}
	return sb.String()
}

func (e *GenerationFailed) Unwrap() []error {
	return e.Errors
}
