package structured

import "fmt"

// contextRadius is how many bytes of payload are kept on each side of a failure.
const contextRadius = 40

// ParseError is returned when a payload cannot be decoded even after repair.
type ParseError struct {
	Message string
	// Context is the payload text surrounding Offset.
	Context string
	Offset  int64
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("parse error: %s", e.Message)
	}
	return fmt.Sprintf("parse error at offset %d: %s (near %q)", e.Offset, e.Message, e.Context)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

func newParseError(msg string, payload string, offset int64, cause error) *ParseError {
	if offset < 0 {
		offset = 0
	}
	if offset > int64(len(payload)) {
		offset = int64(len(payload))
	}
	start := max(0, int(offset)-contextRadius)
	end := min(len(payload), int(offset)+contextRadius)
	return &ParseError{
		Message: msg,
		Context: payload[start:end],
		Offset:  offset,
		Cause:   cause,
	}
}
