package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"google.golang.org/api/googleapi"
)

// ErrorKind classifies a failed generation attempt.
type ErrorKind string

const (
	KindRateLimited ErrorKind = "rate_limited"
	KindServerFault ErrorKind = "server_fault"
	KindTimeout     ErrorKind = "timeout"
	KindConnection  ErrorKind = "connection"
	KindFatal       ErrorKind = "fatal"
	KindExhausted   ErrorKind = "retries_exhausted"
	KindCanceled    ErrorKind = "canceled"
)

// Retryable reports whether another attempt may succeed.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindRateLimited, KindServerFault, KindTimeout, KindConnection:
		return true
	default:
		return false
	}
}

// ErrEmptyResponse is returned by transports when the service answered without text.
var ErrEmptyResponse = errors.New("empty response from generation service")

// GenerationError is the only error type returned by Client.Complete.
type GenerationError struct {
	Kind       ErrorKind
	Detail     string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation failed (%s): %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("generation failed (%s): %s", e.Kind, e.Detail)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// HTTPStatusCoder is implemented by transport errors carrying an HTTP status.
type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

// StatusError is a non-success response from an HTTP-style transport.
type StatusError struct {
	Code       int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.Code)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

func (e *StatusError) HTTPStatusCode() int {
	return e.Code
}

// Classify maps a transport error onto an ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	if code := statusCode(err); code != 0 {
		return classifyStatus(code)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindConnection
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return KindConnection
	}

	// gRPC-flavoured errors only surface their status in the message.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "RESOURCE_EXHAUSTED"), strings.Contains(msg, "ResourceExhausted"):
		return KindRateLimited
	case strings.Contains(msg, "UNAVAILABLE"), strings.Contains(msg, "Unavailable"),
		strings.Contains(msg, "INTERNAL"):
		return KindServerFault
	case strings.Contains(msg, "DEADLINE_EXCEEDED"), strings.Contains(msg, "DeadlineExceeded"):
		return KindTimeout
	}

	return KindFatal
}

func classifyStatus(code int) ErrorKind {
	switch {
	case code >= 200 && code < 300:
		return ""
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusRequestTimeout:
		return KindTimeout
	case code >= 500 && code <= 599:
		return KindServerFault
	default:
		return KindFatal
	}
}

func statusCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatusCode()
	}
	return 0
}

// retryAfter extracts a server-provided backoff hint, if any.
func retryAfter(err error) time.Duration {
	var se *StatusError
	if errors.As(err, &se) && se.RetryAfter > 0 {
		return se.RetryAfter
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Header != nil {
		if ra := strings.TrimSpace(apiErr.Header.Get("Retry-After")); ra != "" {
			if secs, convErr := strconv.Atoi(ra); convErr == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return 0
}
