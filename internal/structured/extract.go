// Package structured pulls JSON payloads out of model output.
//
// Model text often wraps the payload in markdown fences or leading prose, and
// long answers are sometimes cut off. Extract and Decode slice to the payload,
// try to decode it, and on failure apply one bounded round of Repair before
// giving up with a *ParseError.
package structured

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const fence = "```"

// Extract decodes the JSON payload embedded in text into a generic value.
func Extract(text string) (any, error) {
	var v any
	if err := Decode(text, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Decode decodes the JSON payload embedded in text into v.
func Decode(text string, v any) error {
	raw, err := Raw(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return newParseError(fmt.Sprintf("field %q: cannot use %s as %s", typeErr.Field, typeErr.Value, typeErr.Type), string(raw), typeErr.Offset, err)
		}
		return newParseError(err.Error(), string(raw), 0, err)
	}
	return nil
}

// Raw returns the payload embedded in text as validated JSON, repairing it once if needed.
func Raw(text string) (json.RawMessage, error) {
	payload := Slice(text)
	if payload == "" {
		return nil, &ParseError{Message: "no JSON payload found"}
	}

	raw, _, err := decodeFirst(payload)
	if err == nil {
		return raw, nil
	}

	repaired := Repair(payload)
	raw, offset, err := decodeFirst(repaired)
	if err == nil {
		return raw, nil
	}
	return nil, newParseError(err.Error(), repaired, offset, err)
}

// Slice trims text down to the candidate payload. A ```json fence wins over
// any other fence; an unterminated fence runs to the end of the text. Without
// a fence, leading prose before the first '{' or '[' is dropped.
func Slice(text string) string {
	text = strings.TrimSpace(text)

	if idx := strings.Index(text, fence+"json"); idx >= 0 {
		return fencedBody(text[idx+len(fence)+len("json"):])
	}
	if idx := strings.Index(text, fence); idx >= 0 {
		body := text[idx+len(fence):]
		// drop a language tag on the opening line
		if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "{[\"") {
			body = body[nl+1:]
		}
		return fencedBody(body)
	}

	if start := strings.IndexAny(text, "{["); start > 0 {
		return text[start:]
	}
	return text
}

func fencedBody(body string) string {
	if end := strings.Index(body, fence); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// decodeFirst decodes the first JSON value in payload, ignoring trailing text.
// On failure it reports the byte offset where decoding stopped.
func decodeFirst(payload string) (json.RawMessage, int64, error) {
	dec := json.NewDecoder(strings.NewReader(payload))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		var syntaxErr *json.SyntaxError
		switch {
		case errors.As(err, &syntaxErr):
			return nil, syntaxErr.Offset, err
		case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
			return nil, int64(len(payload)), fmt.Errorf("unexpected end of JSON input: %w", err)
		default:
			return nil, dec.InputOffset(), err
		}
	}
	return bytes.TrimSpace(raw), 0, nil
}
