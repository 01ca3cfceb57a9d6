package structured

import "strings"

// Repair applies the truncation and formatting fixups in a fixed order:
//
//  1. strip a ',' that directly precedes a closing '}' or ']' (or the end of input)
//  2. append closers for every unclosed '{' and '[' in nesting order
//  3. if the count of unescaped '"' is odd, close the string ahead of the closers from step 2
//
// Bracket characters inside strings are ignored. Repair never reorders or
// removes anything else, so semantically broken payloads stay broken.
func Repair(payload string) string {
	fixed := stripTrailingSeparators(payload)
	closers := missingClosers(fixed)
	if unescapedQuotes(fixed)%2 == 1 {
		return fixed + `"` + closers
	}
	return fixed + closers
}

func stripTrailingSeparators(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == ',' {
			next := nextNonSpace(s, i+1)
			if next == len(s) || s[next] == '}' || s[next] == ']' {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

func nextNonSpace(s string, from int) int {
	for from < len(s) {
		switch s[from] {
		case ' ', '\t', '\n', '\r':
			from++
		default:
			return from
		}
	}
	return from
}

// missingClosers returns the closers needed to balance s, innermost first.
// A closer that does not match the innermost opener is left alone.
func missingClosers(s string) string {
	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if n := len(stack); n > 0 && stack[n-1] == c {
				stack = stack[:n-1]
			}
		}
	}

	closers := make([]byte, len(stack))
	for i := range stack {
		closers[i] = stack[len(stack)-1-i]
	}
	return string(closers)
}

func unescapedQuotes(s string) int {
	count := 0
	escaped := false
	for i := 0; i < len(s); i++ {
		switch {
		case escaped:
			escaped = false
		case s[i] == '\\':
			escaped = true
		case s[i] == '"':
			count++
		}
	}
	return count
}
