package structured

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlice(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `  {"a": 1}  `, `{"a": 1}`},
		{"json fence", "Here you go:\n```json\n{\"a\": 1}\n```\nThanks", `{"a": 1}`},
		{"generic fence with tag", "```javascript\n[1, 2]\n```", `[1, 2]`},
		{"generic fence no tag", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"json fence preferred", "```text\nnotes\n```\n```json\n{\"b\": 2}\n```", `{"b": 2}`},
		{"unterminated fence", "```json\n{\"a\": [1, 2", `{"a": [1, 2`},
		{"leading prose", `The curriculum is: {"lessons": []}`, `{"lessons": []}`},
		{"prose array", `Result -> [1]`, `[1]`},
		{"no payload", `nothing here`, `nothing here`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slice(tt.in))
		})
	}
}

func TestExtract_Valid(t *testing.T) {
	v, err := Extract("```json\n{\"subject\": \"go\", \"lessons\": [1, 2]}\n```")
	require.NoError(t, err)

	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "go", m["subject"])
	assert.Len(t, m["lessons"], 2)
}

func TestExtract_TrailingProseIgnored(t *testing.T) {
	v, err := Extract(`{"a": 1} Let me know if you need anything else.`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, v)
}

func TestExtract_FencedMissingBraceRepaired(t *testing.T) {
	text := "```json\n{\"lessons\": [{\"id\": \"l1\", \"title\": \"Intro\"}]\n```"

	var out struct {
		Lessons []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"lessons"`
	}
	require.NoError(t, Decode(text, &out))
	require.Len(t, out.Lessons, 1)
	assert.Equal(t, "Intro", out.Lessons[0].Title)
}

func TestExtract_TwoUnterminatedStringsFail(t *testing.T) {
	_, err := Extract(`{"title": "Intro, "summary": "Basics`)
	require.Error(t, err)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.NotEmpty(t, pe.Context)
	assert.LessOrEqual(t, len(pe.Context), 2*contextRadius)
}

func TestExtract_TruncatedString(t *testing.T) {
	v, err := Extract(`{"body": "Variables hold val`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"body": "Variables hold val"}, v)
}

func TestExtract_NoPayload(t *testing.T) {
	_, err := Extract("   ")
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Error(), "no JSON payload")
}

func TestDecode_TypeMismatch(t *testing.T) {
	var out struct {
		Count int `json:"count"`
	}
	err := Decode(`{"count": "five"}`, &out)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Message, "count")
}

func TestParseError_ContextWindow(t *testing.T) {
	payload := strings.Repeat("a", 100) + "!" + strings.Repeat("b", 100)
	pe := newParseError("bad", payload, 100, nil)

	assert.Equal(t, int64(100), pe.Offset)
	assert.Equal(t, strings.Repeat("a", 40)+"!"+strings.Repeat("b", 39), pe.Context)
	assert.Contains(t, pe.Error(), "offset 100")
}
