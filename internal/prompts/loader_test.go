package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stageFiles = []string{"survey.json", "curriculum.json", "lesson_plans.json", "lesson_content.json"}

func TestGet_ValidPrompt(t *testing.T) {
	ClearCache()

	prompt, err := Get("curriculum.json", KeyGenerate)
	require.NoError(t, err)
	assert.Contains(t, prompt, "{{.LessonCount}}")
}

func TestGet_InvalidFile(t *testing.T) {
	ClearCache()

	_, err := Get("nonexistent.json", "some-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	ClearCache()

	_, err := Get("curriculum.json", "nonexistent-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestMustGet_Panics(t *testing.T) {
	ClearCache()

	assert.Panics(t, func() {
		MustGet("nonexistent.json", "some-key")
	})
}

func TestStageFiles_HaveRequiredKeys(t *testing.T) {
	ClearCache()

	for _, f := range stageFiles {
		keys, err := List(f)
		require.NoError(t, err, f)
		assert.Equal(t, []string{KeyDefaultGuidance, KeyGenerate}, keys, f)
		assert.Contains(t, MustGet(f, KeyGenerate), "{{.Guidance}}", f)
	}
}

func TestFormat(t *testing.T) {
	out := Format("Course on {{.Subject}} ({{.Subject}}) for {{.Level}}", map[string]string{
		"Subject": "Go",
		"Level":   "beginners",
	})
	assert.Equal(t, "Course on Go (Go) for beginners", out)
}

func TestRender_UsesGuidance(t *testing.T) {
	out, err := Render("lesson_content.json", []string{"  Use metric units. ", "", "Keep it short."}, map[string]string{
		"Subject":    "Physics",
		"LessonPlan": `{"lesson_id":"l1"}`,
		"MinChars":   "500",
	})
	require.NoError(t, err)

	assert.Contains(t, out, "Use metric units.\n\nKeep it short.")
	assert.Contains(t, out, `{"lesson_id":"l1"}`)
	assert.NotContains(t, out, "{{.")
}

func TestRender_DefaultGuidanceWhenEmpty(t *testing.T) {
	out, err := Render("survey.json", nil, map[string]string{
		"Subject":      "Go",
		"MinQuestions": "5",
		"MaxQuestions": "15",
	})
	require.NoError(t, err)
	assert.Contains(t, out, MustGet("survey.json", KeyDefaultGuidance))
}

func TestJoinGuidance(t *testing.T) {
	assert.Equal(t, "", JoinGuidance([]string{" ", "\n"}))
	assert.Equal(t, "a\n\nb", JoinGuidance([]string{"a", "b"}))
}
