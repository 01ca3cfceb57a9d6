package main

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunCommand_MissingSubject(t *testing.T) {
	binaryPath := getBinaryPath(t)
	survey := writeFile(t, "survey.json", `{"skill_level":"beginner","topics":[]}`)

	cmd := exec.Command(binaryPath, "run", "--survey-result", survey)
	output, err := cmd.CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(output), "required")
}

func TestRunCommand_InvalidSurveyResult(t *testing.T) {
	binaryPath := getBinaryPath(t)
	survey := writeFile(t, "survey.json", `{"skill_level":"guru"}`)

	cmd := exec.Command(binaryPath, "run", "--subject", "Go", "--survey-result", survey)
	output, err := cmd.CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(output), "invalid survey result")
}

func TestSurveyCommand_MissingSubject(t *testing.T) {
	binaryPath := getBinaryPath(t)

	cmd := exec.Command(binaryPath, "survey")
	output, err := cmd.CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(output), "required")
}

func TestGuidanceAdd_UnknownStage(t *testing.T) {
	binaryPath := getBinaryPath(t)
	doc := writeFile(t, "guidance.md", "Keep lessons short.")

	cmd := exec.Command(binaryPath, "guidance", "add", "--stage", "rendering", "--file", doc)
	output, err := cmd.CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(output), "unknown stage")
}

func TestHelp(t *testing.T) {
	binaryPath := getBinaryPath(t)

	output, err := exec.Command(binaryPath, "--help").CombinedOutput()

	assert.NoError(t, err)
	for _, sub := range []string{"serve", "run", "survey", "token", "guidance"} {
		assert.Contains(t, string(output), sub)
	}
}
