package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/course-builder/internal/config"
	"github.com/jonathan/course-builder/internal/guidance"
	"github.com/jonathan/course-builder/internal/logging"
	"github.com/jonathan/course-builder/internal/server"
	"github.com/jonathan/course-builder/internal/store"
	"github.com/jonathan/course-builder/internal/types"
)

func TestNewStore(t *testing.T) {
	dir := t.TempDir()

	fs, ok := newStore(config.StoreConfig{Backend: config.StoreFile, Dir: dir}, nil).(*store.FileStore)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(fs.Path(store.Key{Kind: store.KindCurriculum, UserID: "u", Subject: "go"}), dir))

	_, ok = newStore(config.StoreConfig{Backend: config.StoreMemory}, nil).(*store.MemoryStore)
	assert.True(t, ok)
}

func TestNewGuidance(t *testing.T) {
	dir := t.TempDir()
	_, ok := newGuidance(config.GuidanceConfig{Dir: dir}, nil).(*guidance.DirLookup)
	assert.True(t, ok)

	lookup := newGuidance(config.GuidanceConfig{}, nil)
	fragments, err := lookup.LoadGuidance(context.Background(), "curriculum", "Go")
	require.NoError(t, err)
	assert.Empty(t, fragments)
}

func TestNewApp_RequiresAPIKey(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.APIKey = ""

	_, err := newApp(context.Background(), cfg, logging.Nop())
	assert.ErrorContains(t, err, "API key")
}

func TestLoadConfig_Verbose(t *testing.T) {
	path := writeFile(t, "course_agent.yaml", "log:\n  mode: dev\n  level: warn\nserver:\n  addr: \":9999\"\n")
	verbose = true
	t.Cleanup(func() { verbose = false })

	cfg, logger, err := loadConfigFrom(t, path)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestReadSurveyResult(t *testing.T) {
	good := writeFile(t, "good.json", `{"skill_level":"intermediate","topics":[{"topic":"channels","score":40}]}`)
	survey, err := readSurveyResult(good)
	require.NoError(t, err)
	assert.Equal(t, types.SkillIntermediate, survey.SkillLevel)
	assert.Len(t, survey.Topics, 1)

	_, err = readSurveyResult(writeFile(t, "bad.json", `{`))
	assert.ErrorContains(t, err, "failed to parse")

	_, err = readSurveyResult(writeFile(t, "invalid.json", `{"skill_level":"beginner","topics":[{"topic":"x","score":120}]}`))
	assert.ErrorContains(t, err, "invalid survey result")

	_, err = readSurveyResult("does-not-exist.json")
	assert.ErrorContains(t, err, "failed to read")
}

func TestTokenCommand(t *testing.T) {
	const secret = "cli-test-secret-0123456789"
	t.Setenv("JWT_SECRET", secret)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "--user-id", "alice"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, rootCmd.Execute())

	svc := server.NewJWTService(&config.JWTConfig{Secret: secret, ExpirationHours: config.DefaultJWTExpirationHours})
	claims, err := svc.ValidateToken(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID)
}

func TestTokenCommand_AuthDisabled(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	rootCmd.SetArgs([]string{"token", "--user-id", "alice"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	assert.ErrorContains(t, err, "auth is not configured")
}

// loadConfigFrom runs loadConfig against path, restoring the flag afterwards.
func loadConfigFrom(t *testing.T, path string) (*config.Config, *logging.Logger, error) {
	t.Helper()
	prev := configPath
	configPath = path
	t.Cleanup(func() { configPath = prev })
	return loadConfig()
}
