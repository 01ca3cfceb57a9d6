// Package stage runs one generation stage: prompt, completion, extraction,
// schema check and quality gate, with a semantic retry loop that raises the
// sampling temperature after each rejected attempt.
package stage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/course-builder/internal/llm"
	"github.com/jonathan/course-builder/internal/logging"
	"github.com/jonathan/course-builder/internal/structured"
	"github.com/jonathan/course-builder/internal/types"
)

// Kind identifies a stage output.
type Kind string

const (
	KindSurvey        Kind = "survey"
	KindCurriculum    Kind = "curriculum"
	KindLessonPlans   Kind = "lesson_plans"
	KindLessonContent Kind = "lesson_content"
)

// MethodTag is recorded in the provenance of every generated artifact.
const MethodTag = "llm-staged-generation"

// Completer is the generation client as seen by the executor.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
	Model(tier llm.ModelTier) string
}

// Config holds retry and gate settings.
type Config struct {
	MaxAttempts     int     `mapstructure:"max_attempts" validate:"gte=1,lte=10"`
	BaseTemperature float32 `mapstructure:"base_temperature" validate:"gte=0,lte=1"`
	TemperatureStep float32 `mapstructure:"temperature_step" validate:"gte=0,lte=1"`

	LessonCount     int `mapstructure:"lesson_count" validate:"gte=1,lte=50"`
	MinQuestions    int `mapstructure:"min_questions" validate:"gte=1"`
	MaxQuestions    int `mapstructure:"max_questions" validate:"gtefield=MinQuestions"`
	MinContentChars int `mapstructure:"min_content_chars" validate:"gte=0"`
}

// MaxTemperature bounds the temperature reached by semantic retries.
const MaxTemperature float32 = 1.0

// DefaultConfig returns the default executor settings.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		BaseTemperature: 0.4,
		TemperatureStep: 0.1,
		LessonCount:     5,
		MinQuestions:    5,
		MaxQuestions:    15,
		MinContentChars: 500,
	}
}

// Input carries everything one stage needs. Only the fields for Kind are read.
type Input struct {
	Kind       Kind
	Subject    string
	Survey     *types.SurveyResult
	Curriculum *types.CurriculumScheme
	Plan       *types.LessonPlan
	Guidance   []string
}

// Artifact is an accepted stage output.
type Artifact struct {
	Kind Kind
	// Raw is the extracted JSON payload, or the prose body for text stages.
	Raw        string
	Value      any
	Provenance types.Provenance
}

// Executor runs stages against a Completer.
type Executor struct {
	client Completer
	cfg    Config
	logger *logging.Logger
	now    func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithClock replaces time.Now for provenance timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// New creates an Executor. Zero config fields take their defaults.
func New(client Completer, cfg Config, opts ...Option) *Executor {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.TemperatureStep <= 0 {
		cfg.TemperatureStep = def.TemperatureStep
	}
	if cfg.LessonCount <= 0 {
		cfg.LessonCount = def.LessonCount
	}
	if cfg.MinQuestions <= 0 {
		cfg.MinQuestions = def.MinQuestions
	}
	if cfg.MaxQuestions < cfg.MinQuestions {
		cfg.MaxQuestions = max(def.MaxQuestions, cfg.MinQuestions)
	}
	e := &Executor{
		client: client,
		cfg:    cfg,
		logger: logging.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration.
func (e *Executor) Config() Config {
	return e.cfg
}

// RunStage generates, checks and returns the artifact for in.Kind.
//
// Parse failures and quality gate rejections are retried up to MaxAttempts
// with the temperature raised by TemperatureStep each time. Errors from the
// generation client are returned immediately.
func (e *Executor) RunStage(ctx context.Context, in Input) (*Artifact, error) {
	spec, ok := kindSpecs[in.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown stage kind %q", in.Kind)
	}
	if err := spec.check(in); err != nil {
		return nil, err
	}

	prompt, err := spec.prompt(e.cfg, in)
	if err != nil {
		return nil, fmt.Errorf("%s prompt: %w", in.Kind, err)
	}

	log := e.logger.With("stage", string(in.Kind), "subject", in.Subject)
	temperature := min(e.cfg.BaseTemperature, MaxTemperature)
	var failures []error

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := e.client.Complete(ctx, llm.Request{
			Prompt:          prompt,
			Tier:            spec.tier,
			Temperature:     temperature,
			MaxOutputTokens: spec.maxTokens,
			JSON:            spec.json,
		})
		if err != nil {
			return nil, fmt.Errorf("%s stage: %w", in.Kind, err)
		}

		artifact, err := spec.accept(e.cfg, in, text)
		if err == nil {
			artifact.Kind = in.Kind
			artifact.Provenance = types.Provenance{
				GeneratedAt: e.now().UTC(),
				Method:      MethodTag,
				Model:       e.client.Model(spec.tier),
				Attempts:    attempt,
				Temperature: temperature,
			}
			setProvenance(artifact.Value, &artifact.Provenance)
			if attempt > 1 {
				log.Info("stage accepted after semantic retry", "attempts", attempt)
			}
			return artifact, nil
		}

		if !retryable(err) {
			return nil, fmt.Errorf("%s stage: %w", in.Kind, err)
		}
		failures = append(failures, err)
		log.Warn("stage output rejected",
			"attempt", attempt,
			"max_attempts", e.cfg.MaxAttempts,
			"temperature", temperature,
			"error", err.Error(),
		)
		temperature = min(temperature+e.cfg.TemperatureStep, MaxTemperature)
	}

	return nil, &GenerationFailed{
		Kind:     in.Kind,
		Attempts: e.cfg.MaxAttempts,
		Errors:   failures,
	}
}

func retryable(err error) bool {
	var pe *structured.ParseError
	var qe *QualityGateError
	return errors.As(err, &pe) || errors.As(err, &qe)
}

func setProvenance(v any, p *types.Provenance) {
	switch a := v.(type) {
	case *types.Survey:
		a.Provenance = p
	case *types.CurriculumScheme:
		a.Provenance = p
	case *types.LessonPlanSet:
		a.Provenance = p
	case *types.LessonContent:
		a.Provenance = p
	}
}
