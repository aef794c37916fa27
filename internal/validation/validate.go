package validation

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/eugenenazirov/envsmith/internal/environ"
	"github.com/eugenenazirov/envsmith/internal/schema"
)

const (
	msgRequiredMissing  = "required environment variable is missing"
	msgMissingNoDefault = "environment variable is missing and no default provided"
)

type settings struct {
	strict bool
	env    environ.Environment
	logger *zap.Logger
}

// Option customizes Validate.
type Option func(*settings)

// WithStrict makes a missing optional field without a default an error.
// Strict mode is on by default.
func WithStrict(strict bool) Option {
	return func(s *settings) {
		s.strict = strict
	}
}

// WithEnvironment sets the environment values are read from.
func WithEnvironment(env environ.Environment) Option {
	return func(s *settings) {
		if env != nil {
			s.env = env
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Validate reads every field of s from the environment, casts it, applies the
// transform and checks constraints. All failing fields are reported together
// in a *Error. A structurally invalid schema yields a *schema.Error.
func Validate(s schema.Schema, opts ...Option) (Result, error) {
	cfg := settings{strict: true, env: environ.OS(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	fields, err := schema.Normalize(s, cfg.logger)
	if err != nil {
		return nil, err
	}

	result := make(Result, len(fields))
	problems := make(map[string]string)

	for _, name := range fields.Names() {
		field := fields[name]

		raw, ok := cfg.env.LookupEnv(name)
		if !ok {
			switch {
			case field.Required:
				problems[name] = msgRequiredMissing
			case field.HasDefault():
				result[name] = field.Default
			case cfg.strict:
				problems[name] = msgMissingNoDefault
			}
			continue
		}

		value, msg := evaluate(field, raw)
		if msg != "" {
			problems[name] = msg
			cfg.logger.Debug("field failed validation", zap.String("field", name), zap.String("reason", msg))
			continue
		}
		result[name] = value
	}

	if len(problems) > 0 {
		return nil, &Error{Fields: problems}
	}

	cfg.logger.Info("validated environment variables", zap.Int("count", len(result)))
	return result, nil
}

// evaluate casts raw and runs the transform and constraints. User functions
// that panic are reported as field errors.
func evaluate(field *schema.Field, raw string) (value any, msg string) {
	defer func() {
		if r := recover(); r != nil {
			value, msg = nil, fmt.Sprintf("validation error: panic: %v", r)
		}
	}()

	value, err := Cast(raw, field.Type)
	if err != nil {
		return nil, fmt.Sprintf("type conversion failed: %v", err)
	}

	if field.Transform != nil {
		value, err = field.Transform(value)
		if err != nil {
			return nil, fmt.Sprintf("validation error: transform: %v", err)
		}
	}

	if msg := checkConstraints(field, value); msg != "" {
		return nil, msg
	}
	return value, ""
}
