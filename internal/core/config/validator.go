package config

import (
	"log/slog"
	"net"
	"strings"

	"github.com/gobwas/glob"

	"pyrefactor/internal/core/errors"
	"pyrefactor/internal/engine/refactor"
)

// Validate checks a defaulted configuration.
func Validate(cfg *Config) error {
	for _, check := range []func(*Config) error{
		validateVersion,
		validateEngine,
		validateRename,
		validatePasses,
		validateServer,
		validateObservability,
		validateWatch,
	} {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return errors.Newf(errors.CodeValidationError, format, args...)
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return invalid("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateEngine(cfg *Config) error {
	if cfg.Engine.MaxSourceBytes < 0 {
		return invalid("engine.max_source_bytes must be >= 0, got %d", cfg.Engine.MaxSourceBytes)
	}
	if cfg.Engine.Timeout < 0 {
		return invalid("engine.timeout must be >= 0, got %s", cfg.Engine.Timeout)
	}
	if cfg.Engine.IndentWidth < 1 || cfg.Engine.IndentWidth > 8 {
		return invalid("engine.indent_width must be between 1 and 8, got %d", cfg.Engine.IndentWidth)
	}
	if _, err := refactor.ParseOptions(cfg.Engine.DefaultOptions); err != nil {
		return errors.AddContext(err, errors.CtxOperation, "engine.default_options")
	}
	return nil
}

func validateRename(cfg *Config) error {
	for i, pattern := range cfg.Rename.ExemptNames {
		if strings.TrimSpace(pattern) == "" {
			return invalid("rename.exempt_names[%d] must not be empty", i)
		}
		if _, err := glob.Compile(pattern); err != nil {
			return invalid("rename.exempt_names[%d] %q is not a valid glob: %v", i, pattern, err)
		}
	}
	return nil
}

func validatePasses(cfg *Config) error {
	if cfg.Conditionals.Threshold < 1 {
		return invalid("conditionals.threshold must be >= 1, got %d", cfg.Conditionals.Threshold)
	}
	d := cfg.Duplicates
	if d.MinStatements < 2 {
		return invalid("duplicates.min_statements must be >= 2, got %d", d.MinStatements)
	}
	if d.MaxStatements < d.MinStatements {
		return invalid("duplicates.max_statements (%d) must be >= min_statements (%d)", d.MaxStatements, d.MinStatements)
	}
	if cfg.DeadCode.MaxRounds < 1 {
		return invalid("dead_code.max_rounds must be >= 1, got %d", cfg.DeadCode.MaxRounds)
	}
	m := cfg.Methods
	if m.MaxStatements < 1 || m.MaxDepth < 1 {
		return invalid("methods.max_statements and methods.max_depth must be >= 1")
	}
	if m.MinRun < 1 {
		return invalid("methods.min_run must be >= 1, got %d", m.MinRun)
	}
	if m.MaxInputs < 0 || m.MaxOutputs < 0 {
		return invalid("methods.max_inputs and methods.max_outputs must be >= 0")
	}
	return nil
}

func validateServer(cfg *Config) error {
	if _, _, err := net.SplitHostPort(cfg.Server.Address); err != nil {
		return invalid("server.address %q must be host:port: %v", cfg.Server.Address, err)
	}
	if cfg.Server.RateLimit < 0 {
		return invalid("server.rate_limit must be >= 0, got %v", cfg.Server.RateLimit)
	}
	if cfg.Server.Burst < 1 {
		return invalid("server.burst must be >= 1, got %d", cfg.Server.Burst)
	}
	if cfg.Server.MaxBodyBytes < 1 {
		return invalid("server.max_body_bytes must be >= 1, got %d", cfg.Server.MaxBodyBytes)
	}
	return nil
}

func validateObservability(cfg *Config) error {
	o := cfg.Observability
	if o.SampleRatio < 0 || o.SampleRatio > 1 {
		return invalid("observability.sample_ratio must be within [0,1], got %v", o.SampleRatio)
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(o.LogLevel)); err != nil {
		return invalid("observability.log_level %q is not a level", o.LogLevel)
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return invalid("watch.debounce must be >= 0, got %s", cfg.Watch.Debounce)
	}
	for i, pattern := range cfg.Watch.Exclude {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			return invalid("watch.exclude[%d] %q is not a valid glob: %v", i, pattern, err)
		}
	}
	return nil
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Observability.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
