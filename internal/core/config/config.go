// Package config loads pyrefactor settings from TOML with environment
// overrides.
package config

import (
	"time"

	"pyrefactor/internal/engine/conditional"
	"pyrefactor/internal/engine/deadcode"
	"pyrefactor/internal/engine/duplicate"
	"pyrefactor/internal/engine/extract"
	"pyrefactor/internal/engine/refactor"
	"pyrefactor/internal/engine/scope"
	"pyrefactor/internal/engine/syntax"
)

type Config struct {
	Version       int           `toml:"version"`
	Engine        Engine        `toml:"engine"`
	Rename        Rename        `toml:"rename"`
	Conditionals  Conditionals  `toml:"conditionals"`
	Duplicates    Duplicates    `toml:"duplicates"`
	DeadCode      DeadCode      `toml:"dead_code"`
	Methods       Methods       `toml:"methods"`
	Server        Server        `toml:"server"`
	Observability Observability `toml:"observability"`
	Watch         Watch         `toml:"watch"`
}

type Engine struct {
	MaxSourceBytes int           `toml:"max_source_bytes"`
	Strict         bool          `toml:"strict"`
	Timeout        time.Duration `toml:"timeout"`
	IndentWidth    int           `toml:"indent_width"`
	// DefaultOptions are the passes enabled when a request names none.
	DefaultOptions []string `toml:"default_options"`
}

type Rename struct {
	ExemptNames        []string `toml:"exempt_names"`
	ExemptLambdaParams *bool    `toml:"exempt_lambda_params"`
}

type Conditionals struct {
	Threshold int `toml:"threshold"`
}

type Duplicates struct {
	MinStatements int   `toml:"min_statements"`
	MaxStatements int   `toml:"max_statements"`
	Rewrite       *bool `toml:"rewrite"`
}

type DeadCode struct {
	MaxRounds int `toml:"max_rounds"`
}

type Methods struct {
	MaxStatements int   `toml:"max_statements"`
	MaxDepth      int   `toml:"max_depth"`
	MinRun        int   `toml:"min_run"`
	MaxInputs     int   `toml:"max_inputs"`
	MaxOutputs    int   `toml:"max_outputs"`
	Rewrite       *bool `toml:"rewrite"`
}

type Server struct {
	Address      string  `toml:"address"`
	RateLimit    float64 `toml:"rate_limit"`
	Burst        int     `toml:"burst"`
	MaxBodyBytes int64   `toml:"max_body_bytes"`
	SamplesDB    string  `toml:"samples_db"`
	// ReadTimeout bounds reading a request, headers included.
	ReadTimeout time.Duration `toml:"read_timeout"`
}

type Observability struct {
	OTLPEndpoint string  `toml:"otlp_endpoint"`
	OTLPInsecure bool    `toml:"otlp_insecure"`
	ServiceName  string  `toml:"service_name"`
	SampleRatio  float64 `toml:"sample_ratio"`
	Metrics      *bool   `toml:"metrics"`
	LogLevel     string  `toml:"log_level"`
}

type Watch struct {
	Debounce         time.Duration `toml:"debounce"`
	Exclude          []string      `toml:"exclude"`
	RespectGitignore *bool         `toml:"respect_gitignore"`
}

func boolValue(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

func boolPtr(v bool) *bool { return &v }

// MetricsEnabled reports whether /metrics should be served.
func (c *Config) MetricsEnabled() bool { return boolValue(c.Observability.Metrics, true) }

// RespectGitignore reports whether watch mode honors .gitignore files.
func (c *Config) RespectGitignore() bool { return boolValue(c.Watch.RespectGitignore, true) }

// Settings converts the loaded configuration into engine settings.
func (c *Config) Settings() (refactor.Settings, error) {
	policy, err := scope.NewPolicy(c.Rename.ExemptNames, boolValue(c.Rename.ExemptLambdaParams, true))
	if err != nil {
		return refactor.Settings{}, err
	}
	return refactor.Settings{
		Parse: syntax.ParseConfig{
			MaxSourceBytes: c.Engine.MaxSourceBytes,
			Strict:         c.Engine.Strict,
		},
		Print:       syntax.PrintConfig{IndentWidth: c.Engine.IndentWidth},
		Rename:      policy,
		Conditional: conditional.Options{Threshold: c.Conditionals.Threshold},
		Duplicates: duplicate.Options{
			MinStatements: c.Duplicates.MinStatements,
			MaxStatements: c.Duplicates.MaxStatements,
			Rewrite:       boolValue(c.Duplicates.Rewrite, true),
		},
		DeadCode: deadcode.Options{MaxRounds: c.DeadCode.MaxRounds},
		Methods: extract.Options{
			MaxStatements: c.Methods.MaxStatements,
			MaxDepth:      c.Methods.MaxDepth,
			MinRun:        c.Methods.MinRun,
			MaxInputs:     c.Methods.MaxInputs,
			MaxOutputs:    c.Methods.MaxOutputs,
			Rewrite:       boolValue(c.Methods.Rewrite, true),
		},
	}, nil
}

// DefaultOptions returns the passes to run when a request names none.
func (c *Config) DefaultOptions() (refactor.Options, error) {
	if len(c.Engine.DefaultOptions) == 0 {
		return refactor.AllPasses(), nil
	}
	return refactor.ParseOptions(c.Engine.DefaultOptions)
}
