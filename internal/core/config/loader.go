package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"pyrefactor/internal/core/errors"
	"pyrefactor/internal/engine/conditional"
	"pyrefactor/internal/engine/deadcode"
	"pyrefactor/internal/engine/duplicate"
	"pyrefactor/internal/engine/extract"
)

const (
	DefaultAddress        = "127.0.0.1:8080"
	DefaultMaxSourceBytes = 1 << 20
	DefaultTimeout        = 10 * time.Second
	DefaultRateLimit      = 5.0
	DefaultBurst          = 10
	DefaultServiceName    = "pyrefactor"
	DefaultSamplesDB      = "pyrefactor-samples.db"
	DefaultWatchDebounce  = 300 * time.Millisecond
)

// Load reads path, applies environment overrides and defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read config"), errors.CtxPath, path)
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	return cfg, nil
}

// Parse decodes TOML text into a validated Config.
func Parse(text string) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(text, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "decode config")
	}
	ApplyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	ApplyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if cfg.Engine.MaxSourceBytes == 0 {
		cfg.Engine.MaxSourceBytes = DefaultMaxSourceBytes
	}
	if cfg.Engine.Timeout == 0 {
		cfg.Engine.Timeout = DefaultTimeout
	}
	if cfg.Engine.IndentWidth == 0 {
		cfg.Engine.IndentWidth = 4
	}

	if cfg.Rename.ExemptLambdaParams == nil {
		cfg.Rename.ExemptLambdaParams = boolPtr(true)
	}

	if cfg.Conditionals.Threshold == 0 {
		cfg.Conditionals.Threshold = conditional.DefaultThreshold
	}

	if cfg.Duplicates.MinStatements == 0 {
		cfg.Duplicates.MinStatements = duplicate.DefaultMinStatements
	}
	if cfg.Duplicates.MaxStatements == 0 {
		cfg.Duplicates.MaxStatements = duplicate.DefaultMaxStatements
	}
	if cfg.Duplicates.Rewrite == nil {
		cfg.Duplicates.Rewrite = boolPtr(true)
	}

	if cfg.DeadCode.MaxRounds == 0 {
		cfg.DeadCode.MaxRounds = deadcode.DefaultMaxRounds
	}

	if cfg.Methods.MaxStatements == 0 {
		cfg.Methods.MaxStatements = extract.DefaultMaxStatements
	}
	if cfg.Methods.MaxDepth == 0 {
		cfg.Methods.MaxDepth = extract.DefaultMaxDepth
	}
	if cfg.Methods.MinRun == 0 {
		cfg.Methods.MinRun = extract.DefaultMinRun
	}
	if cfg.Methods.MaxInputs == 0 {
		cfg.Methods.MaxInputs = extract.DefaultMaxInputs
	}
	if cfg.Methods.MaxOutputs == 0 {
		cfg.Methods.MaxOutputs = extract.DefaultMaxOutputs
	}
	if cfg.Methods.Rewrite == nil {
		cfg.Methods.Rewrite = boolPtr(true)
	}

	if strings.TrimSpace(cfg.Server.Address) == "" {
		cfg.Server.Address = DefaultAddress
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = DefaultRateLimit
	}
	if cfg.Server.Burst == 0 {
		cfg.Server.Burst = DefaultBurst
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = int64(cfg.Engine.MaxSourceBytes) * 2
	}
	if cfg.Server.SamplesDB == "" {
		cfg.Server.SamplesDB = DefaultSamplesDB
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 5 * time.Second
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = DefaultServiceName
	}
	if cfg.Observability.SampleRatio == 0 {
		cfg.Observability.SampleRatio = 1
	}
	if cfg.Observability.Metrics == nil {
		cfg.Observability.Metrics = boolPtr(true)
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = DefaultWatchDebounce
	}
	if cfg.Watch.RespectGitignore == nil {
		cfg.Watch.RespectGitignore = boolPtr(true)
	}
	if len(cfg.Watch.Exclude) == 0 {
		cfg.Watch.Exclude = []string{".git/**", "__pycache__/**", ".venv/**"}
	}
}
