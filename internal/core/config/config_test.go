package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyrefactor/internal/core/errors"
	"pyrefactor/internal/engine/refactor"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pyrefactor.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[engine]
strict = true
timeout = "2s"
indent_width = 2
default_options = ["rename", "remove_dead_code"]

[rename]
exempt_names = ["i", "_*"]
exempt_lambda_params = false

[conditionals]
threshold = 3

[duplicates]
min_statements = 4
rewrite = false

[server]
address = "0.0.0.0:9000"
burst = 3

[watch]
debounce = "1s"
exclude = ["build/**"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Version)
	assert.True(t, cfg.Engine.Strict)
	assert.Equal(t, 2*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, 2, cfg.Engine.IndentWidth)
	assert.Equal(t, DefaultMaxSourceBytes, cfg.Engine.MaxSourceBytes)
	assert.Equal(t, []string{"i", "_*"}, cfg.Rename.ExemptNames)
	assert.Equal(t, 3, cfg.Conditionals.Threshold)
	assert.Equal(t, 4, cfg.Duplicates.MinStatements)
	assert.Equal(t, 25, cfg.Duplicates.MaxStatements)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Address)
	assert.Equal(t, 3, cfg.Server.Burst)
	assert.Equal(t, DefaultRateLimit, cfg.Server.RateLimit)
	assert.Equal(t, int64(2*DefaultMaxSourceBytes), cfg.Server.MaxBodyBytes)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
	assert.Equal(t, []string{"build/**"}, cfg.Watch.Exclude)
	assert.True(t, cfg.RespectGitignore())
	assert.True(t, cfg.MetricsEnabled())

	settings, err := cfg.Settings()
	require.NoError(t, err)
	assert.True(t, settings.Parse.Strict)
	assert.Equal(t, 2, settings.Print.IndentWidth)
	assert.Len(t, settings.Rename.ExemptNames, 2)
	assert.False(t, settings.Rename.ExemptLambdaParams)
	assert.False(t, settings.Duplicates.Rewrite)
	assert.True(t, settings.Methods.Rewrite)
	assert.Equal(t, 15, settings.Methods.MaxStatements)

	opts, err := cfg.DefaultOptions()
	require.NoError(t, err)
	assert.Equal(t, refactor.Options{RenameVariables: true, RemoveDeadCode: true}, opts)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	opts, err := cfg.DefaultOptions()
	require.NoError(t, err)
	assert.Equal(t, refactor.AllPasses(), opts)
	assert.Equal(t, DefaultAddress, cfg.Server.Address)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"version", "version = 3\n"},
		{"indent", "[engine]\nindent_width = 12\n"},
		{"unknown option", "[engine]\ndefault_options = [\"inline\"]\n"},
		{"bad glob", "[rename]\nexempt_names = [\"[a\"]\n"},
		{"threshold", "[conditionals]\nthreshold = -1\n"},
		{"duplicate bounds", "[duplicates]\nmin_statements = 5\nmax_statements = 4\n"},
		{"address", "[server]\naddress = \"nowhere\"\n"},
		{"sample ratio", "[observability]\nsample_ratio = 2.0\n"},
		{"log level", "[observability]\nlog_level = \"loud\"\n"},
		{"decode", "[engine\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.content)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeValidationError), err.Error())
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("PYREFACTOR_ENGINE_STRICT", "true")
	t.Setenv("PYREFACTOR_CONDITIONALS_THRESHOLD", "4")
	t.Setenv("PYREFACTOR_RENAME_EXEMPT_NAMES", "i, j ,")
	t.Setenv("PYREFACTOR_SERVER_RATE_LIMIT", "0.5")
	t.Setenv("PYREFACTOR_WATCH_RESPECT_GITIGNORE", "false")
	t.Setenv("PYREFACTOR_WATCH_DEBOUNCE", "not-a-duration")

	cfg, err := Parse("[conditionals]\nthreshold = 2\n")
	require.NoError(t, err)
	assert.True(t, cfg.Engine.Strict)
	assert.Equal(t, 4, cfg.Conditionals.Threshold)
	assert.Equal(t, []string{"i", "j"}, cfg.Rename.ExemptNames)
	assert.Equal(t, 0.5, cfg.Server.RateLimit)
	assert.False(t, cfg.RespectGitignore())
	assert.Equal(t, DefaultWatchDebounce, cfg.Watch.Debounce)
}

func TestLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Observability.LogLevel = "debug"
	assert.Equal(t, "DEBUG", cfg.LogLevel().String())
	cfg.Observability.LogLevel = "???"
	assert.Equal(t, "INFO", cfg.LogLevel().String())
}

func TestWatcherReloads(t *testing.T) {
	path := writeConfig(t, "[conditionals]\nthreshold = 2\n")
	reloaded := make(chan *Config, 4)
	w := NewWatcher(path, func(cfg *Config) { reloaded <- cfg })
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("[conditionals]\nthreshold = 5\n"), 0o644))
	select {
	case cfg := <-reloaded:
		assert.Equal(t, 5, cfg.Conditionals.Threshold)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestExampleConfigMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "..", "pyrefactor.example.toml"))
	require.NoError(t, err)
	def := Default()

	assert.Equal(t, def.Engine.MaxSourceBytes, cfg.Engine.MaxSourceBytes)
	assert.Equal(t, def.Engine.Timeout, cfg.Engine.Timeout)
	assert.Equal(t, def.Engine.IndentWidth, cfg.Engine.IndentWidth)
	assert.Equal(t, def.Duplicates, cfg.Duplicates)
	assert.Equal(t, def.DeadCode, cfg.DeadCode)
	assert.Equal(t, def.Methods, cfg.Methods)
	assert.Equal(t, def.Server, cfg.Server)
	assert.Equal(t, def.Observability, cfg.Observability)
	assert.Equal(t, def.Watch, cfg.Watch)

	want, err := def.Settings()
	require.NoError(t, err)
	got, err := cfg.Settings()
	require.NoError(t, err)
	assert.Equal(t, want.Conditional, got.Conditional)
	assert.Equal(t, want.Rename.ExemptLambdaParams, got.Rename.ExemptLambdaParams)
}
