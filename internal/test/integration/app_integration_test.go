package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyrefactor/internal/core/app"
	"pyrefactor/internal/core/config"
	"pyrefactor/internal/transport/httpapi"
)

const baseConfig = `
[engine]
default_options = ["remove_dead_code"]

[server]
samples_db = ":memory:"
rate_limit = 1000

[observability]
log_level = "error"
`

type refactorBody struct {
	RequestID   string `json:"request_id"`
	Text        string `json:"refactored_text"`
	Success     bool   `json:"success"`
	Suggestions []struct {
		Category string `json:"category"`
		Line     int    `json:"line"`
	} `json:"suggestions"`
}

func post(t *testing.T, url string, body any) (int, refactorBody) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out refactorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestFullPipelineIntegration(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "pyrefactor.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(baseConfig), 0o644))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	a, err := app.New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	srv, err := httpapi.New(httpapi.Deps{Refactor: a, Health: a, Samples: a.OpenSamples}, httpapi.Options{
		Server:         cfg.Server,
		MetricsEnabled: cfg.MetricsEnabled(),
	})
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	src := "def f(x):\n    return x\n    print(\"unreachable\")\n\nfor i in range(3): print(i)\n"

	// Configured defaults apply when the request names no options.
	status, body := post(t, ts.URL+"/refactor", map[string]any{"code": src})
	require.Equal(t, http.StatusOK, status)
	assert.True(t, body.Success)
	assert.NotEmpty(t, body.RequestID)
	require.Len(t, body.Suggestions, 1)
	assert.Equal(t, "dead_code", body.Suggestions[0].Category)
	assert.Contains(t, body.Text, "for i in range(3):")

	// Samples run through the same engine.
	status, body = post(t, ts.URL+"/samples/loop_variable/refactor", map[string]any{})
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body.Suggestions)

	// A config edit on disk changes the defaults without a restart.
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	reloaded := make(chan struct{}, 1)
	w := config.NewWatcher(cfgPath, func(next *config.Config) {
		assert.NoError(t, a.Reload(next))
		reloaded <- struct{}{}
	})
	require.NoError(t, w.Start(ctx))
	t.Cleanup(w.Stop)

	updated := bytes.Replace([]byte(baseConfig), []byte(`["remove_dead_code"]`), []byte(`["rename_variables", "remove_dead_code"]`), 1)
	require.NoError(t, os.WriteFile(cfgPath, updated, 0o644))
	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}

	status, body = post(t, ts.URL+"/refactor", map[string]any{"code": src})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body.Text, "for index in range(3):")
	assert.NotContains(t, body.Text, "unreachable")

	// Health reflects the opened sample catalog.
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var health struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Components["samples"])
}
