package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const memoryConfig = `
[server]
samples_db = ":memory:"

[observability]
log_level = "error"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	cfg := writeFile(t, "pyrefactor.toml", memoryConfig)
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"-config", cfg}, args...), strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-version"}, strings.NewReader(""), &stdout, &stderr)
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "pyrefactor dev\n", stdout.String())
}

func TestRun_Stdin(t *testing.T) {
	code, out, errOut := runCLI(t, "for i in range(5): print(i)\n", "-options", "rename_variables", "-")
	require.Equal(t, exitOK, code, errOut)
	assert.Equal(t, "for index in range(5):\n    print(index)\n", out)
	assert.Contains(t, errOut, "<stdin>:1: [rename] i → index at line 1")
}

func TestRun_FileJSON(t *testing.T) {
	path := writeFile(t, "dead.py", "def f(x):\n    return x\n    print(\"unreachable\")\n")
	code, out, errOut := runCLI(t, "", "-json", "-options", "remove_dead_code", path)
	require.Equal(t, exitOK, code, errOut)

	var got struct {
		Path        string `json:"path"`
		RequestID   string `json:"request_id"`
		Text        string `json:"refactored_text"`
		Success     bool   `json:"success"`
		Suggestions []struct {
			Category string `json:"category"`
			Line     int    `json:"line"`
		} `json:"suggestions"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, path, got.Path)
	assert.NotEmpty(t, got.RequestID)
	assert.True(t, got.Success)
	assert.Equal(t, "def f(x):\n    return x\n", got.Text)
	require.Len(t, got.Suggestions, 1)
	assert.Equal(t, "dead_code", got.Suggestions[0].Category)
	assert.Equal(t, 3, got.Suggestions[0].Line)
}

func TestRun_ParseError(t *testing.T) {
	path := writeFile(t, "bad.py", "def f(:\n    pass\n")
	code, out, errOut := runCLI(t, "", path)
	assert.Equal(t, exitError, code)
	assert.Empty(t, out)
	assert.Contains(t, errOut, path+":1:")
}

func TestRun_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.py")
	code, _, errOut := runCLI(t, "", path)
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, path+": not found")
}

func TestRun_WriteBack(t *testing.T) {
	path := writeFile(t, "loop.py", "for i in range(5): print(i)\n")
	code, _, errOut := runCLI(t, "", "-w", "-options", "rename", path)
	require.Equal(t, exitOK, code, errOut)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "for index in range(5):\n    print(index)\n", string(data))
}

func TestRun_PreviewDoesNotWrite(t *testing.T) {
	src := "for i in range(5):\n    print(i)\n"
	path := writeFile(t, "loop.py", src)
	code, out, errOut := runCLI(t, "", "-w", "-preview", path)
	require.Equal(t, exitOK, code, errOut)
	assert.Equal(t, src, out)
	assert.Contains(t, errOut, "[rename]")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, src, string(data))
}

func TestRun_UsageErrors(t *testing.T) {
	code, _, errOut := runCLI(t, "", "-options", "inline_everything", "-")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, errOut, "unknown option")

	code, _, _ = runCLI(t, "")
	assert.Equal(t, exitUsage, code)

	var stdout, stderr bytes.Buffer
	code = run(context.Background(), []string{"-no-such-flag"}, strings.NewReader(""), &stdout, &stderr)
	assert.Equal(t, exitUsage, code)
}

func TestRun_BadConfig(t *testing.T) {
	cfg := writeFile(t, "bad.toml", "version = 9\n")
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", cfg, "-"}, strings.NewReader(""), &stdout, &stderr)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr.String(), "config:")
}

func TestRun_Samples(t *testing.T) {
	code, out, errOut := runCLI(t, "", "-list-samples")
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "unreachable_code")
	assert.Contains(t, out, "[remove_dead_code]")

	code, out, errOut = runCLI(t, "", "-sample", "unreachable_code")
	require.Equal(t, exitOK, code, errOut)
	assert.Equal(t, "def f(x):\n    return x\n", out)
	assert.Contains(t, errOut, "unreachable_code:3: [dead_code]")

	code, _, errOut = runCLI(t, "", "-sample", "nope")
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "nope: not found")
}

func TestResolveLogPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)
	assert.Equal(t, filepath.Join(dir, "pyrefactor", "pyrefactor.log"), resolveLogPath())
}

func TestRun_DirectoryMarkdownAndSARIF(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.py"), []byte("for i in range(5): print(i)\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.py"), []byte("def f(:\n"), 0o644))

	code, out, _ := runCLI(t, "", "-format", "markdown", "-options", "rename", dir)
	assert.Equal(t, exitError, code)
	assert.Contains(t, out, "# Refactoring Report")
	assert.Contains(t, out, "| Files | 2 |\n")
	assert.Contains(t, out, "### `b.py`\nParse error at 1:")

	code, out, _ = runCLI(t, "", "-format", "sarif", "-options", "rename", dir)
	assert.Equal(t, exitError, code)
	var doc struct {
		Runs []struct {
			Results []struct {
				RuleID string `json:"ruleId"`
			} `json:"results"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Runs, 1)
	require.Len(t, doc.Runs[0].Results, 2)
	assert.Equal(t, "PYR001", doc.Runs[0].Results[0].RuleID)
	assert.Equal(t, "PYR000", doc.Runs[0].Results[1].RuleID)
}

func TestRun_DirectoryWriteBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.py")
	require.NoError(t, os.WriteFile(path, []byte("for i in range(5): print(i)\n"), 0o644))

	code, out, errOut := runCLI(t, "", "-w", "-options", "rename", dir)
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "rename=1")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "for index in range(5):\n    print(index)\n", string(data))
}

func TestRun_UnknownFormat(t *testing.T) {
	code, _, errOut := runCLI(t, "", "-format", "xml", "-")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, errOut, `unknown format "xml"`)
}
