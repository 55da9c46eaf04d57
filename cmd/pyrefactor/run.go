package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"pyrefactor/internal/core/app"
	"pyrefactor/internal/core/config"
	"pyrefactor/internal/core/errors"
	"pyrefactor/internal/core/ports"
	"pyrefactor/internal/engine/refactor"
	"pyrefactor/internal/engine/suggest"
	"pyrefactor/internal/shared/observability"
	"pyrefactor/internal/shared/util"
	"pyrefactor/internal/transport/httpapi"
	"pyrefactor/internal/ui/report"
	"pyrefactor/internal/ui/tui"
)

const defaultConfigPath = "./pyrefactor.toml"

const (
	formatText     = "text"
	formatJSON     = "json"
	formatMarkdown = "markdown"
	formatSARIF    = "sarif"
)

var errUsage = errors.New(errors.CodeValidationError, "usage")

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

type cliFlags struct {
	configPath  string
	options     string
	jsonOut     bool
	format      string
	write       bool
	preview     bool
	serve       bool
	watch       bool
	ui          bool
	sample      string
	listSamples bool
	verbose     bool
	version     bool
}

func parseFlags(args []string, stderr io.Writer) (cliFlags, []string, error) {
	var f cliFlags
	fs := flag.NewFlagSet("pyrefactor", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configPath, "config", "", "Path to config file (default ./pyrefactor.toml when present)")
	fs.StringVar(&f.options, "options", "", "Comma-separated passes: "+strings.Join(refactor.OptionNames(), ", "))
	fs.BoolVar(&f.jsonOut, "json", false, "Shorthand for -format json")
	fs.StringVar(&f.format, "format", formatText, "Output format: text, json, markdown or sarif")
	fs.BoolVar(&f.write, "w", false, "Write refactored code back to the file")
	fs.BoolVar(&f.preview, "preview", false, "Report suggestions without changing the code")
	fs.BoolVar(&f.serve, "serve", false, "Start the HTTP API")
	fs.BoolVar(&f.watch, "watch", false, "Re-run when the file or directory changes")
	fs.BoolVar(&f.ui, "ui", false, "Open the terminal preview")
	fs.StringVar(&f.sample, "sample", "", "Refactor a sample from the catalog")
	fs.BoolVar(&f.listSamples, "list-samples", false, "List the sample catalog")
	fs.BoolVar(&f.verbose, "verbose", false, "Enable debug logging")
	fs.BoolVar(&f.version, "version", false, "Print version and exit")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: pyrefactor [flags] file.py|dir|-")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return f, nil, err
	}
	f.format = strings.ToLower(strings.TrimSpace(f.format))
	if f.jsonOut {
		f.format = formatJSON
	}
	switch f.format {
	case formatText, formatJSON, formatMarkdown, formatSARIF:
	default:
		fmt.Fprintf(stderr, "unknown format %q\n", f.format)
		return f, nil, errUsage
	}
	f.jsonOut = f.format == formatJSON
	return f, fs.Args(), nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	f, rest, err := parseFlags(args, stderr)
	if err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		return exitUsage
	}
	if f.version {
		fmt.Fprintf(stdout, "pyrefactor %s\n", app.Version)
		return exitOK
	}

	cfg, err := loadConfig(f.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitError
	}
	level := cfg.LogLevel()
	if f.verbose {
		level = slog.LevelDebug
	}
	logOutput := stderr
	if f.ui {
		// The TUI owns the terminal.
		if out, closeLog := openLogFile(stderr); out != nil {
			logOutput = out
			defer closeLog()
		} else {
			logOutput = io.Discard
		}
	}
	logger := slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		Endpoint:    cfg.Observability.OTLPEndpoint,
		Insecure:    cfg.Observability.OTLPInsecure,
		ServiceName: cfg.Observability.ServiceName,
		SampleRatio: cfg.Observability.SampleRatio,
	})
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	} else {
		defer func() { _ = shutdown(context.Background()) }()
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "init: %v\n", err)
		return exitError
	}
	defer a.Close(context.Background())

	opts, err := selectOptions(f, cfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	if (f.serve || f.watch || f.ui) && f.configPath != "" {
		stopReload := watchConfig(ctx, f.configPath, a, logger)
		defer stopReload()
	}

	switch {
	case f.serve:
		return serve(ctx, a, stderr)
	case f.listSamples:
		return listSamples(ctx, a, stdout, stderr)
	case f.sample != "":
		var names []string
		if opts != nil {
			names = opts.Enabled()
		}
		resp, err := a.RefactorSample(ctx, f.sample, names, "cli")
		if f.batchFormat() {
			return renderBatch([]app.FileResult{{Path: f.sample, Response: resp, Err: err}}, "", f, stdout, stderr)
		}
		return printResult(resp, err, f, f.sample, stdout, stderr)
	}

	if len(rest) != 1 {
		fmt.Fprintln(stderr, "usage: pyrefactor [flags] file.py|dir|-")
		return exitUsage
	}
	target := rest[0]

	switch {
	case f.ui:
		if target == "-" {
			fmt.Fprintln(stderr, "-ui needs a file path")
			return exitUsage
		}
		if err := tui.Run(ctx, a, target, tui.Options{Refactor: opts, Watch: f.watch, AllowWrite: true}); err != nil {
			fmt.Fprintf(stderr, "ui: %v\n", err)
			return exitError
		}
		return exitOK
	case f.watch:
		return watch(ctx, a, target, opts, f, stdout, stderr)
	case target == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			fmt.Fprintf(stderr, "read stdin: %v\n", err)
			return exitError
		}
		resp, err := a.Refactor(ctx, ports.RefactorRequest{Source: string(data), Options: opts, Transport: "cli"})
		if f.batchFormat() {
			return renderBatch([]app.FileResult{{Path: "<stdin>", Response: resp, Err: err}}, "", f, stdout, stderr)
		}
		return printResult(resp, err, f, "<stdin>", stdout, stderr)
	case isDir(target):
		results, err := a.RefactorTree(ctx, target, opts, "cli")
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", target, err)
			return exitError
		}
		code := renderBatch(results, target, f, stdout, stderr)
		if f.write && !f.preview {
			for _, r := range results {
				if r.Err == nil && writeBack(r.Path, r.Response, stderr) != nil {
					code = exitError
				}
			}
		}
		return code
	default:
		resp, err := a.RefactorFile(ctx, target, opts, "cli")
		var code int
		if f.batchFormat() {
			code = renderBatch([]app.FileResult{{Path: target, Response: resp, Err: err}}, "", f, stdout, stderr)
		} else {
			code = printResult(resp, err, f, target, stdout, stderr)
		}
		if err == nil && f.write && !f.preview && writeBack(target, resp, stderr) != nil {
			return exitError
		}
		return code
	}
}

func (f cliFlags) batchFormat() bool {
	return f.format == formatMarkdown || f.format == formatSARIF
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func writeBack(path string, resp ports.RefactorResponse, stderr io.Writer) error {
	if err := util.WriteFileAtomic(path, []byte(resp.Result.RefactoredText), 0o644); err != nil {
		fmt.Fprintf(stderr, "write %s: %v\n", path, err)
		return err
	}
	return nil
}

// renderBatch prints results in the selected format and returns exitError
// when any file failed.
func renderBatch(results []app.FileResult, root string, f cliFlags, stdout, stderr io.Writer) int {
	code := exitOK
	files := make([]report.FileReport, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			code = exitError
		}
		files = append(files, report.FileReport{
			Path:      r.Path,
			RequestID: r.Response.RequestID,
			Result:    r.Response.Result,
			Err:       r.Err,
		})
	}

	switch f.format {
	case formatMarkdown:
		fmt.Fprint(stdout, report.Markdown(files, report.MarkdownOptions{
			ProjectName:         projectName(root),
			ProjectRoot:         root,
			Version:             app.Version,
			CollapsibleSections: true,
		}))
	case formatSARIF:
		data, err := report.SARIF(root, app.Version, files)
		if err != nil {
			fmt.Fprintf(stderr, "encode: %v\n", err)
			return exitError
		}
		fmt.Fprintln(stdout, string(data))
	case formatJSON:
		out := make([]jsonReport, 0, len(results))
		for _, r := range results {
			out = append(out, jsonReport{Path: r.Path, RequestID: r.Response.RequestID, Result: r.Response.Result})
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(stderr, "encode: %v\n", err)
			return exitError
		}
	default:
		for _, r := range results {
			printSummary(r, stdout, stderr)
		}
	}
	return code
}

func projectName(root string) string {
	if root == "" {
		return ""
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return filepath.Base(root)
	}
	return filepath.Base(abs)
}

func openLogFile(stderr io.Writer) (io.Writer, func()) {
	logPath := resolveLogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
		fmt.Fprintf(stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		return nil, nil
	}
	if fi, err := os.Lstat(logPath); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		fmt.Fprintf(stderr, "warning: refusing to write logs to symlink path %s\n", logPath)
		return nil, nil
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		fmt.Fprintf(stderr, "warning: failed to open log file %s: %v\n", logPath, err)
		return nil, nil
	}
	return file, func() { _ = file.Close() }
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "pyrefactor", "pyrefactor.log")
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "pyrefactor", "pyrefactor.log")
	}
	return "pyrefactor.log"
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return config.Load(defaultConfigPath)
	}
	return config.Default(), nil
}

// selectOptions returns nil when neither -options nor -preview is set so
// the configured defaults apply.
func selectOptions(f cliFlags, cfg *config.Config) (*refactor.Options, error) {
	if f.options == "" && !f.preview {
		return nil, nil
	}
	var (
		opts refactor.Options
		err  error
	)
	if f.options == "" {
		opts, err = cfg.DefaultOptions()
	} else {
		opts, err = refactor.ParseOptions(strings.Split(f.options, ","))
	}
	if err != nil {
		return nil, err
	}
	if f.preview {
		opts.Preview = true
	}
	return &opts, nil
}

func watchConfig(ctx context.Context, path string, a *app.App, logger *slog.Logger) func() {
	w := config.NewWatcher(path, func(cfg *config.Config) {
		if err := a.Reload(cfg); err != nil {
			logger.Warn("config rejected", "error", err)
		}
	})
	if err := w.Start(ctx); err != nil {
		logger.Warn("config reload disabled", "error", err)
		return func() {}
	}
	return w.Stop
}

func serve(ctx context.Context, a *app.App, stderr io.Writer) int {
	cfg := a.Config()
	srv, err := httpapi.New(httpapi.Deps{
		Refactor: a,
		Health:   a,
		Samples:  a.OpenSamples,
	}, httpapi.Options{
		Server:         cfg.Server,
		MetricsEnabled: cfg.MetricsEnabled(),
	})
	if err != nil {
		fmt.Fprintf(stderr, "serve: %v\n", err)
		return exitError
	}
	defer srv.Close()
	if err := srv.ListenAndServe(ctx); err != nil {
		fmt.Fprintf(stderr, "serve: %v\n", err)
		return exitError
	}
	return exitOK
}

func listSamples(ctx context.Context, a *app.App, stdout, stderr io.Writer) int {
	catalog, err := a.OpenSamples(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "samples: %v\n", err)
		return exitError
	}
	list, err := catalog.List(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "samples: %v\n", err)
		return exitError
	}
	for _, s := range list {
		fmt.Fprintf(stdout, "%-22s %-45s [%s]\n", s.Name, s.Description, strings.Join(s.Options, ","))
	}
	return exitOK
}

func watch(ctx context.Context, a *app.App, target string, opts *refactor.Options, f cliFlags, stdout, stderr io.Writer) int {
	err := a.Watch(ctx, filepath.Clean(target), opts, func(r app.FileResult) {
		if f.jsonOut {
			printResult(r.Response, r.Err, f, r.Path, stdout, stderr)
			return
		}
		printSummary(r, stdout, stderr)
	})
	if err != nil {
		fmt.Fprintf(stderr, "watch: %v\n", err)
		return exitError
	}
	return exitOK
}

func printSummary(r app.FileResult, stdout, stderr io.Writer) {
	if r.Err != nil {
		printError(r.Path, r.Response, r.Err, stderr)
		return
	}
	counts := suggest.CountByCategory(r.Response.Result.Suggestions)
	parts := make([]string, 0, len(counts))
	for _, c := range suggest.Categories {
		if n := counts[c]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", c, n))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "clean")
	}
	fmt.Fprintf(stdout, "%s: %s\n", r.Path, strings.Join(parts, " "))
	for _, s := range r.Response.Result.Suggestions {
		fmt.Fprintf(stdout, "  %s:%d: [%s] %s\n", r.Path, s.Line, s.Category, s.Message)
	}
}

type jsonReport struct {
	Path      string `json:"path"`
	RequestID string `json:"request_id"`
	refactor.Result
}

func printResult(resp ports.RefactorResponse, err error, f cliFlags, name string, stdout, stderr io.Writer) int {
	if f.jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		out := jsonReport{Path: name, RequestID: resp.RequestID, Result: resp.Result}
		if encErr := enc.Encode(out); encErr != nil {
			fmt.Fprintf(stderr, "encode: %v\n", encErr)
			return exitError
		}
		if err != nil {
			if resp.Result.Error == nil {
				printError(name, resp, err, stderr)
			}
			return exitError
		}
		return exitOK
	}
	if err != nil {
		printError(name, resp, err, stderr)
		return exitError
	}
	fmt.Fprint(stdout, resp.Result.RefactoredText)
	for _, s := range resp.Result.Suggestions {
		fmt.Fprintf(stderr, "%s:%d: [%s] %s\n", name, s.Line, s.Category, s.Message)
	}
	return exitOK
}

func printError(name string, resp ports.RefactorResponse, err error, stderr io.Writer) {
	if pe := resp.Result.Error; pe != nil {
		fmt.Fprintf(stderr, "%s:%d:%d: %s\n", name, pe.Line, pe.Column, pe.Message)
		return
	}
	if errors.IsCode(err, errors.CodeNotFound) {
		fmt.Fprintf(stderr, "%s: not found\n", name)
		return
	}
	fmt.Fprintf(stderr, "%s: %v\n", name, err)
}
