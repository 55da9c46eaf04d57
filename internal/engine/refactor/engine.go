// Package refactor runs the enabled passes over one parsed source file and
// prints the result.
package refactor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pyrefactor/internal/core/errors"
	"pyrefactor/internal/engine/conditional"
	"pyrefactor/internal/engine/deadcode"
	"pyrefactor/internal/engine/duplicate"
	"pyrefactor/internal/engine/extract"
	"pyrefactor/internal/engine/rename"
	"pyrefactor/internal/engine/scope"
	"pyrefactor/internal/engine/suggest"
	"pyrefactor/internal/engine/syntax"
	"pyrefactor/internal/shared/observability"
)

// Settings carries per-engine tuning. The zero value uses the defaults of
// every pass.
type Settings struct {
	Parse       syntax.ParseConfig
	Print       syntax.PrintConfig
	Rename      scope.Policy
	Conditional conditional.Options
	Duplicates  duplicate.Options
	DeadCode    deadcode.Options
	Methods     extract.Options
	// Pool overrides the shared parser pool.
	Pool   *syntax.ParserPool
	Logger *slog.Logger
}

// DefaultSettings matches the documented defaults.
func DefaultSettings() Settings {
	policy, _ := scope.NewPolicy(nil, true)
	return Settings{
		Print:       syntax.PrintConfig{IndentWidth: 4},
		Rename:      policy,
		Conditional: conditional.Options{Threshold: conditional.DefaultThreshold},
		Duplicates: duplicate.Options{
			MinStatements: duplicate.DefaultMinStatements,
			MaxStatements: duplicate.DefaultMaxStatements,
			Rewrite:       true,
		},
		DeadCode: deadcode.Options{MaxRounds: deadcode.DefaultMaxRounds},
		Methods: extract.Options{
			MaxStatements: extract.DefaultMaxStatements,
			MaxDepth:      extract.DefaultMaxDepth,
			MinRun:        extract.DefaultMinRun,
			MaxInputs:     extract.DefaultMaxInputs,
			MaxOutputs:    extract.DefaultMaxOutputs,
			Rewrite:       true,
		},
	}
}

// Request is one refactoring job.
type Request struct {
	Source  string
	Options Options
}

// Result is the outcome of a request. On a parse failure Success is false,
// Error is set and RefactoredText is empty.
type Result struct {
	RefactoredText string               `json:"refactored_text,omitempty"`
	Suggestions    []suggest.Suggestion `json:"suggestions"`
	Success        bool                 `json:"success"`
	Error          *syntax.ParseError   `json:"error,omitempty"`
	Metrics        Metrics              `json:"metrics"`
	// Trace lists the states visited.
	Trace []State `json:"-"`
}

// Engine runs requests with fixed settings. It is safe for concurrent use.
type Engine struct {
	settings Settings
	logger   *slog.Logger
}

// New returns an engine for settings.
func New(settings Settings) *Engine {
	logger := settings.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{settings: settings, logger: logger}
}

// Run is a one-shot helper around New(settings).Run.
func Run(ctx context.Context, req Request, settings Settings) (Result, error) {
	return New(settings).Run(ctx, req)
}

type pass struct {
	state   State
	name    string
	enabled func(Options) bool
	run     func(t *syntax.Tree) []suggest.Suggestion
}

func (e *Engine) passes() []pass {
	s := e.settings
	renameOpts := rename.Options{Policy: s.Rename, Logger: e.logger}
	condOpts := s.Conditional
	condOpts.Logger = e.logger
	dupOpts := s.Duplicates
	dupOpts.Logger = e.logger
	deadOpts := s.DeadCode
	deadOpts.Logger = e.logger
	methodOpts := s.Methods
	methodOpts.Logger = e.logger

	return []pass{
		{StateRenamePass, "rename", func(o Options) bool { return o.RenameVariables },
			func(t *syntax.Tree) []suggest.Suggestion { return rename.Run(t, renameOpts) }},
		{StateConditionalPass, "simplify_conditionals", func(o Options) bool { return o.SimplifyConditionals },
			func(t *syntax.Tree) []suggest.Suggestion { return conditional.Run(t, condOpts) }},
		{StateDuplicatePass, "extract_duplicates", func(o Options) bool { return o.ExtractDuplicates },
			func(t *syntax.Tree) []suggest.Suggestion { return duplicate.Run(t, dupOpts) }},
		{StateDeadCodePass, "remove_dead_code", func(o Options) bool { return o.RemoveDeadCode },
			func(t *syntax.Tree) []suggest.Suggestion { return deadcode.Run(t, deadOpts) }},
		{StateExtractPass, "extract_methods", func(o Options) bool { return o.ExtractMethods },
			func(t *syntax.Tree) []suggest.Suggestion { return extract.Run(t, methodOpts) }},
	}
}

// Run parses req.Source, applies the enabled passes in order and prints
// the final tree. A parse failure yields a Result with Error set together
// with a PARSE_ERROR domain error.
func (e *Engine) Run(ctx context.Context, req Request) (Result, error) {
	ctx, span := observability.Tracer.Start(ctx, "refactor.Run", trace.WithAttributes(
		attribute.Int("source.bytes", len(req.Source)),
		attribute.StringSlice("options", req.Options.Enabled()),
	))
	defer span.End()

	m := newMachine()
	result := Result{Suggestions: []suggest.Suggestion{}}
	fail := func(err error) (Result, error) {
		_ = m.advance(StateFailed)
		result.Trace = m.trace
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	observability.SourceBytes.Observe(float64(len(req.Source)))
	start := time.Now()
	tree, err := e.parse(req.Source)
	if err != nil {
		observability.ParsingDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		pe, ok := err.(*syntax.ParseError)
		if !ok {
			pe = &syntax.ParseError{Line: 1, Column: 1, Message: err.Error()}
		}
		result.Error = pe
		return fail(errors.Wrap(pe, errors.CodeParse, "parse source"))
	}
	observability.ParsingDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	if err := m.advance(StateParsed); err != nil {
		return fail(err)
	}
	original := tree
	result.Metrics = Measure(tree, req.Source)

	for _, p := range e.passes() {
		if err := ctx.Err(); err != nil {
			return fail(errors.Wrap(err, errors.CodeCanceled, "refactor canceled"))
		}
		if err := m.advance(p.state); err != nil {
			return fail(err)
		}
		if !p.enabled(req.Options) {
			continue
		}
		var out []suggest.Suggestion
		tree, out = e.runPass(ctx, p, tree)
		for _, s := range out {
			observability.SuggestionsTotal.WithLabelValues(string(s.Category)).Inc()
		}
		result.Suggestions = append(result.Suggestions, out...)
	}

	if err := m.advance(StatePrinted); err != nil {
		return fail(err)
	}
	printed := tree
	if req.Options.Preview {
		printed = original
	}
	result.RefactoredText = syntax.PrintWith(printed, e.settings.Print)
	if err := m.advance(StateDone); err != nil {
		return fail(err)
	}
	result.Success = true
	result.Trace = m.trace
	span.SetAttributes(attribute.Int("suggestions", len(result.Suggestions)))
	return result, nil
}

func (e *Engine) parse(source string) (*syntax.Tree, error) {
	if e.settings.Pool != nil {
		return syntax.ParseWithPool(e.settings.Pool, []byte(source), e.settings.Parse)
	}
	return syntax.Parse([]byte(source), e.settings.Parse)
}

// runPass applies p to a copy of tree. A pass that panics leaves the
// input tree untouched and contributes no suggestions.
func (e *Engine) runPass(ctx context.Context, p pass, tree *syntax.Tree) (*syntax.Tree, []suggest.Suggestion) {
	_, span := observability.Tracer.Start(ctx, "refactor."+p.name)
	defer span.End()

	start := time.Now()
	work := tree.Copy()
	out, err := guard(func() []suggest.Suggestion { return p.run(work) })
	observability.PassDuration.WithLabelValues(p.name).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.PassFailuresTotal.WithLabelValues(p.name).Inc()
		err = errors.AddContext(err, errors.CtxPass, p.name)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn("pass abandoned", "pass", p.name, "error", err)
		return tree, nil
	}
	span.SetAttributes(attribute.Int("suggestions", len(out)))
	e.logger.Debug("pass finished", "pass", p.name, "suggestions", len(out), "duration", time.Since(start))
	return work, out
}

func guard(fn func() []suggest.Suggestion) (out []suggest.Suggestion, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.CodeInternal, fmt.Sprint(r))
		}
	}()
	return fn(), nil
}
