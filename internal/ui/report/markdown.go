package report

import (
	"fmt"
	"strings"
	"time"

	"pyrefactor/internal/engine/suggest"
)

// MarkdownOptions controls the report header and layout.
type MarkdownOptions struct {
	ProjectName string
	ProjectRoot string
	Version     string
	GeneratedAt time.Time
	// CollapsibleSections folds per-file tables longer than ten rows.
	CollapsibleSections bool
}

// Markdown renders files as a Markdown report with YAML front matter.
func Markdown(files []FileReport, opts MarkdownOptions) string {
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now().UTC()
	}
	summary := Summarize(files)

	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("title: Refactoring Report\n")
	b.WriteString("project: " + nonEmpty(opts.ProjectName, "unknown") + "\n")
	b.WriteString("generated_at: " + opts.GeneratedAt.UTC().Format(time.RFC3339) + "\n")
	b.WriteString("version: " + nonEmpty(opts.Version, "unknown") + "\n")
	b.WriteString("---\n\n")

	b.WriteString("# Refactoring Report\n\n")
	b.WriteString("## Summary\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("| --- | --- |\n")
	fmt.Fprintf(&b, "| Files | %d |\n", summary.Files)
	fmt.Fprintf(&b, "| Parse Failures | %d |\n", summary.Failed)
	fmt.Fprintf(&b, "| Suggestions | %d |\n", summary.Suggestions)
	for _, c := range suggest.Categories {
		fmt.Fprintf(&b, "| %s | %d |\n", categoryTitle(c), summary.ByCategory[c])
	}
	b.WriteString("\n")

	b.WriteString("## Files\n")
	if len(files) == 0 {
		b.WriteString("No Python files found.\n\n")
		return b.String()
	}
	for _, f := range sortedFiles(files) {
		writeFile(&b, f, opts)
	}
	return b.String()
}

func writeFile(b *strings.Builder, f FileReport, opts MarkdownOptions) {
	fmt.Fprintf(b, "### `%s`\n", relPath(opts.ProjectRoot, f.Path))
	if pe := f.Result.Error; pe != nil {
		fmt.Fprintf(b, "Parse error at %d:%d: %s\n\n", pe.Line, pe.Column, escapeCell(pe.Message))
		return
	}
	if f.Err != nil {
		fmt.Fprintf(b, "Error: %s\n\n", escapeCell(f.Err.Error()))
		return
	}
	m := f.Result.Metrics
	fmt.Fprintf(b, "%d lines, %d functions, %d classes, max depth %d.\n\n", m.Lines, m.Functions, m.Classes, m.MaxDepth)
	if len(f.Result.Suggestions) == 0 {
		b.WriteString("No suggestions.\n\n")
		return
	}
	rows := make([]string, 0, len(f.Result.Suggestions))
	for _, s := range f.Result.Suggestions {
		rows = append(rows, fmt.Sprintf("| %d | %s | %s |\n", s.Line, s.Category, escapeCell(s.Message)))
	}
	writeTableWithCollapse(b, "Suggestions", opts.CollapsibleSections, len(rows) > 10,
		[]string{"| Line | Category | Message |\n", "| --- | --- | --- |\n"}, rows)
}

func writeTableWithCollapse(b *strings.Builder, summary string, collapsible, collapse bool, header, rows []string) {
	if collapsible && collapse {
		b.WriteString("<details>\n")
		b.WriteString("<summary>" + summary + "</summary>\n\n")
	}
	for _, line := range header {
		b.WriteString(line)
	}
	for _, line := range rows {
		b.WriteString(line)
	}
	b.WriteString("\n")
	if collapsible && collapse {
		b.WriteString("</details>\n\n")
	}
}

func categoryTitle(c suggest.Category) string {
	words := strings.Split(string(c), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
