// Package report renders refactoring results for a batch of files as
// Markdown or SARIF.
package report

import (
	"path/filepath"
	"sort"
	"strings"

	"pyrefactor/internal/engine/refactor"
	"pyrefactor/internal/engine/suggest"
)

// FileReport is the outcome for one file.
type FileReport struct {
	Path      string
	RequestID string
	Result    refactor.Result
	Err       error
}

// Failed reports whether the file produced no refactored text.
func (f FileReport) Failed() bool {
	return f.Err != nil || !f.Result.Success
}

// Summary aggregates a batch.
type Summary struct {
	Files       int
	Failed      int
	Suggestions int
	ByCategory  map[suggest.Category]int
}

// Summarize counts files, failures and suggestions per category.
func Summarize(files []FileReport) Summary {
	s := Summary{Files: len(files), ByCategory: make(map[suggest.Category]int)}
	for _, f := range files {
		if f.Failed() {
			s.Failed++
		}
		for c, n := range suggest.CountByCategory(f.Result.Suggestions) {
			s.ByCategory[c] += n
			s.Suggestions += n
		}
	}
	return s
}

func sortedFiles(files []FileReport) []FileReport {
	out := append([]FileReport(nil), files...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func relPath(root, path string) string {
	root = strings.TrimSpace(root)
	path = strings.TrimSpace(path)
	if root == "" || path == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func nonEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
