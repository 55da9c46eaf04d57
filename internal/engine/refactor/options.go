package refactor

import (
	"sort"
	"strings"

	"pyrefactor/internal/core/errors"
)

// Options selects the passes to run.
type Options struct {
	RenameVariables      bool `json:"rename_variables"`
	SimplifyConditionals bool `json:"simplify_conditionals"`
	ExtractDuplicates    bool `json:"extract_duplicates"`
	ExtractMethods       bool `json:"extract_methods"`
	RemoveDeadCode       bool `json:"remove_dead_code"`
	// Preview reports suggestions but returns the source unchanged.
	Preview bool `json:"preview"`
}

// AllPasses enables every pass.
func AllPasses() Options {
	return Options{
		RenameVariables:      true,
		SimplifyConditionals: true,
		ExtractDuplicates:    true,
		ExtractMethods:       true,
		RemoveDeadCode:       true,
	}
}

var optionSetters = map[string]func(*Options, bool){
	"rename_variables":      func(o *Options, v bool) { o.RenameVariables = v },
	"rename":                func(o *Options, v bool) { o.RenameVariables = v },
	"simplify_conditionals": func(o *Options, v bool) { o.SimplifyConditionals = v },
	"extract_duplicates":    func(o *Options, v bool) { o.ExtractDuplicates = v },
	"extract_duplicate":     func(o *Options, v bool) { o.ExtractDuplicates = v },
	"extract_methods":       func(o *Options, v bool) { o.ExtractMethods = v },
	"extract_method":        func(o *Options, v bool) { o.ExtractMethods = v },
	"remove_dead_code":      func(o *Options, v bool) { o.RemoveDeadCode = v },
	"preview":               func(o *Options, v bool) { o.Preview = v },
}

// OptionNames lists every accepted option name, aliases included.
func OptionNames() []string {
	names := make([]string, 0, len(optionSetters))
	for name := range optionSetters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseOptions enables each named option. Names are case-insensitive and
// may use dashes in place of underscores.
func ParseOptions(names []string) (Options, error) {
	var o Options
	for _, raw := range names {
		name := normalizeOption(raw)
		if name == "" {
			continue
		}
		set, ok := optionSetters[name]
		if !ok {
			return Options{}, errors.Newf(errors.CodeValidationError, "unknown option %q", raw)
		}
		set(&o, true)
	}
	return o, nil
}

// OptionsFromMap applies explicit true/false values per option name.
func OptionsFromMap(values map[string]bool) (Options, error) {
	var o Options
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		set, ok := optionSetters[normalizeOption(k)]
		if !ok {
			return Options{}, errors.Newf(errors.CodeValidationError, "unknown option %q", k)
		}
		set(&o, values[k])
	}
	return o, nil
}

func normalizeOption(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
}

// Enabled returns the canonical names of the enabled passes in pass order.
func (o Options) Enabled() []string {
	var out []string
	add := func(on bool, name string) {
		if on {
			out = append(out, name)
		}
	}
	add(o.RenameVariables, "rename_variables")
	add(o.SimplifyConditionals, "simplify_conditionals")
	add(o.ExtractDuplicates, "extract_duplicates")
	add(o.RemoveDeadCode, "remove_dead_code")
	add(o.ExtractMethods, "extract_methods")
	add(o.Preview, "preview")
	return out
}
