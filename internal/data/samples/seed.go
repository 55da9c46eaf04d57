package samples

import (
	"embed"
	"strings"
)

//go:embed seeds/*.py
var seedFS embed.FS

var builtins = []struct {
	name        string
	description string
	options     []string
}{
	{"complex_conditional", "compound condition lifted into a named variable", []string{"simplify_conditionals"}},
	{"loop_variable", "single-letter loop counter renamed", []string{"rename_variables"}},
	{"duplicate_blocks", "repeated statements shared by two functions", []string{"extract_duplicates"}},
	{"unreachable_code", "statements after a return", []string{"remove_dead_code"}},
	{"long_function", "function long enough to split", []string{"extract_methods", "rename_variables"}},
	{"syntax_error", "input the parser rejects", []string{"rename_variables"}},
}

// Builtins returns the catalog shipped with the binary.
func Builtins() []Sample {
	out := make([]Sample, 0, len(builtins))
	for _, b := range builtins {
		data, err := seedFS.ReadFile("seeds/" + b.name + ".py")
		if err != nil {
			panic(err)
		}
		out = append(out, Sample{
			Name:        b.name,
			Description: b.description,
			Source:      string(data),
			Options:     append([]string(nil), b.options...),
			Builtin:     true,
		})
	}
	return out
}

func joinOptions(opts []string) string { return strings.Join(opts, ",") }

func splitOptions(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}
