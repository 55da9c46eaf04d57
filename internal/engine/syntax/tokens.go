package syntax

import (
	"strings"
	"unicode"
)

// Identifiers returns every identifier-like token in text, in order of
// appearance and without duplicates. String contents are scanned too, so
// the result over-approximates the names opaque text can reference.
func Identifiers(text string) []string {
	var out []string
	seen := make(map[string]bool)
	runes := []rune(text)
	for i := 0; i < len(runes); {
		r := runes[i]
		if !isIdentStart(r) {
			if unicode.IsDigit(r) {
				for i < len(runes) && isIdentPart(runes[i]) {
					i++
				}
				continue
			}
			i++
			continue
		}
		j := i + 1
		for j < len(runes) && isIdentPart(runes[j]) {
			j++
		}
		tok := string(runes[i:j])
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
		i = j
	}
	return out
}

// HasToken reports whether name occurs as a whole identifier token in text.
func HasToken(text, name string) bool {
	if name == "" || !strings.Contains(text, name) {
		return false
	}
	for _, tok := range Identifiers(text) {
		if tok == name {
			return true
		}
	}
	return false
}

// IsFString reports whether a string literal carries an f prefix.
func IsFString(literal string) bool {
	for _, r := range literal {
		switch r {
		case 'f', 'F':
			return true
		case '\'', '"':
			return false
		}
	}
	return false
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

var keywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
	"match": true, "case": true, "type": true,
}

var builtins = map[string]bool{
	"abs": true, "all": true, "any": true, "ascii": true, "bin": true,
	"bool": true, "breakpoint": true, "bytearray": true, "bytes": true,
	"callable": true, "chr": true, "classmethod": true, "compile": true,
	"complex": true, "delattr": true, "dict": true, "dir": true, "divmod": true,
	"enumerate": true, "eval": true, "exec": true, "filter": true, "float": true,
	"format": true, "frozenset": true, "getattr": true, "globals": true,
	"hasattr": true, "hash": true, "help": true, "hex": true, "id": true,
	"input": true, "int": true, "isinstance": true, "issubclass": true,
	"iter": true, "len": true, "list": true, "locals": true, "map": true,
	"max": true, "memoryview": true, "min": true, "next": true, "object": true,
	"oct": true, "open": true, "ord": true, "pow": true, "print": true,
	"property": true, "range": true, "repr": true, "reversed": true,
	"round": true, "set": true, "setattr": true, "slice": true, "sorted": true,
	"staticmethod": true, "str": true, "sum": true, "super": true, "tuple": true,
	"vars": true, "zip": true, "self": true, "cls": true, "__name__": true,
	"__file__": true, "__doc__": true, "Exception": true, "ValueError": true,
	"TypeError": true, "KeyError": true, "IndexError": true,
	"RuntimeError": true, "StopIteration": true, "NotImplemented": true,
}

// IsKeyword reports whether name is a Python keyword or soft keyword.
func IsKeyword(name string) bool { return keywords[name] }

// IsBuiltin reports whether name is a commonly used builtin.
func IsBuiltin(name string) bool { return builtins[name] }

// IsReserved reports whether a generated name must avoid name.
func IsReserved(name string) bool { return keywords[name] || builtins[name] }
