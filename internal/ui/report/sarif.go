package report

import (
	"encoding/json"

	"pyrefactor/internal/engine/suggest"
)

// SARIF v2.1.0, see https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json
const (
	sarifSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
	sarifVersion = "2.1.0"

	ruleIDParse = "PYR000"
)

type sarifRuleInfo struct {
	id   string
	name string
	text string
}

var categoryRules = map[suggest.Category]sarifRuleInfo{
	suggest.CategoryRename:              {"PYR001", "RenameVariable", "A short or unclear local name can be made descriptive."},
	suggest.CategorySimplifyConditional: {"PYR002", "SimplifyConditional", "A compound condition can be named by a local variable."},
	suggest.CategoryDuplicate:           {"PYR003", "ExtractDuplicate", "Repeated statement blocks can share one function."},
	suggest.CategoryDeadCode:            {"PYR004", "RemoveDeadCode", "Statements that can never run can be removed."},
	suggest.CategoryExtractMethod:       {"PYR005", "ExtractMethod", "A long function contains a block that can become its own function."},
}

type sarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	ShortDescription sarifMessage           `json:"shortDescription"`
	DefaultConfig    sarifRuleDefaultConfig `json:"defaultConfiguration"`
}

type sarifRuleDefaultConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI       string `json:"uri"`
	URIBaseID string `json:"uriBaseId"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine,omitempty"`
	StartColumn int `json:"startColumn,omitempty"`
}

// sarifLevel maps a suggestion severity onto a SARIF result level.
func sarifLevel(s suggest.Severity) string {
	switch s {
	case suggest.SeverityHigh:
		return "error"
	case suggest.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}

// SARIF builds a SARIF v2.1.0 document. Suggestion levels follow their
// severity and parse failures are errors. File URIs are made relative to
// projectRoot.
func SARIF(projectRoot, version string, files []FileReport) ([]byte, error) {
	results := make([]sarifResult, 0)
	used := make(map[string]bool)
	for _, f := range sortedFiles(files) {
		uri := relPath(projectRoot, f.Path)
		if pe := f.Result.Error; pe != nil {
			used[ruleIDParse] = true
			results = append(results, sarifResult{
				RuleID:    ruleIDParse,
				Level:     "error",
				Message:   sarifMessage{Text: pe.Message},
				Locations: []sarifLocation{location(uri, pe.Line, pe.Column)},
			})
			continue
		}
		for _, s := range f.Result.Suggestions {
			rule, ok := categoryRules[s.Category]
			if !ok {
				continue
			}
			used[rule.id] = true
			results = append(results, sarifResult{
				RuleID:    rule.id,
				Level:     sarifLevel(s.Severity()),
				Message:   sarifMessage{Text: s.Message},
				Locations: []sarifLocation{location(uri, s.Line, 0)},
			})
		}
	}

	report := sarifReport{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs: []sarifRun{{
			Tool: sarifTool{Driver: sarifDriver{
				Name:    "pyrefactor",
				Version: nonEmpty(version, "dev"),
				Rules:   buildRules(used),
			}},
			Results: results,
		}},
	}
	return json.MarshalIndent(report, "", "  ")
}

// buildRules returns only the rules referenced by results, in id order.
func buildRules(used map[string]bool) []sarifRule {
	rules := make([]sarifRule, 0, len(used))
	if used[ruleIDParse] {
		rules = append(rules, sarifRule{
			ID:               ruleIDParse,
			Name:             "ParseError",
			ShortDescription: sarifMessage{Text: "The file could not be parsed."},
			DefaultConfig:    sarifRuleDefaultConfig{Level: "error"},
		})
	}
	for _, c := range suggest.Categories {
		rule := categoryRules[c]
		if !used[rule.id] {
			continue
		}
		rules = append(rules, sarifRule{
			ID:               rule.id,
			Name:             rule.name,
			ShortDescription: sarifMessage{Text: rule.text},
			DefaultConfig:    sarifRuleDefaultConfig{Level: sarifLevel(c.Severity())},
		})
	}
	return rules
}

func location(uri string, line, column int) sarifLocation {
	loc := sarifLocation{PhysicalLocation: sarifPhysicalLocation{
		ArtifactLocation: sarifArtifactLocation{URI: uri, URIBaseID: "%SRCROOT%"},
	}}
	if line > 0 {
		loc.PhysicalLocation.Region = &sarifRegion{StartLine: line, StartColumn: column}
	}
	return loc
}
