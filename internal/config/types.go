// Package config loads the process's environment/flag configuration and
// the YAML rule-config documents that drive a structgrep run,
// compiling them into the pkg/rule, pkg/pattern and pkg/transform trees the
// core packages evaluate.
package config

import (
	"github.com/oxhq/structgrep/pkg/lang"
	"github.com/oxhq/structgrep/pkg/rule"
	"github.com/oxhq/structgrep/pkg/transform"
)

// Severity is a rule-config's configured reporting level.
type Severity string

const (
	SeverityOff     Severity = "off"
	SeverityHint    Severity = "hint"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ParseSeverity validates a severity string against the closed set above.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case "":
		return SeverityWarning, nil
	case SeverityOff, SeverityHint, SeverityInfo, SeverityWarning, SeverityError:
		return Severity(s), nil
	default:
		return "", &Error{Kind: "InvalidSeverity", Msg: "unknown severity " + s}
	}
}

// RuleConfig is a fully compiled rule-config object: everything under one
// YAML document in a rule file, ready to be evaluated against documents of
// its Language.
type RuleConfig struct {
	ID       string
	Message  string
	Severity Severity
	Language lang.Language
	Rule     rule.Rule
	Fix      string // raw fix template text; empty means no fixer

	Constraints map[string]rule.Rule
	Transform   map[string]transform.Transform
	Rewriters   map[string]*transform.Rewriter

	Files    []string
	Ignores  []string
	URL      string
	Metadata map[string]any

	// Local holds this config's own `utils`, registered ahead of Rule so
	// `matches:` references inside Rule resolve. It is distinct from
	// the Global registry shared across every RuleConfig loaded together.
	Local *rule.Registry
}

// Error is a config-load failure, tagged with a stable kind string so
// callers can categorize without string-matching messages.
type Error struct {
	Kind string
	Msg  string
}

func (e *Error) Error() string { return "config: " + e.Kind + ": " + e.Msg }
