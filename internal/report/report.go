// Package report formats findings for human and machine consumption: a
// terse CLI line per match plus an optional unified diff of any fix, or one
// JSON object per line, per match, for tooling.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/oxhq/structgrep/internal/scan"
)

const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorGreen  = "\x1b[32m"
	colorCyan   = "\x1b[36m"
	colorYellow = "\x1b[33m"
)

// Printer renders a stream of findings to an output writer.
type Printer struct {
	Out         io.Writer
	JSON        bool
	ShowDiff    bool
	DiffContext int
	Color       bool
}

// jsonFinding is the wire shape for --json output: plain data, no doc.Point
// dependency leaking column/row naming quirks into consumers.
type jsonFinding struct {
	RuleID    string `json:"ruleId"`
	Severity  string `json:"severity"`
	File      string `json:"file"`
	StartLine uint32 `json:"startLine"`
	StartCol  uint32 `json:"startColumn"`
	EndLine   uint32 `json:"endLine"`
	EndCol    uint32 `json:"endColumn"`
	Message   string `json:"message"`
	Text      string `json:"text"`
	URL       string `json:"url,omitempty"`
	MetaVars  map[string]string `json:"metavariables,omitempty"`
	Fixed     bool   `json:"hasFix"`
}

// flattenMetaVars folds single and transformed bindings into one name→text
// map for the JSON line; multi captures are joined from their parts.
func flattenMetaVars(mv scan.MetaVars) map[string]string {
	if len(mv.Single) == 0 && len(mv.Multi) == 0 && len(mv.Transformed) == 0 {
		return nil
	}
	out := make(map[string]string, len(mv.Single)+len(mv.Multi)+len(mv.Transformed))
	for name, c := range mv.Single {
		out[name] = c.Text
	}
	for name, caps := range mv.Multi {
		var sb strings.Builder
		for i, c := range caps {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(c.Text)
		}
		out[name] = sb.String()
	}
	for name, text := range mv.Transformed {
		out[name] = text
	}
	return out
}

// Print renders one finding, immediately, in whichever mode the Printer is
// configured for.
func (p *Printer) Print(f scan.Finding) {
	if p.JSON {
		jf := jsonFinding{
			RuleID:    f.RuleID,
			Severity:  string(f.Severity),
			File:      f.File,
			StartLine: f.Start.Row + 1,
			StartCol:  f.Start.Column + 1,
			EndLine:   f.End.Row + 1,
			EndCol:    f.End.Column + 1,
			Message:   f.Message,
			Text:      f.Text,
			URL:       f.URL,
			MetaVars:  flattenMetaVars(f.MetaVars),
			Fixed:     f.Fix != nil,
		}
		b, err := json.Marshal(jf)
		if err != nil {
			fmt.Fprintf(p.Out, "(json error: %v)\n", err)
			return
		}
		fmt.Fprintln(p.Out, string(b))
		return
	}

	severityGlyph := "•"
	switch f.Severity {
	case "error":
		severityGlyph = p.colorize(colorRed, "✗")
	case "warning":
		severityGlyph = p.colorize(colorYellow, "⚠")
	case "hint", "info":
		severityGlyph = p.colorize(colorCyan, "ℹ")
	}

	fmt.Fprintf(p.Out, "%s %s:%d:%d %s [%s]\n",
		severityGlyph, f.File, f.Start.Row+1, f.Start.Column+1, f.Message, f.RuleID)

	if p.ShowDiff && f.Fix != nil {
		fmt.Fprint(p.Out, p.renderFixDiff(f))
	}
}

// Summary writes a one-line totals footer, grouped by severity.
func (p *Printer) Summary(findings []scan.Finding) {
	if p.JSON {
		return
	}
	counts := map[string]int{}
	for _, f := range findings {
		counts[string(f.Severity)]++
	}
	fmt.Fprintf(p.Out, "\n%d findings (%d error, %d warning, %d hint, %d info)\n",
		len(findings), counts["error"], counts["warning"], counts["hint"], counts["info"])
}

func (p *Printer) renderFixDiff(f scan.Finding) string {
	diff := UnifiedDiff(f.Text, f.Fix.Text, f.File, 3, p.Color)
	return diff
}

func (p *Printer) colorize(color, s string) string {
	if !p.Color {
		return s
	}
	return color + s + colorReset
}

// UnifiedDiff renders a unified diff between orig and mod, optionally
// ANSI-colored.
func UnifiedDiff(orig, mod, filename string, context int, color bool) string {
	d := difflib.UnifiedDiff{
		A:        difflib.SplitLines(orig),
		B:        difflib.SplitLines(mod),
		FromFile: filename,
		ToFile:   filename + " (fixed)",
		Context:  context,
	}
	text, err := difflib.GetUnifiedDiffString(d)
	if err != nil {
		return "(diff error: " + err.Error() + ")"
	}
	if !color {
		return text
	}

	var sb strings.Builder
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if i == len(lines)-1 && l == "" {
			continue
		}
		switch {
		case strings.HasPrefix(l, "+"):
			sb.WriteString(colorGreen + l + colorReset + "\n")
		case strings.HasPrefix(l, "-"):
			sb.WriteString(colorRed + l + colorReset + "\n")
		case strings.HasPrefix(l, "@"):
			sb.WriteString(colorCyan + l + colorReset + "\n")
		default:
			sb.WriteString(l + "\n")
		}
	}
	return sb.String()
}
