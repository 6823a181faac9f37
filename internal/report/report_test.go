package report_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxhq/structgrep/internal/report"
	"github.com/oxhq/structgrep/internal/scan"
	"github.com/oxhq/structgrep/pkg/doc"
)

func TestPrinterPrintPlain(t *testing.T) {
	var buf bytes.Buffer
	p := &report.Printer{Out: &buf}
	p.Print(scan.Finding{
		RuleID:   "no-println",
		Severity: "warning",
		File:     "main.go",
		Start:    doc.Point{Row: 4, Column: 1},
		End:      doc.Point{Row: 4, Column: 20},
		Message:  "avoid fmt.Println",
	})
	require.Contains(t, buf.String(), "main.go:5:2")
	require.Contains(t, buf.String(), "no-println")
}

func TestPrinterPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	p := &report.Printer{Out: &buf, JSON: true}
	p.Print(scan.Finding{RuleID: "r1", Severity: "error", File: "a.go", Message: "m"})
	require.Contains(t, buf.String(), `"ruleId":"r1"`)
}

func TestApplyFixesWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("fmt.Println(1)"), 0o644))

	touched, err := report.ApplyFixes([]scan.Finding{{
		File: path,
		Fix:  &scan.Fix{Start: 0, End: 14, Text: "logger.Info(1)"},
	}})
	require.NoError(t, err)
	require.Equal(t, []string{path}, touched)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "logger.Info(1)", string(got))
}

func TestUnifiedDiff(t *testing.T) {
	d := report.UnifiedDiff("a\nb\n", "a\nc\n", "f.go", 1, false)
	require.Contains(t, d, "-b")
	require.Contains(t, d, "+c")
}
