package scan_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxhq/structgrep/internal/config"
	"github.com/oxhq/structgrep/internal/scan"
	"github.com/oxhq/structgrep/pkg/lang"
	_ "github.com/oxhq/structgrep/pkg/lang/golang"
	"github.com/oxhq/structgrep/pkg/rule"
)

func TestEngineRunFindsAndFixes(t *testing.T) {
	dir := t.TempDir()
	src := "package main\n\nfunc main() {\n\tfmt.Println(\"hi\", 2)\n}\n"
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	yamlSrc := `
id: no-fmt-println
severity: warning
language: go
rule:
  pattern: fmt.Println($$$ARGS)
fix: logger.Info($$$ARGS)
`
	global := rule.NewRegistry()
	cfgs, err := config.LoadRuleConfigs([]byte(yamlSrc), lang.Default, global)
	require.NoError(t, err)

	engine := &scan.Engine{Configs: cfgs, Languages: lang.Default, Workers: 2}
	results := engine.Run(context.Background(), []string{path})

	var findings []scan.Finding
	for f := range results {
		findings = append(findings, f)
	}

	require.Len(t, findings, 1)
	f := findings[0]
	require.Equal(t, "no-fmt-println", f.RuleID)
	require.NotNil(t, f.Fix)
	require.Contains(t, f.Fix.Text, "logger.Info")
}

// A transform-derived metavariable is usable from the fix template.
func TestEngineTransformFeedsFix(t *testing.T) {
	dir := t.TempDir()
	src := "package main\n\nfunc main() {\n\tfmt.Println(\"hi\")\n}\n"
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	yamlSrc := `
id: unquote-log
severity: warning
language: go
rule:
  pattern: fmt.Println($A)
transform:
  B:
    substring:
      source: $A
      startChar: 1
      endChar: -1
fix: log($B)
`
	global := rule.NewRegistry()
	cfgs, err := config.LoadRuleConfigs([]byte(yamlSrc), lang.Default, global)
	require.NoError(t, err)

	engine := &scan.Engine{Configs: cfgs, Languages: lang.Default, Workers: 1}
	var findings []scan.Finding
	for f := range engine.Run(context.Background(), []string{path}) {
		findings = append(findings, f)
	}

	require.Len(t, findings, 1)
	require.NotNil(t, findings[0].Fix)
	require.Equal(t, "log(hi)", findings[0].Fix.Text)
}

// Rules with severity off are not evaluated at all.
func TestEngineSkipsOffRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n\nfunc main() {\n\tfmt.Println(1)\n}\n"), 0o644))

	yamlSrc := `
id: disabled
severity: "off"
language: go
rule:
  pattern: fmt.Println($$$ARGS)
`
	global := rule.NewRegistry()
	cfgs, err := config.LoadRuleConfigs([]byte(yamlSrc), lang.Default, global)
	require.NoError(t, err)

	engine := &scan.Engine{Configs: cfgs, Languages: lang.Default, Workers: 1}
	for range engine.Run(context.Background(), []string{path}) {
		t.Fatal("no findings expected from an off rule")
	}
}

func TestWalkerRespectsExcludeGlobs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.go"), []byte("package main\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip_test.go"), []byte("package main\n"), 0o644))

	w := scan.NewWalker(scan.WalkerConfig{
		NoGitignore: true,
		Exclude:     []string{"*_test.go"},
		Languages:   lang.Default,
	})
	files, err := w.Targets(context.Background(), []string{dir})
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "keep.go", filepath.Base(files[0]))
}
