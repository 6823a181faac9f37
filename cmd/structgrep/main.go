// Command structgrep searches (and optionally rewrites) source trees using
// tree-sitter structural patterns and YAML rule-configs.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oxhq/structgrep/internal/config"
	"github.com/oxhq/structgrep/internal/report"
	"github.com/oxhq/structgrep/internal/scan"
	"github.com/oxhq/structgrep/pkg/lang"
	_ "github.com/oxhq/structgrep/pkg/lang/golang"
	_ "github.com/oxhq/structgrep/pkg/lang/javascript"
	_ "github.com/oxhq/structgrep/pkg/lang/python"
	_ "github.com/oxhq/structgrep/pkg/lang/typescript"
	"github.com/oxhq/structgrep/pkg/pattern"
	"github.com/oxhq/structgrep/pkg/rule"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "structgrep [flags] <path> [path...]",
		Short: "Structural search and rewrite for source code",
		Long:  "Search source trees for tree-sitter structural patterns and optionally apply YAML-defined fixes.",
	}

	opts := config.RegisterFlags(rootCmd.Flags())
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), opts, args)
	}
	rootCmd.AddCommand(newLSPCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *config.CLIOptions, targets []string) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	env := config.LoadEnv()

	global := rule.NewRegistry()
	cfgs, err := loadConfigs(opts, global)
	if err != nil {
		return fmt.Errorf("loading rule configs: %w", err)
	}

	walker := scan.NewWalker(scan.WalkerConfig{
		MaxBytes:       opts.MaxBytes,
		FollowSymlinks: opts.FollowSymlinks,
		Include:        opts.Include,
		Exclude:        opts.Exclude,
		NoGitignore:    opts.NoGitignore || env.NoGitignore,
		Languages:      lang.Default,
	})

	files, err := walker.Targets(ctx, targets)
	if err != nil {
		return fmt.Errorf("discovering files: %w", err)
	}

	workers := opts.Workers
	if workers == 0 {
		workers = env.MaxWorkers
	}
	engine := &scan.Engine{Configs: cfgs, Languages: lang.Default, Workers: workers}

	printer := &report.Printer{
		Out:      os.Stdout,
		JSON:     opts.JSONOutput,
		ShowDiff: opts.ShowDiff,
		Color:    !opts.JSONOutput && os.Getenv("NO_COLOR") == "",
	}

	var findings []scan.Finding
	for f := range engine.Run(ctx, files) {
		findings = append(findings, f)
		printer.Print(f)
	}
	printer.Summary(findings)

	if opts.Fix {
		touched, err := report.ApplyFixes(findings)
		if err != nil {
			return fmt.Errorf("applying fixes: %w", err)
		}
		for _, f := range touched {
			fmt.Fprintf(os.Stdout, "fixed %s\n", f)
		}
	}

	return nil
}

// loadConfigs builds the rule-config set either from --rules (a YAML
// rule-config file) or, as a shorthand, a single inline --pattern/--kind
// search compiled directly against the requested language.
func loadConfigs(opts *config.CLIOptions, global *rule.Registry) ([]*config.RuleConfig, error) {
	if opts.RulesFile != "" {
		data, err := os.ReadFile(opts.RulesFile)
		if err != nil {
			return nil, err
		}
		return config.LoadRuleConfigs(data, lang.Default, global)
	}

	if opts.Lang == "" {
		return nil, fmt.Errorf("--lang is required when using --pattern without --rules")
	}
	language, err := lang.Default.Get(opts.Lang)
	if err != nil {
		return nil, err
	}

	var compiled rule.Rule
	if opts.Pattern != "" {
		p, err := pattern.Compile(context.Background(), language, pattern.Source{Pattern: opts.Pattern})
		if err != nil {
			return nil, err
		}
		compiled = &rule.PatternRule{Pattern: p}
	} else if opts.Kind != "" {
		ids := language.KindToID(opts.Kind)
		if len(ids) == 0 {
			return nil, fmt.Errorf("unknown kind %q for language %q", opts.Kind, opts.Lang)
		}
		kinds := make(map[uint16]bool, len(ids))
		for _, id := range ids {
			kinds[id] = true
		}
		compiled = &rule.KindRule{Name: opts.Kind, Kinds: kinds}
	} else {
		return nil, fmt.Errorf("one of --pattern or --kind is required without --rules")
	}

	return []*config.RuleConfig{{
		ID:       "cli-inline",
		Severity: config.SeverityWarning,
		Language: language,
		Rule:     compiled,
	}}, nil
}
