package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oxhq/structgrep/internal/config"
	"github.com/oxhq/structgrep/internal/lsp"
	"github.com/oxhq/structgrep/internal/scan"
	"github.com/oxhq/structgrep/pkg/lang"
	"github.com/oxhq/structgrep/pkg/rule"
)

// newLSPCommand builds the `structgrep lsp` subcommand: a stdio language
// server publishing rule findings as editor diagnostics.
func newLSPCommand() *cobra.Command {
	var rulesFile string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Run a stdio language server publishing rule diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			env := config.LoadEnv()
			if rulesFile == "" {
				rulesFile = env.RulesPath
			}
			if rulesFile == "" {
				return fmt.Errorf("lsp requires --rules (or STRUCTGREP_RULES_PATH)")
			}
			data, err := os.ReadFile(rulesFile)
			if err != nil {
				return err
			}
			cfgs, err := config.LoadRuleConfigs(data, lang.Default, rule.NewRegistry())
			if err != nil {
				return fmt.Errorf("loading rule configs: %w", err)
			}

			engine := &scan.Engine{Configs: cfgs, Languages: lang.Default}
			srv := lsp.NewServer(engine, os.Stdin, os.Stdout)
			if verbose {
				srv.SetDebugLog(func(format string, args ...any) {
					fmt.Fprintf(os.Stderr, format+"\n", args...)
				})
			}
			return srv.Serve(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&rulesFile, "rules", "r", "", "Rule-config YAML file.")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Trace protocol messages to stderr.")
	return cmd
}
