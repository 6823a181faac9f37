package config

import (
	"github.com/spf13/pflag"
)

// CLIOptions mirrors the flags a structgrep invocation accepts, bound
// directly onto a pflag.FlagSet so cmd/structgrep can register them on a
// cobra command's own flag set.
type CLIOptions struct {
	RulesFile      string
	Pattern        string
	Kind           string
	Lang           string
	Fix            bool
	Interactive    bool
	ShowDiff       bool
	DiffContext    int
	JSONOutput     bool
	Verbose        bool
	Workers        int
	Include        []string
	Exclude        []string
	NoGitignore    bool
	MaxBytes       int64
	FollowSymlinks bool
}

// RegisterFlags declares every structgrep flag on fs, returning the bound
// CLIOptions the caller reads back after fs.Parse.
func RegisterFlags(fs *pflag.FlagSet) *CLIOptions {
	opts := &CLIOptions{}

	fs.StringVarP(&opts.RulesFile, "rules", "r", "", "Rule-config YAML file.")
	fs.StringVarP(&opts.Pattern, "pattern", "p", "", "Inline pattern to search for (shorthand for a single-rule config).")
	fs.StringVarP(&opts.Kind, "kind", "k", "", "Inline kind to search for; used only when --pattern is not given.")
	fs.StringVarP(&opts.Lang, "lang", "l", "", "Target language of an inline --pattern/--kind search (required with them).")
	fs.BoolVarP(&opts.Fix, "fix", "f", false, "Apply each rule's fix to matched files.")
	fs.BoolVarP(&opts.Interactive, "interactive", "i", false, "Accepted but ignored; no prompt is shown.")
	fs.BoolVarP(&opts.ShowDiff, "diff", "D", false, "Show a unified diff of the changes.")
	fs.IntVarP(&opts.DiffContext, "diff-context", "C", 3, "Accepted but ignored; diffs always show 3 lines of context.")
	fs.BoolVarP(&opts.JSONOutput, "json", "j", false, "Output findings in JSON format.")
	fs.BoolVarP(&opts.Verbose, "verbose", "v", false, "Accepted but ignored; output is the same without it.")
	fs.IntVarP(&opts.Workers, "workers", "w", 0, "Number of concurrent workers, 0 means STRUCTGREP_MAX_WORKERS (default 8).")
	fs.StringSliceVar(&opts.Include, "include", nil, "Include file patterns (glob).")
	fs.StringSliceVar(&opts.Exclude, "exclude", nil, "Exclude file patterns (glob).")
	fs.BoolVar(&opts.NoGitignore, "no-gitignore", false, "Disable .gitignore filtering.")
	fs.Int64Var(&opts.MaxBytes, "max-bytes", 5*1024*1024, "Maximum file size to process.")
	fs.BoolVar(&opts.FollowSymlinks, "follow-symlinks", false, "Follow symbolic links during directory traversal.")

	return opts
}

// Validate reports an error when none of a rule-config file or an inline
// pattern/kind search was supplied.
func (o *CLIOptions) Validate() error {
	if o.RulesFile == "" && o.Pattern == "" && o.Kind == "" {
		return &Error{Kind: "MissingInput", Msg: "one of --rules, --pattern, or --kind is required"}
	}
	return nil
}
