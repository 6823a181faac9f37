package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/oxhq/structgrep/internal/config"
	"github.com/oxhq/structgrep/pkg/doc"
	"github.com/oxhq/structgrep/pkg/lang"
	"github.com/oxhq/structgrep/pkg/matcher"
	"github.com/oxhq/structgrep/pkg/metavar"
	"github.com/oxhq/structgrep/pkg/rewrite"
	"github.com/oxhq/structgrep/pkg/rule"
	"github.com/oxhq/structgrep/pkg/transform"
)

// Fix is a proposed replacement for a finding's matched span.
type Fix struct {
	Start int
	End   int
	Text  string
}

// Capture is one surfaced metavariable binding or secondary label: the bound
// text plus its position in the scanned file.
type Capture struct {
	Text  string
	Start doc.Point
	End   doc.Point
}

// MetaVars is the per-finding view of the match environment.
type MetaVars struct {
	Single      map[string]Capture
	Multi       map[string][]Capture
	Transformed map[string]string
}

// Finding is one rule match surfaced from a scanned file.
type Finding struct {
	RuleID   string
	Message  string
	Severity config.Severity
	File     string
	Start    doc.Point
	End      doc.Point
	Text     string
	URL      string
	Labels   []Capture
	MetaVars MetaVars
	Fix      *Fix
}

// Engine evaluates a set of compiled rule-configs against discovered files
// using a worker pool, the same producer/worker/collector shape this tree
// uses for every concurrent file-processing task.
type Engine struct {
	Configs   []*config.RuleConfig
	Languages *lang.Registry
	Workers   int
}

// Run scans every file concurrently and streams findings; the channel
// closes once every file has been processed or ctx is canceled.
func (e *Engine) Run(ctx context.Context, files []string) <-chan Finding {
	workers := e.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers < 1 {
		workers = 1
	}

	paths := make(chan string, 1000)
	results := make(chan Finding, 1000)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go e.worker(ctx, paths, results, &wg)
	}

	go func() {
		defer close(paths)
		for _, f := range files {
			select {
			case <-ctx.Done():
				return
			case paths <- f:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func (e *Engine) worker(ctx context.Context, paths <-chan string, results chan<- Finding, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-paths:
			if !ok {
				return
			}
			for _, f := range e.scanFile(ctx, path) {
				select {
				case <-ctx.Done():
					return
				case results <- f:
				}
			}
		}
	}
}

func (e *Engine) scanFile(ctx context.Context, path string) []Finding {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return e.ScanSource(ctx, path, src)
}

// ScanSource evaluates every applicable rule-config against in-memory source
// bytes, for callers (the LSP shim) that hold unsaved buffer contents rather
// than on-disk files.
func (e *Engine) ScanSource(ctx context.Context, path string, src []byte) []Finding {
	language, err := e.Languages.ForFile(path)
	if err != nil {
		return nil
	}
	document, err := doc.New(ctx, src, language)
	if err != nil {
		// Per-file parse failures are non-fatal: report and move on.
		fmt.Fprintf(os.Stderr, "structgrep: skipping %s: %v\n", path, err)
		return nil
	}

	var out []Finding
	for _, cfg := range e.Configs {
		if cfg.Severity == config.SeverityOff {
			continue
		}
		if cfg.Language.Name() != language.Name() {
			continue
		}
		if !ruleAppliesToPath(cfg, path) {
			continue
		}
		out = append(out, e.evalConfig(document, path, cfg)...)
	}
	return out
}

// ruleAppliesToPath applies a rule-config's own files/ignores globs on top
// of the walker's global filtering.
func ruleAppliesToPath(cfg *config.RuleConfig, path string) bool {
	if len(cfg.Files) > 0 && !globMatch(path, cfg.Files) {
		return false
	}
	return !globMatch(path, cfg.Ignores)
}

func globMatch(path string, patterns []string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.PathMatch(p, path); err == nil && ok {
			return true
		}
		if ok, err := doublestar.PathMatch(p, filepath.Base(path)); err == nil && ok {
			return true
		}
	}
	return false
}

// evalConfig walks document's tree pre-order, yielding one finding per
// non-overlapping match (a matched node's own descendants are not also
// reported against the same rule, mirroring the Rewrite transform's
// first-match-per-subtree convention).
func (e *Engine) evalConfig(document *doc.Document, path string, cfg *config.RuleConfig) []Finding {
	var out []Finding
	var lastEnv *metavar.Env

	// Kind pre-filter: a node whose kind the rule can never match at its
	// root is rejected before any recursive matching happens.
	kinds := cfg.Rule.PotentialKinds()

	v := &doc.Visitor{Order: doc.PreOrder, NamedOnly: true, Reentrant: false}
	v.Match = doc.MatcherFunc(func(n doc.Node) bool {
		if kinds != nil && !kinds[n.KindID()] {
			return false
		}
		handle := matcher.NewEnvHandle(metavar.NewEnv())
		if !cfg.Rule.Match(n, handle) {
			return false
		}
		env := handle.Env()
		if !satisfiesConstraints(cfg, env) {
			return false
		}
		if len(cfg.Transform) > 0 {
			_ = transform.Apply(cfg.Transform, &transform.Ctx{
				Env:          env,
				Rewriters:    cfg.Rewriters,
				EnclosingEnv: env,
				MetaVarChar:  cfg.Language.MetaVarChar(),
			})
		}
		lastEnv = env
		return true
	})

	v.Visit(document.Root(), func(n doc.Node) bool {
		out = append(out, e.buildFinding(path, cfg, n, lastEnv))
		return true
	})
	return out
}

func satisfiesConstraints(cfg *config.RuleConfig, env *metavar.Env) bool {
	for name, constraint := range cfg.Constraints {
		bound, ok := env.GetSingle(name)
		if !ok {
			return false
		}
		dn, ok := bound.(doc.Node)
		if !ok {
			return false
		}
		fork := matcher.NewEnvHandle(env)
		if !constraint.Match(dn, fork) {
			return false
		}
	}
	return true
}

func (e *Engine) buildFinding(path string, cfg *config.RuleConfig, n doc.Node, env *metavar.Env) Finding {
	f := Finding{
		RuleID:   cfg.ID,
		Severity: cfg.Severity,
		File:     path,
		Start:    n.StartPoint(),
		End:      n.EndPoint(),
		Text:     n.Text(),
		URL:      cfg.URL,
		Message:  interpolate(cfg.Message, cfg.Language.MetaVarChar(), env),
	}

	for _, lbl := range env.GetLabels("secondary") {
		if dn, ok := lbl.(doc.Node); ok {
			f.Labels = append(f.Labels, capture(dn))
		}
	}
	f.MetaVars = collectMetaVars(env)

	if cfg.Fix != "" {
		replacement := rewrite.GenerateAtInsertionPoint(cfg.Fix, cfg.Language.MetaVarChar(), env, n)
		f.Fix = &Fix{Start: int(n.StartByte()), End: fixEnd(cfg, n), Text: string(replacement)}
	}

	return f
}

// fixEnd computes the byte where the replacement range ends. For plain
// pattern rules the matcher back-computes where the match really ended, so
// trailing trivia the pattern tolerated (a semicolon, say) survives the
// rewrite.
func fixEnd(cfg *config.RuleConfig, n doc.Node) int {
	if pr, ok := cfg.Rule.(*rule.PatternRule); ok {
		if end, ok := matcher.MatchEnd(pr.Pattern, n); ok {
			return int(end)
		}
	}
	return int(n.EndByte())
}

func capture(n doc.Node) Capture {
	return Capture{Text: n.Text(), Start: n.StartPoint(), End: n.EndPoint()}
}

func collectMetaVars(env *metavar.Env) MetaVars {
	mv := MetaVars{
		Single:      make(map[string]Capture),
		Multi:       make(map[string][]Capture),
		Transformed: make(map[string]string),
	}
	for _, name := range env.SingleNames() {
		if n, ok := env.GetSingle(name); ok {
			if dn, ok := n.(doc.Node); ok {
				mv.Single[name] = capture(dn)
			}
		}
	}
	for _, name := range env.MultiNames() {
		nodes, _ := env.GetMulti(name)
		caps := make([]Capture, 0, len(nodes))
		for _, n := range nodes {
			if dn, ok := n.(doc.Node); ok {
				caps = append(caps, capture(dn))
			}
		}
		mv.Multi[name] = caps
	}
	for _, name := range env.TransformedNames() {
		if b, ok := env.GetTransformed(name); ok {
			mv.Transformed[name] = string(b)
		}
	}
	return mv
}

func interpolate(template string, mvChar rune, env *metavar.Env) string {
	if template == "" {
		return ""
	}
	return string(rewrite.Generate(rewrite.CompileFixer(template, mvChar), env))
}
