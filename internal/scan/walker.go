// Package scan discovers source files under a set of targets and runs
// compiled rule-configs against each one, concurrently, emitting findings
// over a channel the way this tree's file-discovery and worker-pool code
// always has.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/oxhq/structgrep/pkg/lang"
)

var defaultSkipDirs = []string{".git", "vendor", "node_modules", "dist", "build", ".structgrep"}

// WalkerConfig controls target discovery.
type WalkerConfig struct {
	MaxBytes       int64
	FollowSymlinks bool
	Include        []string
	Exclude        []string
	NoGitignore    bool
	Languages      *lang.Registry
}

// Walker recursively discovers files under one or more targets, filtering
// by .gitignore, include/exclude globs, and file size.
type Walker struct {
	cfg       WalkerConfig
	gitignore *ignore.GitIgnore
}

// NewWalker builds a Walker, loading any applicable .gitignore files unless
// disabled.
func NewWalker(cfg WalkerConfig) *Walker {
	w := &Walker{cfg: cfg}
	if !cfg.NoGitignore {
		w.loadGitignore()
	}
	return w
}

// loadGitignore walks up from the working directory collecting .gitignore
// files, closest-first, and compiles them together.
func (w *Walker) loadGitignore() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	var files []string
	dir := cwd
	for {
		p := filepath.Join(dir, ".gitignore")
		if _, err := os.Stat(p); err == nil {
			files = append(files, p)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	if len(files) == 0 {
		return
	}

	slices.Reverse(files)
	if len(files) == 1 {
		if gi, err := ignore.CompileIgnoreFile(files[0]); err == nil {
			w.gitignore = gi
		}
		return
	}
	var extra []string
	for _, f := range files[1:] {
		data, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		extra = append(extra, strings.Split(string(data), "\n")...)
	}
	if gi, err := ignore.CompileIgnoreFileAndLines(files[0], extra...); err == nil {
		w.gitignore = gi
	}
}

// Targets resolves a list of file/directory arguments into a deduplicated,
// filtered file list. An empty targets list defaults to the working
// directory.
func (w *Walker) Targets(ctx context.Context, targets []string) ([]string, error) {
	if len(targets) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("scan: getting working directory: %w", err)
		}
		targets = []string{cwd}
	}

	var all []string
	for _, t := range targets {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		files, err := w.scanTarget(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("scan: target %s: %w", t, err)
		}
		all = append(all, files...)
	}
	return dedupe(all), nil
}

func (w *Walker) scanTarget(ctx context.Context, target string) ([]string, error) {
	info, err := os.Lstat(target)
	if err != nil {
		return nil, err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		if !w.cfg.FollowSymlinks {
			return nil, nil
		}
		resolved, err := filepath.EvalSymlinks(target)
		if err != nil {
			return nil, err
		}
		return w.scanTarget(ctx, resolved)
	}

	if info.Mode().IsRegular() {
		if w.shouldProcessFile(target, info) {
			return []string{target}, nil
		}
		return nil, nil
	}

	if info.IsDir() {
		return w.scanDirectory(ctx, target)
	}
	return nil, nil
}

func (w *Walker) scanDirectory(ctx context.Context, dir string) ([]string, error) {
	var files []string
	err := fs.WalkDir(os.DirFS(dir), ".", func(relPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip entries we can't read rather than aborting the whole walk
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		full := filepath.Join(dir, relPath)
		if d.IsDir() {
			if relPath != "." && w.shouldSkipDirectory(relPath) {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return nil
			}
			if w.shouldProcessFile(full, info) {
				files = append(files, full)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (w *Walker) shouldProcessFile(path string, info os.FileInfo) bool {
	if w.gitignore != nil {
		if rel, err := filepath.Rel(".", path); err == nil && w.gitignore.MatchesPath(rel) {
			return false
		}
	}
	if w.cfg.MaxBytes > 0 && info.Size() > w.cfg.MaxBytes {
		return false
	}
	if w.cfg.Languages != nil {
		if _, err := w.cfg.Languages.ForFile(path); err != nil {
			return false
		}
	}
	if len(w.cfg.Include) > 0 && !matchAny(path, w.cfg.Include) {
		return false
	}
	if matchAny(path, w.cfg.Exclude) {
		return false
	}
	return true
}

func (w *Walker) shouldSkipDirectory(relPath string) bool {
	if w.gitignore != nil && w.gitignore.MatchesPath(relPath) {
		return true
	}
	name := filepath.Base(relPath)
	if slices.Contains(defaultSkipDirs, name) {
		return true
	}
	return strings.HasPrefix(name, ".")
}

func matchAny(path string, patterns []string) bool {
	for _, p := range patterns {
		if matched, err := doublestar.PathMatch(p, path); err == nil && matched {
			return true
		}
		if !strings.Contains(p, "/") {
			if matched, err := doublestar.PathMatch(p, filepath.Base(path)); err == nil && matched {
				return true
			}
		}
	}
	return false
}

func dedupe(files []string) []string {
	seen := make(map[string]bool, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
