package report

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/oxhq/structgrep/internal/scan"
	"github.com/oxhq/structgrep/pkg/rewrite"
)

// ApplyFixes groups findings by file and atomically rewrites each file with
// every non-overlapping fix spliced in (first-encountered fix wins on
// overlap, the same rule rewrite.Merge already enforces for a single
// rewriter pass). Returns the set of files actually modified.
func ApplyFixes(findings []scan.Finding) ([]string, error) {
	byFile := make(map[string][]scan.Finding)
	for _, f := range findings {
		if f.Fix == nil {
			continue
		}
		byFile[f.File] = append(byFile[f.File], f)
	}

	var touched []string
	for file, fs := range byFile {
		sort.Slice(fs, func(i, j int) bool { return fs[i].Fix.Start < fs[j].Fix.Start })

		original, err := os.ReadFile(file)
		if err != nil {
			return touched, err
		}

		edits := make([]rewrite.Edit, 0, len(fs))
		for _, f := range fs {
			edits = append(edits, rewrite.Edit{
				Position:      f.Fix.Start,
				DeletedLength: f.Fix.End - f.Fix.Start,
				InsertedText:  []byte(f.Fix.Text),
			})
		}

		modified := rewrite.Merge(original, edits, 0)
		if err := writeFileAtomic(file, modified); err != nil {
			return touched, err
		}
		touched = append(touched, file)
	}
	sort.Strings(touched)
	return touched, nil
}

// writeFileAtomic writes data to a temp file in the same directory, then
// renames it over path, so a crash mid-write never leaves a truncated file.
func writeFileAtomic(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode()
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	defer func() { _ = tmp.Close() }()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
