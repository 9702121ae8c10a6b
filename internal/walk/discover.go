package walk

import (
	"context"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/linthound/linthound/internal/model"
)

// DefaultIgnore names directories pruned outright, they are never descended
// into.
var DefaultIgnore = []string{
	"node_modules",
	"__pycache__",
	"vendor",
	".git",
	".hg",
	".svn",
	"dist",
	"coverage",
}

// DefaultExtensions are the file types considered when the config does not
// narrow them down.
var DefaultExtensions = []string{
	".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx", ".py", ".go",
}

type Options struct {
	// Ignore patterns are doublestar globs matched against the directory base
	// name and the slash-separated path relative to root. Merged with
	// DefaultIgnore.
	Ignore []string

	// Extensions allowed, with leading dot. Empty means DefaultExtensions.
	Extensions []string

	// MaxFiles caps the number of candidates returned. Zero or negative
	// means no candidates at all.
	MaxFiles int
}

// Discover walks the filesystem rooted at root and returns up to
// Options.MaxFiles candidate files, most recently modified first with a
// lexical path tie-break. Ignored directories are pruned, not descended.
// Symlinks are not followed. An unreadable root yields a DiscoveryError,
// errors below the root only drop the affected subtree.
func Discover(ctx context.Context, root fs.FS, name string, opts Options) ([]Entry, error) {
	if root == nil {
		panic("root is nil")
	}
	if _, err := fs.Stat(root, "."); err != nil {
		return nil, &model.DiscoveryError{Root: name, Err: err}
	}

	ignore := append(append([]string(nil), DefaultIgnore...), opts.Ignore...)
	allowed := extSet(opts.Extensions)

	var found []fsEntry
	fn := func(p string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return fs.SkipAll
		}
		if err != nil {
			if p == "." {
				return err
			}
			return fs.SkipDir
		}
		if d.IsDir() {
			if p != "." && ignored(ignore, p, d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if _, ok := allowed[strings.ToLower(path.Ext(p))]; !ok {
			return nil
		}
		found = append(found, fsEntry{
			root:    root,
			abspath: path.Join(name, p),
			path:    p,
			info:    info,
		})
		return nil
	}
	if err := fs.WalkDir(root, ".", fn); err != nil {
		return nil, &model.DiscoveryError{Root: name, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(found, func(i, j int) bool {
		mi, mj := found[i].info.ModTime(), found[j].info.ModTime()
		if !mi.Equal(mj) {
			return mi.After(mj)
		}
		return found[i].path < found[j].path
	})

	n := min(opts.MaxFiles, len(found))
	if n < 0 {
		n = 0
	}
	entries := make([]Entry, 0, n)
	for _, e := range found[:n] {
		entries = append(entries, e)
	}
	return entries, nil
}

func ignored(patterns []string, rel, base string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, base); err == nil && ok {
			return true
		}
		if ok, err := doublestar.Match(pat, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func extSet(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[strings.ToLower(e)] = struct{}{}
	}
	return set
}
