package walk

import (
	"io"
	"io/fs"
	"iter"
	"path/filepath"
)

// Entry is a handle to a single candidate file. Open is deferred so the
// filter can reject a candidate without the file ever being opened.
type Entry interface {
	// Path returns the full path to the file, prefixed with the root name.
	Path() string
	Open() (io.ReadCloser, error)
	Stat() (fs.FileInfo, error)
}

// fsEntry implements Entry for a filesystem
// it uses root.Open to open the file
type fsEntry struct {
	root    fs.FS
	abspath string
	path    string
	info    fs.FileInfo
}

func (e fsEntry) Path() string {
	return e.abspath
}

func (e fsEntry) Open() (io.ReadCloser, error) {
	return e.root.Open(e.path)
}

func (e fsEntry) Stat() (fs.FileInfo, error) {
	return e.info, nil
}

// NewEntry wraps a file of an fs.FS as an Entry. The name prefixes Path in
// the same way Discover does.
func NewEntry(root fs.FS, name, path string, info fs.FileInfo) Entry {
	return fsEntry{
		root:    root,
		abspath: filepath.Join(name, path),
		path:    path,
		info:    info,
	}
}

// Entries adapts a discovered slice to the iterator shape the scan pipeline
// consumes.
func Entries(entries []Entry) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}
