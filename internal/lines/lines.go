// Package lines provides a capped, single-pass line reader. The cap is the
// memory-safety property of the whole scanner: the underlying handle is
// closed the moment the line budget is spent, a file never contributes more
// than max lines no matter how large it is.
package lines

import (
	"bufio"
	"io"
	"iter"
)

// scanner buffer sizing, a single line longer than maxLine fails the file
// instead of growing the buffer without bound.
const (
	initialBuf = 64 * 1024
	maxLine    = 512 * 1024
)

// Read yields at most max lines from rc. The sequence is finite and not
// restartable. rc is closed when the cap is reached, when the consumer stops
// early and when the input is exhausted, whichever comes first. A read error
// is yielded as the final element with an empty line.
func Read(rc io.ReadCloser, max int) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		defer func() {
			_ = rc.Close() // close error is irrelevant for a read-only pass
		}()

		if max <= 0 {
			return
		}

		scanner := bufio.NewScanner(rc)
		scanner.Buffer(make([]byte, initialBuf), maxLine)

		n := 0
		for scanner.Scan() {
			if !yield(scanner.Text(), nil) {
				return
			}
			n++
			if n >= max {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", err)
		}
	}
}

// Collect drains seq into a slice, stopping at the first error.
func Collect(seq iter.Seq2[string, error]) ([]string, error) {
	var out []string
	for line, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, line)
	}
	return out, nil
}
