package lines_test

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/linthound/linthound/internal/lines"

	"github.com/stretchr/testify/require"
)

// trackedReader records whether Close was called so the early-close property
// can be asserted.
type trackedReader struct {
	io.Reader
	closed bool
}

func (r *trackedReader) Close() error {
	r.closed = true
	return nil
}

func manyLines(n int) string {
	var sb strings.Builder
	for i := range n {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	return sb.String()
}

func TestReadAll(t *testing.T) {
	t.Parallel()
	rc := &trackedReader{Reader: strings.NewReader("one\ntwo\nthree\n")}

	got, err := lines.Collect(lines.Read(rc, 10))
	require.NoError(t, err)
	require.Equal(t, []string{"one", "two", "three"}, got)
	require.True(t, rc.closed)
}

func TestReadCapClosesEarly(t *testing.T) {
	t.Parallel()
	// 10000 lines, cap 500: exactly 500 yielded, handle closed at the cap.
	rc := &trackedReader{Reader: strings.NewReader(manyLines(10000))}

	got, err := lines.Collect(lines.Read(rc, 500))
	require.NoError(t, err)
	require.Len(t, got, 500)
	require.Equal(t, "line 0", got[0])
	require.Equal(t, "line 499", got[499])
	require.True(t, rc.closed)
}

func TestReadConsumerStops(t *testing.T) {
	t.Parallel()
	rc := &trackedReader{Reader: strings.NewReader(manyLines(100))}

	var got []string
	for line, err := range lines.Read(rc, 50) {
		require.NoError(t, err)
		got = append(got, line)
		if len(got) == 3 {
			break
		}
	}
	require.Len(t, got, 3)
	require.True(t, rc.closed)
}

type failingReader struct {
	err error
}

func (r *failingReader) Read([]byte) (int, error) { return 0, r.err }
func (r *failingReader) Close() error             { return nil }

func TestReadError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")

	_, err := lines.Collect(lines.Read(&failingReader{err: boom}, 10))
	require.ErrorIs(t, err, boom)
}

func TestReadZeroCap(t *testing.T) {
	t.Parallel()
	rc := &trackedReader{Reader: strings.NewReader("one\n")}

	got, err := lines.Collect(lines.Read(rc, 0))
	require.NoError(t, err)
	require.Empty(t, got)
	require.True(t, rc.closed)
}
