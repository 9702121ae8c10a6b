package model

import (
	"errors"
	"fmt"
)

// ErrPoolClosed is returned from Acquire and Invoke once the pool has been
// terminated. Skip decisions are data, not errors, so there is no sentinel
// for them.
var ErrPoolClosed = errors.New("pool closed")

// DiscoveryError means the scan root itself is inaccessible. It is the only
// fatal error a scan surfaces, there are no partial results to return.
type DiscoveryError struct {
	Root string
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovering %s: %v", e.Root, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// ReadError means a single candidate file could not be opened or read. It is
// recorded as a tool-error finding and the scan continues.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("reading %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// LintInvocationError means the external linter process failed, timed out or
// produced output the adapter could not parse. Recorded per file as a
// tool-error finding, the scan continues.
type LintInvocationError struct {
	Tool string
	Path string
	Err  error
}

func (e *LintInvocationError) Error() string {
	return fmt.Sprintf("linter %s on %s: %v", e.Tool, e.Path, e.Err)
}

func (e *LintInvocationError) Unwrap() error { return e.Err }
