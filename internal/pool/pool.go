// Package pool bounds the number of concurrently running external linter
// processes. Spawning one process per file is the failure mode this scanner
// exists to avoid, so every invocation has to go through Acquire/Release:
// worker handles are reused across files and the semaphore caps live
// processes independent of input size.
package pool

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/semaphore"

	"github.com/linthound/linthound/internal/model"
)

// Command is the prototype of a single linter invocation. Stdin carries the
// (line-capped) file content so a retried spawn can replay it.
type Command struct {
	Path    string
	Args    []string
	Env     []string
	Stdin   []byte
	Timeout time.Duration
}

// Output of a finished invocation. A nonzero exit code is data, not an
// error, linter adapters decide what it means.
type Output struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

type Pool struct {
	sem  *semaphore.Weighted
	size int

	mu        sync.Mutex
	idle      []*Worker
	active    map[*Worker]struct{}
	highWater int
	closed    bool

	spawned atomic.Int32
	reused  atomic.Int32
}

type Stats struct {
	Spawned   int // worker handles created
	Reused    int // acquisitions served from the idle set
	HighWater int // most workers ever active at once
}

func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		sem:    semaphore.NewWeighted(int64(size)),
		size:   size,
		active: make(map[*Worker]struct{}),
	}
}

func (p *Pool) Size() int { return p.size }

// Acquire returns an idle worker or creates one if the pool is below its
// size. It blocks while all workers are busy, callers wait instead of
// spawning extra processes. Returns ErrPoolClosed after TerminateAll.
func (p *Pool) Acquire(ctx context.Context) (*Worker, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.sem.Release(1)
		return nil, model.ErrPoolClosed
	}

	var w *Worker
	if n := len(p.idle); n > 0 {
		w = p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.reused.Add(1)
	} else {
		w = &Worker{id: int(p.spawned.Add(1))}
	}
	p.active[w] = struct{}{}
	if len(p.active) > p.highWater {
		p.highWater = len(p.active)
	}
	return w, nil
}

// Release returns w to the idle set. Dead workers are discarded, the next
// Acquire creates a fresh handle in their place.
func (p *Pool) Release(w *Worker) {
	p.mu.Lock()
	if _, ok := p.active[w]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.active, w)
	if !p.closed && !w.isDead() {
		p.idle = append(p.idle, w)
	}
	p.mu.Unlock()
	p.sem.Release(1)
}

// TerminateAll kills every in-flight process and refuses further
// acquisitions. This is the emergency path of the memory monitor and the
// normal end-of-scan cleanup.
func (p *Pool) TerminateAll() {
	p.mu.Lock()
	p.closed = true
	p.idle = nil
	workers := make([]*Worker, 0, len(p.active))
	for w := range p.active {
		workers = append(workers, w)
	}
	p.mu.Unlock()

	for _, w := range workers {
		w.kill()
	}
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Spawned:   int(p.spawned.Load()),
		Reused:    int(p.reused.Load()),
		HighWater: p.highWater,
	}
}

// Worker is a reusable slot for running linter processes. At most one
// invocation holds a worker at any time, the pool enforces that.
type Worker struct {
	id int

	mu     sync.Mutex
	cancel context.CancelFunc
	dead   bool
}

func (w *Worker) ID() int { return w.id }

func (w *Worker) isDead() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dead
}

func (w *Worker) kill() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dead = true
	if w.cancel != nil {
		w.cancel()
	}
}

// Invoke runs proto to completion, feeding Stdin and collecting both output
// streams. Transient spawn failures are retried with exponential backoff.
// A process killed through ctx (timeout or emergency termination) reports
// the context error.
func (w *Worker) Invoke(ctx context.Context, proto Command) (Output, error) {
	if proto.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, proto.Timeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.mu.Lock()
	if w.dead {
		w.mu.Unlock()
		return Output{}, model.ErrPoolClosed
	}
	w.cancel = cancel
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.cancel = nil
		w.mu.Unlock()
	}()

	var cmd *exec.Cmd
	var stdout, stderr bytes.Buffer
	start := func() error {
		stdout.Reset()
		stderr.Reset()
		cmd = exec.CommandContext(ctx, proto.Path, proto.Args...)
		if len(proto.Env) > 0 {
			cmd.Env = append(os.Environ(), proto.Env...)
		}
		cmd.Stdin = bytes.NewReader(proto.Stdin)
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		return cmd.Start()
	}

	bo := backoff.WithContext(newSpawnBackOff(), ctx)
	if err := backoff.Retry(start, bo); err != nil {
		return Output{}, err
	}

	err := cmd.Wait()
	out := Output{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
	}
	if cerr := ctx.Err(); cerr != nil {
		return out, cerr
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, nil
		}
		return out, err
	}
	return out, nil
}

func newSpawnBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = 500 * time.Millisecond
	return backoff.WithMaxRetries(bo, 2)
}
