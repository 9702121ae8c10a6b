// Package scan is the composition root of a single scan pass: discovered
// entries flow through the filter, the capped reader and a pooled linter
// invocation, findings fan back in. The memory monitor is consulted between
// admissions and can stop or abort the whole pipeline.
package scan

import (
	"context"
	"iter"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/linthound/linthound/internal/lines"
	"github.com/linthound/linthound/internal/linter"
	"github.com/linthound/linthound/internal/log"
	"github.com/linthound/linthound/internal/memwatch"
	"github.com/linthound/linthound/internal/model"
	"github.com/linthound/linthound/internal/parallel"
	"github.com/linthound/linthound/internal/pool"
	"github.com/linthound/linthound/internal/walk"
)

type Scanner struct {
	cfg      model.Scan
	filter   Filter
	registry *linter.Registry
	pool     *pool.Pool
	monitor  *memwatch.Monitor
	limiter  *rate.Limiter

	admitted    atomic.Int32
	gateSkipped atomic.Int32
	dropped     atomic.Int32
}

type Stats struct {
	Admitted    int // files handed to the pipeline
	GateSkipped int // files refused by the admission gate
	Dropped     int // files abandoned mid-flight on cancellation
}

func New(cfg model.Scan, registry *linter.Registry, p *pool.Pool, monitor *memwatch.Monitor) *Scanner {
	s := &Scanner{
		cfg:      cfg,
		filter:   NewFilter(cfg.MaxFileSizeBytes, registry.Extensions()),
		registry: registry,
		pool:     p,
		monitor:  monitor,
	}
	if cfg.FilesPerSecond != nil {
		fps := *cfg.FilesPerSecond
		s.limiter = rate.NewLimiter(rate.Limit(fps), max(1, int(fps)))
	}
	return s
}

// Run drives one scan pass over the discovered entries. It always returns a
// Result, an emergency memory trip surfaces as TerminatedEarly with whatever
// findings were collected, never as an error.
func (s *Scanner) Run(parentCtx context.Context, entries iter.Seq2[walk.Entry, error]) model.Result {
	res := model.Result{
		ID:      uuid.New().String(),
		Started: time.Now().UTC(),
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()
	ctx = log.ContextAttrs(ctx, slog.String("scan_id", res.ID))

	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		s.monitor.Run(ctx)
	}()
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		select {
		case <-s.monitor.Emergency():
			// abandon in-flight work and kill every pooled process
			cancel()
			s.pool.TerminateAll()
		case <-ctx.Done():
		}
	}()
	defer func() {
		cancel()
		<-monitorDone
		<-watchDone
		s.pool.TerminateAll()
	}()

	// no admission before the first heap sample
	select {
	case <-s.monitor.Ready():
	case <-ctx.Done():
	}

	pm := parallel.NewMap(ctx, s.pool.Size(), s.process)
	if s.limiter != nil {
		pm.WithAdmit(s.limiter.Wait)
	}

	for out, err := range pm.Iter(s.gate(ctx, entries)) {
		if err != nil {
			s.dropped.Add(1)
			slog.DebugContext(ctx, "file dropped", "error", err)
			continue
		}
		if out.skipped {
			slog.DebugContext(ctx, "file skipped", "path", out.path, "reason", out.reason)
			res.FilesSkipped++
			continue
		}
		res.FilesScanned++
		res.Findings = append(res.Findings, out.findings...)
	}
	res.FilesSkipped += int(s.gateSkipped.Load())

	res.TerminatedEarly = s.monitor.State() == memwatch.StateEmergency
	res.PeakMemoryMB = s.monitor.PeakMB()
	res.Stopped = time.Now().UTC()

	slog.InfoContext(ctx, "scan finished",
		"files_scanned", res.FilesScanned,
		"files_skipped", res.FilesSkipped,
		"findings", len(res.Findings),
		"terminated_early", res.TerminatedEarly,
		"peak_memory_mb", res.PeakMemoryMB,
	)
	return res
}

func (s *Scanner) Stats() Stats {
	return Stats{
		Admitted:    int(s.admitted.Load()),
		GateSkipped: int(s.gateSkipped.Load()),
		Dropped:     int(s.dropped.Load()),
	}
}

// gate forwards entries while the monitor admits them. Warning pauses
// intake until the state resolves, Emergency (or cancellation) consumes the
// rest of the sequence as skipped.
func (s *Scanner) gate(ctx context.Context, entries iter.Seq2[walk.Entry, error]) iter.Seq2[walk.Entry, error] {
	poll := s.cfg.Memory.SampleInterval() / 4
	if poll < 10*time.Millisecond {
		poll = 10 * time.Millisecond
	}

	return func(yield func(walk.Entry, error) bool) {
		draining := false
		for entry, err := range entries {
			if draining {
				s.gateSkipped.Add(1)
				continue
			}
			if err != nil {
				if !yield(entry, err) {
					return
				}
				continue
			}

		wait:
			for {
				switch {
				case ctx.Err() != nil:
					draining = true
					s.gateSkipped.Add(1)
					break wait
				case s.monitor.State() == memwatch.StateEmergency:
					draining = true
					s.gateSkipped.Add(1)
					break wait
				case s.monitor.Admit():
					s.admitted.Add(1)
					if !yield(entry, nil) {
						return
					}
					break wait
				default:
					// Warning: in-flight files drain, nothing new enters
					select {
					case <-ctx.Done():
					case <-s.monitor.Emergency():
					case <-time.After(poll):
					}
				}
			}
		}
	}
}

type outcome struct {
	path     string
	findings []model.Finding
	skipped  bool
	reason   string
}

func (s *Scanner) process(ctx context.Context, entry walk.Entry) (outcome, error) {
	p := entry.Path()
	ctx = log.ContextAttrs(ctx, slog.String("path", p))
	slog.DebugContext(ctx, "processing")

	info, err := entry.Stat()
	if err != nil {
		return outcome{path: p, skipped: true, reason: "stat: " + err.Error()}, nil
	}
	decision := s.filter.Check(p, info.Size())
	if !decision.Accept {
		return outcome{path: p, skipped: true, reason: decision.Reason}, nil
	}

	lint, ok := s.registry.ForPath(p)
	if !ok {
		return outcome{path: p, skipped: true, reason: "no linter for extension"}, nil
	}

	content, err := s.readCapped(entry)
	if err != nil {
		rerr := &model.ReadError{Path: p, Err: err}
		slog.WarnContext(ctx, "read failed", "error", rerr)
		return outcome{path: p, findings: []model.Finding{toolError(lint.Name(), p, rerr)}}, nil
	}

	worker, err := s.pool.Acquire(ctx)
	if err != nil {
		return outcome{}, err
	}
	out, err := worker.Invoke(ctx, lint.Command(p, content))
	s.pool.Release(worker)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return outcome{}, cerr
		}
		lerr := &model.LintInvocationError{Tool: lint.Name(), Path: p, Err: err}
		slog.WarnContext(ctx, "invocation failed", "error", lerr)
		return outcome{path: p, findings: []model.Finding{toolError(lint.Name(), p, lerr)}}, nil
	}

	findings, err := lint.Parse(p, out)
	if err != nil {
		lerr := &model.LintInvocationError{Tool: lint.Name(), Path: p, Err: err}
		slog.WarnContext(ctx, "output rejected", "error", lerr)
		return outcome{path: p, findings: []model.Finding{toolError(lint.Name(), p, lerr)}}, nil
	}

	// findings of one file keep source line order
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Line < findings[j].Line
	})
	return outcome{path: p, findings: findings}, nil
}

// readCapped streams at most MaxLinesPerFile lines, the handle closes at the
// cap no matter how large the file is.
func (s *Scanner) readCapped(entry walk.Entry) ([]byte, error) {
	f, err := entry.Open()
	if err != nil {
		return nil, err
	}

	var buf []byte
	for line, err := range lines.Read(f, s.cfg.MaxLinesPerFile) {
		if err != nil {
			return nil, err
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	return buf, nil
}

func toolError(tool, path string, err error) model.Finding {
	return model.Finding{
		Tool:     tool,
		Path:     path,
		Line:     1,
		Message:  err.Error(),
		Severity: model.SeverityToolError,
	}
}
