// Package memwatch samples the process heap on an interval and drives the
// admission state of a scan. Normal admits new files, Warning stops
// admission while in-flight files drain and recovers once usage drops,
// Emergency cancels everything and is terminal for the scan.
package memwatch

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

type State int32

const (
	StateNormal State = iota
	StateWarning
	StateEmergency
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateWarning:
		return "warning"
	case StateEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// Sample is a point-in-time heap reading, discarded after the threshold
// comparison.
type Sample struct {
	At        time.Time
	HeapBytes uint64
}

// Sampler is injected so tests drive transitions without real memory
// pressure.
type Sampler interface {
	Sample() Sample
}

// RuntimeSampler reads the live heap of this process.
type RuntimeSampler struct{}

func (RuntimeSampler) Sample() Sample {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return Sample{At: time.Now(), HeapBytes: ms.HeapAlloc}
}

type Monitor struct {
	sampler  Sampler
	warning  uint64
	max      uint64
	interval time.Duration

	mu    sync.Mutex
	state State
	peak  uint64

	readyOnce sync.Once
	ready     chan struct{}
	emergency chan struct{}
}

// New builds a monitor with thresholds in megabytes. A nil sampler means
// RuntimeSampler.
func New(sampler Sampler, warningMB, maxMB int, interval time.Duration) *Monitor {
	if sampler == nil {
		sampler = RuntimeSampler{}
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Monitor{
		sampler:   sampler,
		warning:   uint64(warningMB) << 20,
		max:       uint64(maxMB) << 20,
		interval:  interval,
		ready:     make(chan struct{}),
		emergency: make(chan struct{}),
	}
}

// Run samples until ctx is done or the emergency threshold trips. It takes
// one sample immediately so a scan that starts over the limit never admits a
// file.
func (m *Monitor) Run(ctx context.Context) {
	m.observe(ctx, m.sampler.Sample())
	m.readyOnce.Do(func() { close(m.ready) })

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.emergency:
			return
		case <-ticker.C:
			m.observe(ctx, m.sampler.Sample())
		}
	}
}

// State returns the current admission state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Admit reports whether a new file may enter the pipeline.
func (m *Monitor) Admit() bool {
	return m.State() == StateNormal
}

// Ready is closed once the first sample has been taken. Admission must not
// start before that, a scan already over the limit would slip files in.
func (m *Monitor) Ready() <-chan struct{} {
	return m.ready
}

// Emergency is closed when the max threshold trips. The orchestrator
// cancels all in-flight work on it.
func (m *Monitor) Emergency() <-chan struct{} {
	return m.emergency
}

// PeakMB is the largest heap reading observed so far.
func (m *Monitor) PeakMB() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(m.peak) / (1 << 20)
}

func (m *Monitor) observe(ctx context.Context, s Sample) {
	m.mu.Lock()

	if s.HeapBytes > m.peak {
		m.peak = s.HeapBytes
	}

	prev := m.state
	next := prev
	switch {
	case prev == StateEmergency:
		// terminal
	case s.HeapBytes >= m.max:
		next = StateEmergency
	case s.HeapBytes >= m.warning:
		next = StateWarning
	default:
		next = StateNormal
	}
	m.state = next
	m.mu.Unlock()

	if next == prev {
		return
	}

	slog.WarnContext(ctx, "memory state changed",
		"from", prev.String(),
		"to", next.String(),
		"heap_mb", float64(s.HeapBytes)/(1<<20),
	)
	if next == StateEmergency {
		close(m.emergency)
	}
}
