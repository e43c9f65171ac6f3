// Package monitor samples servo positions from a board at a fixed rate.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gwillem/ssc32/pkg/robot"
	"github.com/gwillem/ssc32/pkg/ssc32"
)

// Sampling rate bounds. Each sample is a serial round trip per servo, so
// rates far above MaxHz are never reached anyway.
const (
	DefaultHz = 10
	MaxHz     = 1000
)

// State is one sample of the watched channels.
type State struct {
	// Positions are the pulse widths the board outputs, normalized to [-100, 100].
	Positions map[string]float64
	// Targets are the commanded positions, normalized the same way.
	Targets   map[string]float64
	Done      bool
	Timestamp time.Time
	Error     error
}

// Monitor manages the sampling loop.
type Monitor struct {
	rig  *robot.Rig
	hz   int
	refs []any

	mu      sync.Mutex
	running bool
	stateCh chan State
	logCh   chan string
}

// Config holds configuration for the monitor.
type Config struct {
	Hz     int
	Servos []string // names or indexes; empty watches every named channel
}

// New creates a monitor for rig.
func New(rig *robot.Rig, cfg Config) (*Monitor, error) {
	if cfg.Hz <= 0 {
		cfg.Hz = DefaultHz
	}
	cfg.Hz = min(cfg.Hz, MaxHz)

	refs := make([]any, 0, len(cfg.Servos))
	for _, s := range cfg.Servos {
		refs = append(refs, ssc32.ParseRef(s))
	}
	chs, err := rig.Channels(refs...)
	if err != nil {
		return nil, err
	}
	if len(chs) == 0 {
		return nil, fmt.Errorf("no servos to monitor: name some with setup or pass them explicitly")
	}

	return &Monitor{
		rig:     rig,
		hz:      cfg.Hz,
		refs:    refs,
		stateCh: make(chan State, 1),
		logCh:   make(chan string, 10),
	}, nil
}

// Labels returns the labels of the watched channels.
func (m *Monitor) Labels() []string {
	chs, _ := m.rig.Channels(m.refs...)
	labels := make([]string, len(chs))
	for i, ch := range chs {
		labels[i] = robot.Label(ch)
	}
	return labels
}

// States returns a channel that receives state updates.
func (m *Monitor) States() <-chan State {
	return m.stateCh
}

// Logs returns a channel that receives log messages.
func (m *Monitor) Logs() <-chan string {
	return m.logCh
}

// Hz returns the sampling frequency.
func (m *Monitor) Hz() int {
	return m.hz
}

func (m *Monitor) log(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case m.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Start runs the sampling loop until ctx is done.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("already running")
	}
	m.running = true
	m.mu.Unlock()

	m.log("Monitoring %d servos at %d Hz", len(m.Labels()), m.hz)

	ticker := time.NewTicker(time.Second / time.Duration(m.hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			m.running = false
			m.mu.Unlock()
			m.log("Monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			m.step(ctx)
		}
	}
}

func (m *Monitor) step(ctx context.Context) {
	positions, err := m.rig.ReadPositions(ctx, m.refs...)
	if err != nil {
		m.log("Read error: %v", err)
		m.sendState(State{Error: err, Timestamp: time.Now()})
		return
	}
	targets, err := m.rig.Targets(m.refs...)
	if err != nil {
		m.sendState(State{Error: err, Timestamp: time.Now()})
		return
	}

	var done bool
	err = m.rig.Do(func(c *ssc32.Controller) error {
		var err error
		done, err = c.IsDone(ctx)
		return err
	})
	if err != nil {
		m.log("Done query failed: %v", err)
	}

	m.sendState(State{
		Positions: positions,
		Targets:   targets,
		Done:      done,
		Timestamp: time.Now(),
	})
}

func (m *Monitor) sendState(s State) {
	select {
	case m.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-m.stateCh:
		default:
		}
		m.stateCh <- s
	}
}
