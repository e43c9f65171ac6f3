// Package robot connects the SSC-32 driver to the command line tools: the
// connection config, a shared controller and normalized position views.
package robot

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gwillem/ssc32/pkg/ssc32"
)

// Rig is a controller shared between goroutines. Every access goes through
// its lock.
type Rig struct {
	mu   sync.Mutex
	ctrl *ssc32.Controller
}

// Connect opens the board described by cfg.
func Connect(cfg *Config, log zerolog.Logger) (*Rig, error) {
	ctrl, err := ssc32.Open(cfg.SerialConfig(), cfg.Options(log)...)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Port, err)
	}
	return NewRig(ctrl), nil
}

// NewRig wraps an already connected controller.
func NewRig(ctrl *ssc32.Controller) *Rig {
	return &Rig{ctrl: ctrl}
}

// Close closes the board connection.
func (r *Rig) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ctrl.Close()
}

// Do runs fn with exclusive access to the controller.
func (r *Rig) Do(fn func(*ssc32.Controller) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.ctrl)
}

// Label returns the channel name, or "#<index>" for unnamed channels.
// Names never start with "#", so labels are unique.
func Label(ch *ssc32.Channel) string {
	if ch.Name() != "" {
		return ch.Name()
	}
	return "#" + strconv.Itoa(ch.Index())
}

// Channels resolves refs, or returns the named channels when refs is empty.
func (r *Rig) Channels(refs ...any) ([]*ssc32.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolve(refs)
}

func (r *Rig) resolve(refs []any) ([]*ssc32.Channel, error) {
	if len(refs) == 0 {
		var named []*ssc32.Channel
		for _, ch := range r.ctrl.Channels() {
			if ch.Name() != "" {
				named = append(named, ch)
			}
		}
		return named, nil
	}
	chs := make([]*ssc32.Channel, 0, len(refs))
	for _, ref := range refs {
		ch, err := r.ctrl.Channel(ref)
		if err != nil {
			return nil, err
		}
		chs = append(chs, ch)
	}
	return chs, nil
}

// ReadPositions queries the pulse width each channel is outputting.
// Returns normalized positions in the range [-100, 100], keyed by Label.
func (r *Rig) ReadPositions(ctx context.Context, refs ...any) (map[string]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	chs, err := r.resolve(refs)
	if err != nil {
		return nil, err
	}
	positions := make(map[string]float64, len(chs))
	for _, ch := range chs {
		pw, err := r.ctrl.QueryPulseWidth(ctx, ch)
		if err != nil {
			return nil, fmt.Errorf("read positions: %w", err)
		}
		positions[Label(ch)] = RangeOf(ch).Normalize(pw)
	}
	return positions, nil
}

// Targets returns the normalized commanded positions without talking to the board.
func (r *Rig) Targets(refs ...any) (map[string]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	chs, err := r.resolve(refs)
	if err != nil {
		return nil, err
	}
	targets := make(map[string]float64, len(chs))
	for _, ch := range chs {
		targets[Label(ch)] = RangeOf(ch).Normalize(ch.Position())
	}
	return targets, nil
}

// WritePositions sets normalized target positions, keyed by channel name or
// "#<index>", and commits them as one move of duration d. With autocommit
// enabled every position is sent as it is set, using the autocommit time.
func (r *Rig) WritePositions(ctx context.Context, positions map[string]float64, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	chs := make([]*ssc32.Channel, 0, len(positions))
	targets := make(map[*ssc32.Channel]int, len(positions))
	for label, norm := range positions {
		ch, err := r.channelByLabel(label)
		if err != nil {
			return err
		}
		if _, ok := targets[ch]; !ok {
			chs = append(chs, ch)
		}
		targets[ch] = RangeOf(ch).Denormalize(norm)
	}
	slices.SortFunc(chs, func(a, b *ssc32.Channel) int { return a.Index() - b.Index() })

	for _, ch := range chs {
		if err := r.ctrl.SetPosition(ctx, ch, targets[ch]); err != nil {
			return fmt.Errorf("write positions: %w", err)
		}
	}
	if err := r.ctrl.Commit(ctx, d); err != nil {
		return fmt.Errorf("write positions: %w", err)
	}
	return nil
}

func (r *Rig) channelByLabel(label string) (*ssc32.Channel, error) {
	if len(label) > 1 && label[0] == '#' {
		if i, err := strconv.Atoi(label[1:]); err == nil {
			return r.ctrl.Channel(i)
		}
	}
	return r.ctrl.Channel(label)
}
