package ssc32

import (
	"context"
	"time"
)

// DefaultPollInterval is the delay between completion polls.
const DefaultPollInterval = 10 * time.Millisecond

type waitOptions struct {
	interval time.Duration
}

// WaitOption configures WaitUntilDone.
type WaitOption func(*waitOptions)

// WithPollInterval changes the delay between completion polls.
func WithPollInterval(d time.Duration) WaitOption {
	return func(o *waitOptions) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WaitUntilDone blocks until the last commanded moves have finished or ctx is done.
// Completion is a heuristic, see Settled.
func (c *Controller) WaitUntilDone(ctx context.Context, opts ...WaitOption) error {
	o := waitOptions{interval: DefaultPollInterval}
	for _, opt := range opts {
		opt(&o)
	}

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		done, err := c.Settled(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Settled polls the board once and reports whether all moving channels have
// finished.
//
// The board's own done query is trusted when it says done, which clears every
// channel's moving flag. Some boards keep reporting busy after a move, so
// otherwise each moving channel's output pulse width is compared against its
// target within the channel threshold; once no channel is left moving the move
// counts as finished even though the board disagrees. This is a heuristic, not a
// guarantee: a channel whose output passes near its target mid-move settles early.
func (c *Controller) Settled(ctx context.Context) (bool, error) {
	done, err := c.IsDone(ctx)
	if err != nil {
		return false, err
	}
	if done {
		for _, ch := range c.channels {
			ch.moving = false
		}
		return true, nil
	}

	settled := true
	for _, ch := range c.channels {
		if !ch.moving {
			continue
		}
		pw, err := c.QueryPulseWidth(ctx, ch)
		if err != nil {
			return false, err
		}
		if !ch.IsSettled(pw) {
			settled = false
		}
	}
	if settled {
		c.log.Trace().Msg("all channels settled while board reports busy")
	}
	return settled, nil
}
