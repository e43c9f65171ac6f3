package ssc32

import (
	"fmt"
	"math"
)

// Channel limits and defaults.
const (
	MinChannel = 0
	MaxChannel = 31

	DefaultMinPulse  = 500
	DefaultMaxPulse  = 2500
	DefaultPosition  = 1500
	DefaultDegMin    = -90.0
	DefaultDegMax    = 90.0
	DefaultThreshold = 20 // two steps of the QP query resolution
)

// Channel is one servo output of the board. Its target position is set through
// the owning Controller, which either records the change until Commit or sends
// it right away when autocommit is enabled.
type Channel struct {
	index     int
	name      string
	min, max  int
	degMin    float64
	degMax    float64
	position  int
	speed     int
	hasSpeed  bool
	pending   bool
	moving    bool
	threshold int
}

func newChannel(index int) *Channel {
	return &Channel{
		index:     index,
		min:       DefaultMinPulse,
		max:       DefaultMaxPulse,
		degMin:    DefaultDegMin,
		degMax:    DefaultDegMax,
		position:  DefaultPosition,
		threshold: DefaultThreshold,
	}
}

// Index returns the board channel number.
func (c *Channel) Index() int { return c.index }

// Name returns the uppercase channel name, or "" if unnamed.
func (c *Channel) Name() string { return c.name }

// Position returns the target pulse width in microseconds.
func (c *Channel) Position() int { return c.position }

// Limits returns the allowed pulse width range.
func (c *Channel) Limits() (min, max int) { return c.min, c.max }

// AngularRange returns the angles that correspond to the pulse limits.
func (c *Channel) AngularRange() (degMin, degMax float64) { return c.degMin, c.degMax }

// Speed returns the move speed in µs/s, and false if the board default is used.
func (c *Channel) Speed() (int, bool) { return c.speed, c.hasSpeed }

// Pending reports whether the position changed since it was last rendered.
func (c *Channel) Pending() bool { return c.pending }

// Moving reports whether a command was sent and completion not yet observed.
func (c *Channel) Moving() bool { return c.moving }

// Threshold returns the pulse width tolerance used by IsSettled.
func (c *Channel) Threshold() int { return c.threshold }

// setPosition sets the target pulse width, clamped to the channel limits.
// The channel becomes pending even when the value does not change.
func (c *Channel) setPosition(pw int) {
	c.position = clamp(pw, c.min, c.max)
	c.pending = true
}

// setDegrees sets the target position as an angle within the angular range.
func (c *Channel) setDegrees(deg float64) error {
	span := c.span()
	if span == 0 {
		return fmt.Errorf("%w: channel %d has an empty angular range", ErrInvalidArgument, c.index)
	}
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return fmt.Errorf("%w: angle %v", ErrInvalidArgument, deg)
	}
	pw := float64(c.min) + (deg-c.degMin)*float64(c.max-c.min)/span
	pw = math.Max(float64(c.min), math.Min(float64(c.max), pw))
	c.setPosition(int(math.Round(pw)))
	return nil
}

// setRadians sets the target position as an angle in radians.
func (c *Channel) setRadians(rad float64) error {
	return c.setDegrees(rad * 180 / math.Pi)
}

// Degrees returns the target position as an angle.
func (c *Channel) Degrees() float64 {
	return c.DegreesAt(c.position)
}

// Radians returns the target position in radians.
func (c *Channel) Radians() float64 {
	return c.Degrees() * math.Pi / 180
}

// DegreesAt converts a pulse width to an angle using this channel's mapping.
func (c *Channel) DegreesAt(pw int) float64 {
	return c.degMin + c.span()*float64(pw-c.min)/float64(c.max-c.min)
}

func (c *Channel) span() float64 {
	return math.Abs(c.degMin) + math.Abs(c.degMax)
}

// SetSpeed sets the move speed. -1 restores the board default.
func (c *Channel) SetSpeed(speed int) error {
	if speed == -1 {
		c.ClearSpeed()
		return nil
	}
	if speed < 0 {
		return fmt.Errorf("%w: speed %d must not be negative", ErrInvalidArgument, speed)
	}
	c.speed = speed
	c.hasSpeed = true
	return nil
}

// ClearSpeed restores the board default speed.
func (c *Channel) ClearSpeed() {
	c.speed = 0
	c.hasSpeed = false
}

// SetLimits changes the pulse width range. A position outside the new range
// is clamped and becomes pending.
func (c *Channel) SetLimits(min, max int) error {
	if min >= max {
		return fmt.Errorf("%w: pulse limits %d..%d", ErrInvalidArgument, min, max)
	}
	c.min, c.max = min, max
	if pw := clamp(c.position, min, max); pw != c.position {
		c.setPosition(pw)
	}
	return nil
}

// SetAngularRange sets the angles that map to the pulse limits.
func (c *Channel) SetAngularRange(degMin, degMax float64) {
	c.degMin, c.degMax = degMin, degMax
}

// SetThreshold sets the tolerance used to decide that a move has settled.
func (c *Channel) SetThreshold(threshold int) error {
	if threshold <= 0 {
		return fmt.Errorf("%w: threshold %d must be positive", ErrInvalidArgument, threshold)
	}
	c.threshold = threshold
	return nil
}

// RenderCommand returns the motion fragment for a pending change and marks the
// channel as moving. It returns "" when nothing is pending.
func (c *Channel) RenderCommand() string {
	if !c.pending {
		return ""
	}
	c.pending = false
	c.moving = true
	speed := -1
	if c.hasSpeed {
		speed = c.speed
	}
	return motionFragment(c.index, c.position, speed)
}

// IsSettled reports whether a moving channel has reached its target, given the
// pulse width observed on the board. A settled channel stops moving.
func (c *Channel) IsSettled(observed int) bool {
	if !c.moving {
		return false
	}
	if abs(c.position-observed) < c.threshold {
		c.moving = false
		return true
	}
	return false
}

func (c *Channel) String() string {
	name := ""
	if c.name != "" {
		name = " " + c.name
	}
	return fmt.Sprintf("<Servo%s: #%d pos=%d(%.1f°) range=%d...%d(%.1f°...%.1f°)>",
		name, c.index, c.position, c.Degrees(), c.min, c.max, c.degMin, c.degMax)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
