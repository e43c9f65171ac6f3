package ssc32

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannel_SetPositionClamps(t *testing.T) {
	tests := []struct {
		in       int
		expected int
	}{
		{1500, 1500},
		{500, 500},
		{2500, 2500},
		{100, 500},   // below min -> min
		{3000, 2500}, // above max -> max
		{-20, 500},
	}

	for _, tt := range tests {
		ch := newChannel(0)
		ch.setPosition(tt.in)
		assert.Equal(t, tt.expected, ch.Position(), "SetPosition(%d)", tt.in)

		// clamping an already clamped value is a no-op
		ch.setPosition(ch.Position())
		assert.Equal(t, tt.expected, ch.Position())
	}
}

func TestChannel_SetPositionAlwaysPending(t *testing.T) {
	ch := newChannel(2)
	assert.False(t, ch.Pending(), "new channel should not be pending")

	ch.setPosition(DefaultPosition)
	assert.True(t, ch.Pending(), "writing the same value should still mark pending")
}

func TestChannel_SetDegrees(t *testing.T) {
	tests := []struct {
		deg      float64
		expected int
	}{
		{0, 1500},
		{-90, 500},
		{90, 2500},
		{45, 2000},
		{-45, 1000},
		{120, 2500}, // outside range -> clamped
	}

	for _, tt := range tests {
		ch := newChannel(0)
		require.NoError(t, ch.setDegrees(tt.deg))
		assert.Equal(t, tt.expected, ch.Position(), "SetDegrees(%v)", tt.deg)
	}
}

func TestChannel_SetRadians(t *testing.T) {
	ch := newChannel(0)
	require.NoError(t, ch.setRadians(math.Pi/4))
	assert.Equal(t, 2000, ch.Position())
	assert.InDelta(t, math.Pi/4, ch.Radians(), 1e-9)
}

func TestChannel_DegreesRoundTrip(t *testing.T) {
	ranges := []struct {
		degMin, degMax float64
		min, max       int
	}{
		{-90, 90, 500, 2500},
		{-75, 30, 500, 2500},
		{-45, 60, 900, 2100},
	}

	for _, r := range ranges {
		ch := newChannel(0)
		require.NoError(t, ch.SetLimits(r.min, r.max))
		ch.SetAngularRange(r.degMin, r.degMax)

		for pw := r.min; pw <= r.max; pw += 7 {
			deg := ch.DegreesAt(pw)
			require.NoError(t, ch.setDegrees(deg))
			assert.InDelta(t, pw, ch.Position(), 1, "round trip %d -> %f", pw, deg)
		}
	}
}

func TestChannel_DegenerateAngularRange(t *testing.T) {
	ch := newChannel(0)
	ch.SetAngularRange(0, 0)

	err := ch.setDegrees(10)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.False(t, ch.Pending())
	assert.Equal(t, DefaultPosition, ch.Position())
}

func TestChannel_Speed(t *testing.T) {
	ch := newChannel(0)

	_, ok := ch.Speed()
	assert.False(t, ok)

	require.NoError(t, ch.SetSpeed(300))
	speed, ok := ch.Speed()
	assert.True(t, ok)
	assert.Equal(t, 300, speed)

	require.NoError(t, ch.SetSpeed(-1))
	_, ok = ch.Speed()
	assert.False(t, ok, "-1 should restore the board default")

	assert.ErrorIs(t, ch.SetSpeed(-5), ErrInvalidArgument)
}

func TestChannel_RenderCommand(t *testing.T) {
	ch := newChannel(3)
	assert.Equal(t, "", ch.RenderCommand(), "nothing pending")

	ch.setPosition(1200)
	assert.Equal(t, "#3P1200", ch.RenderCommand())
	assert.False(t, ch.Pending())
	assert.True(t, ch.Moving())
	assert.Equal(t, "", ch.RenderCommand(), "pending is consumed once")

	require.NoError(t, ch.SetSpeed(750))
	ch.setPosition(1300)
	assert.Equal(t, "#3P1300S750", ch.RenderCommand())

	require.NoError(t, ch.SetSpeed(0))
	ch.setPosition(1300)
	assert.Equal(t, "#3P1300", ch.RenderCommand(), "zero speed is not sent")
}

func TestChannel_IsSettled(t *testing.T) {
	ch := newChannel(0)
	assert.False(t, ch.IsSettled(1500), "a channel that is not moving has nothing to settle")

	ch.setPosition(2000)
	ch.RenderCommand()

	assert.False(t, ch.IsSettled(1500))
	assert.True(t, ch.Moving())
	assert.False(t, ch.IsSettled(2000-DefaultThreshold))

	assert.True(t, ch.IsSettled(1990))
	assert.False(t, ch.Moving())
	assert.False(t, ch.IsSettled(2000), "already settled")
}

func TestChannel_SetLimits(t *testing.T) {
	ch := newChannel(0)
	assert.ErrorIs(t, ch.SetLimits(2000, 1000), ErrInvalidArgument)
	assert.ErrorIs(t, ch.SetLimits(1000, 1000), ErrInvalidArgument)

	require.NoError(t, ch.SetLimits(1000, 2000))
	assert.False(t, ch.Pending(), "1500 is still inside the limits")

	require.NoError(t, ch.SetLimits(1600, 2000))
	assert.Equal(t, 1600, ch.Position())
	assert.True(t, ch.Pending())
}

func TestChannel_SetThreshold(t *testing.T) {
	ch := newChannel(0)
	assert.ErrorIs(t, ch.SetThreshold(0), ErrInvalidArgument)
	require.NoError(t, ch.SetThreshold(50))
	assert.Equal(t, 50, ch.Threshold())
}

func TestChannel_String(t *testing.T) {
	ch := newChannel(7)
	ch.name = "GRIP"
	assert.Equal(t, "<Servo GRIP: #7 pos=1500(0.0°) range=500...2500(-90.0°...90.0°)>", ch.String())
}
