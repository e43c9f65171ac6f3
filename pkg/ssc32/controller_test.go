package ssc32

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/ssc32/pkg/transport"
)

const testVersion = "SSC32-V2.50USB"

// board answers VER like an SSC-32 and delegates everything else to respond.
func board(respond func(line string) []byte) func(string) []byte {
	return func(line string) []byte {
		if line == versionCommand {
			return []byte(testVersion + "\r")
		}
		if respond != nil {
			return respond(line)
		}
		return nil
	}
}

func newTestController(t *testing.T, respond func(line string) []byte, opts ...Option) (*Controller, *transport.Mock) {
	t.Helper()
	m := &transport.Mock{Respond: board(respond)}
	c, err := New(m, opts...)
	require.NoError(t, err)
	m.Lines = nil
	return c, m
}

func TestNew(t *testing.T) {
	c, m := newTestController(t, nil, WithChannelCount(4))
	assert.Equal(t, testVersion, c.Version())
	assert.Equal(t, 4, c.Len())
	assert.Equal(t, 1, m.Resets, "input is flushed before the version query")
	assert.Equal(t, "<SSC32: version=\"SSC32-V2.50USB\" servos=4>", c.String())

	_, ok := c.Autocommit()
	assert.False(t, ok)
}

func TestNew_NotRecognized(t *testing.T) {
	m := &transport.Mock{Respond: func(line string) []byte { return []byte("FOO-1.0\r") }}
	_, err := New(m)
	assert.ErrorIs(t, err, ErrDeviceNotRecognized)
}

func TestNew_NoResponse(t *testing.T) {
	_, err := New(&transport.Mock{})
	assert.ErrorIs(t, err, ErrTransport)
}

func TestNew_ChannelCount(t *testing.T) {
	for _, n := range []int{0, -1, 33} {
		_, err := New(&transport.Mock{Respond: board(nil)}, WithChannelCount(n))
		assert.ErrorIs(t, err, ErrInvalidArgument, "count %d", n)
	}

	c, _ := newTestController(t, nil)
	assert.Equal(t, MaxChannels, c.Len())
}

func TestController_Channel(t *testing.T) {
	c, _ := newTestController(t, nil, WithChannelCount(4))
	require.NoError(t, c.SetName(2, "elbow"))

	ch, err := c.Channel(2)
	require.NoError(t, err)
	assert.Equal(t, "ELBOW", ch.Name())

	byName, err := c.Channel("Elbow")
	require.NoError(t, err)
	assert.Same(t, ch, byName)

	byRef, err := c.Channel(ch)
	require.NoError(t, err)
	assert.Same(t, ch, byRef)

	_, err = c.Channel(4)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = c.Channel(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = c.Channel("wrist")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Channel("")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Channel(newChannel(1))
	assert.ErrorIs(t, err, ErrNotFound, "a channel of another controller")
	_, err = c.Channel(1.5)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestController_SetName(t *testing.T) {
	c, _ := newTestController(t, nil, WithChannelCount(4))
	require.NoError(t, c.SetName(0, "base"))

	err := c.SetName(1, "BASE")
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	// renaming a channel to its own name is fine
	require.NoError(t, c.SetName("base", "Base"))

	assert.ErrorIs(t, c.SetName(1, "#1"), ErrInvalidArgument)
	assert.ErrorIs(t, c.SetName(1, "left arm"), ErrInvalidArgument)

	require.NoError(t, c.SetName(0, ""))
	_, err = c.Channel("BASE")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, c.SetName(1, "BASE"))
}

func TestController_SetDegreesRender(t *testing.T) {
	c, m := newTestController(t, nil, WithChannelCount(4))

	require.NoError(t, c.SetDegrees(context.Background(), 0, 0))
	ch, _ := c.Channel(0)
	assert.Equal(t, 1500, ch.Position())
	assert.Equal(t, "#0P1500", ch.RenderCommand())
	assert.Empty(t, m.Lines, "nothing is written without a commit")
}

func TestController_Commit(t *testing.T) {
	ctx := context.Background()
	c, m := newTestController(t, nil, WithChannelCount(4))

	require.NoError(t, c.SetPosition(ctx, 1, 1000))
	require.NoError(t, c.SetPosition(ctx, 3, 2000))
	require.NoError(t, c.Commit(ctx, 2*time.Second))
	assert.Equal(t, []string{"#1P1000#3P2000T2000"}, m.Lines)

	for _, i := range []int{1, 3} {
		ch, _ := c.Channel(i)
		assert.False(t, ch.Pending())
		assert.True(t, ch.Moving())
	}

	require.NoError(t, c.Commit(ctx, 2*time.Second))
	assert.Len(t, m.Lines, 1, "an empty commit writes nothing")
}

func TestController_CommitInvalidTime(t *testing.T) {
	ctx := context.Background()
	c, m := newTestController(t, nil, WithChannelCount(4))
	require.NoError(t, c.SetPosition(ctx, 0, 1000))

	assert.ErrorIs(t, c.Commit(ctx, 70*time.Second), ErrInvalidArgument)
	assert.Empty(t, m.Lines)
	ch, _ := c.Channel(0)
	assert.True(t, ch.Pending(), "a rejected commit keeps the change pending")
}

func TestController_CommitCanceled(t *testing.T) {
	c, m := newTestController(t, nil, WithChannelCount(4))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, c.SetPosition(ctx, 0, 1000))
	assert.ErrorIs(t, c.Commit(ctx, 0), context.Canceled)
	assert.Empty(t, m.Lines)
}

func TestController_Autocommit(t *testing.T) {
	ctx := context.Background()
	c, m := newTestController(t, nil, WithChannelCount(4), WithAutocommit(500*time.Millisecond))

	d, ok := c.Autocommit()
	assert.True(t, ok)
	assert.Equal(t, 500*time.Millisecond, d)

	require.NoError(t, c.SetPosition(ctx, 2, 1800))
	assert.Equal(t, []string{"#2P1800T500"}, m.Lines)

	// every setter commits on its own
	require.NoError(t, c.SetDegrees(ctx, 1, 90))
	require.NoError(t, c.SetRadians(ctx, 0, 0))
	assert.Equal(t, []string{"#2P1800T500", "#1P2500T500", "#0P1500T500"}, m.Lines)

	// a clamp from new limits is pending too and rides along with the next commit
	ch3, _ := c.Channel(3)
	require.NoError(t, ch3.SetLimits(1600, 2500))
	require.NoError(t, c.SetPosition(ctx, 2, 1700))
	assert.Equal(t, "#2P1700#3P1600T500", m.Lines[3])

	c.DisableAutocommit()
	require.NoError(t, c.SetPosition(ctx, 2, 1000))
	assert.Len(t, m.Lines, 4)

	assert.ErrorIs(t, c.SetAutocommit(-time.Second), ErrInvalidArgument)
}

func TestController_MoveSingle(t *testing.T) {
	ctx := context.Background()
	c, m := newTestController(t, nil, WithChannelCount(4))

	require.NoError(t, c.SetPosition(ctx, 0, 1000))
	require.NoError(t, c.SetPosition(ctx, 1, 1100))
	require.NoError(t, c.MoveSingle(ctx, 1, 0))
	assert.Equal(t, []string{"#1P1100"}, m.Lines)

	ch0, _ := c.Channel(0)
	assert.True(t, ch0.Pending(), "other channels stay pending")

	require.NoError(t, c.MoveSingle(ctx, 1, time.Second))
	assert.Len(t, m.Lines, 1, "nothing pending on channel 1")
}

func TestController_Stop(t *testing.T) {
	ctx := context.Background()
	c, m := newTestController(t, nil)

	require.NoError(t, c.SetPosition(ctx, 5, 1000))
	require.NoError(t, c.Commit(ctx, 0))
	require.NoError(t, c.Stop(ctx, 5))
	assert.Equal(t, "STOP 5", m.Lines[len(m.Lines)-1])

	ch, _ := c.Channel(5)
	assert.False(t, ch.Moving())
}

func TestController_SetBinaryOutput(t *testing.T) {
	ctx := context.Background()
	c, m := newTestController(t, nil)

	require.NoError(t, c.SetBinaryOutput(ctx, 4, 1))
	require.NoError(t, c.SetBinaryOutput(ctx, 4, 0))
	assert.Equal(t, []string{"#4H", "#4L"}, m.Lines)
}

func TestController_SetByteOutput(t *testing.T) {
	ctx := context.Background()
	c, m := newTestController(t, nil)

	assert.ErrorIs(t, c.SetByteOutput(ctx, 0, 256), ErrInvalidArgument)
	assert.ErrorIs(t, c.SetByteOutput(ctx, -1, 1), ErrInvalidArgument)
	assert.ErrorIs(t, c.SetByteOutput(ctx, 0, -1), ErrInvalidArgument)
	assert.ErrorIs(t, c.SetByteOutput(ctx, 4, 1), ErrInvalidArgument)
	assert.Empty(t, m.Lines)

	require.NoError(t, c.SetByteOutput(ctx, 3, 255))
	assert.Equal(t, []string{"#3:255"}, m.Lines)

	small, _ := newTestController(t, nil, WithChannelCount(4))
	assert.ErrorIs(t, small.SetByteOutput(ctx, 0, 1), ErrInvalidArgument, "4 channels have no full bank")
}

func TestController_IsDone(t *testing.T) {
	ctx := context.Background()
	reply := byte('.')
	c, m := newTestController(t, func(line string) []byte {
		if line == doneCommand {
			return []byte{reply}
		}
		return nil
	})
	resets := m.Resets

	done, err := c.IsDone(ctx)
	require.NoError(t, err)
	assert.True(t, done)

	reply = '+'
	done, err = c.IsDone(ctx)
	require.NoError(t, err)
	assert.False(t, done)

	assert.Equal(t, []string{"Q", "Q"}, m.Lines)
	assert.Equal(t, resets+2, m.Resets, "stale input is flushed before each query")
}

func TestController_QueryPulseWidth(t *testing.T) {
	c, m := newTestController(t, func(line string) []byte {
		if line == "QP7" {
			return []byte{150}
		}
		return nil
	})

	pw, err := c.QueryPulseWidth(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1500, pw)
	assert.Equal(t, []string{"QP7"}, m.Lines)
}

func TestController_ReadAnalogInputs(t *testing.T) {
	ctx := context.Background()
	c, m := newTestController(t, nil)

	m.Queue(240, 30, 196)
	values, ok, err := c.ReadAnalogInputs(ctx, "ACD")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []uint8{240, 30, 196}, values)
	assert.Equal(t, []string{"VA VC VD "}, m.Lines)

	values, ok, err = c.ReadAnalogInputs(ctx, "Z")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, values)
	assert.Len(t, m.Lines, 1, "no valid inputs means no request")

	m.Queue(77)
	v, err := c.ReadAnalogInput(ctx, 'b')
	require.NoError(t, err)
	assert.Equal(t, uint8(77), v)

	_, err = c.ReadAnalogInput(ctx, 'E')
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestController_ReadDigitalInputs(t *testing.T) {
	ctx := context.Background()
	c, m := newTestController(t, nil)

	m.Queue('1', '0')
	values, ok, err := c.ReadDigitalInputs(ctx, "ab", true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []bool{true, false}, values)
	assert.Equal(t, []string{"AL BL "}, m.Lines)

	m.Queue('0')
	v, err := c.ReadDigitalInput(ctx, 'D', false)
	require.NoError(t, err)
	assert.False(t, v)
	assert.Equal(t, "D ", m.Lines[1])
}

func TestController_ShortRead(t *testing.T) {
	c, m := newTestController(t, nil)
	m.Queue(1)

	_, _, err := c.ReadAnalogInputs(context.Background(), "AB")
	assert.ErrorIs(t, err, ErrTransport)
}

func TestController_TransportErrors(t *testing.T) {
	c, m := newTestController(t, nil)
	m.WriteErr = errors.New("cable unplugged")

	err := c.SetBinaryOutput(context.Background(), 0, 1)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorContains(t, err, "cable unplugged")
}

func TestController_Close(t *testing.T) {
	c, m := newTestController(t, nil)
	require.NoError(t, c.Close())
	assert.True(t, m.Closed)
}

func TestParseRef(t *testing.T) {
	assert.Equal(t, 3, ParseRef("3"))
	assert.Equal(t, 12, ParseRef("#12"))
	assert.Equal(t, "grip", ParseRef("grip"))
	assert.Equal(t, "#grip", ParseRef("#grip"))
}
