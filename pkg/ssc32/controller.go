// Package ssc32 drives the Lynxmotion SSC-32 serial servo controller.
//
// A Controller owns one Channel per servo output. Position changes are
// recorded on the channels and sent to the board as one batched command
// line on Commit, or immediately when autocommit is enabled.
package ssc32

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/gwillem/ssc32/pkg/transport"
)

// MaxChannels is the number of servo outputs on an SSC-32.
const MaxChannels = MaxChannel + 1

// Transport is the byte connection to the board.
type Transport interface {
	io.ReadWriter
	ResetInputBuffer() error
}

// Controller talks to one SSC-32 board. It is not safe for concurrent use.
type Controller struct {
	t        Transport
	log      zerolog.Logger
	channels []*Channel
	version  string

	autocommit   time.Duration
	autocommitOn bool

	configPath  string
	description string
}

type options struct {
	count      int
	autocommit *time.Duration
	logger     zerolog.Logger
	configPath string
}

// Option configures a Controller.
type Option func(*options)

// WithChannelCount sets the number of channels (1..32, default 32).
func WithChannelCount(n int) Option {
	return func(o *options) { o.count = n }
}

// WithAutocommit commits all pending channels with move time d after every position change.
func WithAutocommit(d time.Duration) Option {
	return func(o *options) { o.autocommit = &d }
}

// WithLogger sets the logger used for protocol traffic.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithConfigFile loads servo names and limits from path after connecting.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configPath = path }
}

// New connects to a board over t. It fails with ErrDeviceNotRecognized if the
// firmware version does not identify an SSC-32.
func New(t Transport, opts ...Option) (*Controller, error) {
	o := options{count: MaxChannels, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.count < 1 || o.count > MaxChannels {
		return nil, fmt.Errorf("%w: channel count %d not in [1, %d]", ErrInvalidArgument, o.count, MaxChannels)
	}

	c := &Controller{
		t:   t,
		log: o.logger,
	}
	if o.autocommit != nil {
		if err := c.SetAutocommit(*o.autocommit); err != nil {
			return nil, err
		}
	}

	if err := t.ResetInputBuffer(); err != nil {
		return nil, fmt.Errorf("%w: flush input: %w", ErrTransport, err)
	}

	ctx := context.Background()
	version, err := c.FirmwareVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("read firmware version: %w", err)
	}
	if !isBoardVersion(version) {
		return nil, fmt.Errorf("%w: firmware reported %q", ErrDeviceNotRecognized, version)
	}
	c.version = version
	c.log.Debug().Str("version", version).Int("channels", o.count).Msg("board detected")

	c.channels = make([]*Channel, o.count)
	for i := range c.channels {
		c.channels[i] = newChannel(i)
	}

	if o.configPath != "" {
		if err := c.LoadConfig(o.configPath); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Open opens a serial port, wakes the board's baud rate detection and connects.
func Open(cfg transport.SerialConfig, opts ...Option) (*Controller, error) {
	port, err := transport.OpenSerial(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	// Boards with automatic baud detection lock on after a few CRs.
	if _, err := port.Write([]byte(strings.Repeat("\r", 10))); err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: write preamble: %w", ErrTransport, err)
	}

	c, err := New(port, opts...)
	if err != nil {
		port.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the transport if it can be closed.
func (c *Controller) Close() error {
	if closer, ok := c.t.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Version returns the firmware version read at connect time.
func (c *Controller) Version() string { return c.version }

// Len returns the number of channels.
func (c *Controller) Len() int { return len(c.channels) }

// Channels returns all channels in index order.
func (c *Controller) Channels() []*Channel {
	return append([]*Channel(nil), c.channels...)
}

// Channel resolves a channel by index (int), name (string) or a *Channel of
// this controller.
func (c *Controller) Channel(ref any) (*Channel, error) {
	switch r := ref.(type) {
	case int:
		if r < 0 || r >= len(c.channels) {
			return nil, fmt.Errorf("%w: %d not in [0, %d]", ErrIndexOutOfRange, r, len(c.channels)-1)
		}
		return c.channels[r], nil
	case string:
		name := strings.ToUpper(r)
		if name != "" {
			for _, ch := range c.channels {
				if ch.name == name {
					return ch, nil
				}
			}
		}
		return nil, fmt.Errorf("%w: %q", ErrNotFound, r)
	case *Channel:
		if r == nil || r.index >= len(c.channels) || c.channels[r.index] != r {
			return nil, fmt.Errorf("%w: channel does not belong to this controller", ErrNotFound)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("%w: channel reference must be int, string or *Channel, got %T", ErrInvalidArgument, ref)
	}
}

// ParseRef turns command line text into a channel reference: an index when it
// is a number, a name otherwise.
func ParseRef(s string) any {
	if i, err := strconv.Atoi(strings.TrimPrefix(s, "#")); err == nil {
		return i
	}
	return s
}

// SetName names a channel. Names are upper-cased and must be unique; an empty
// name clears it.
func (c *Controller) SetName(ref any, name string) error {
	ch, err := c.Channel(ref)
	if err != nil {
		return err
	}
	name = strings.ToUpper(strings.TrimSpace(name))
	if err := validName(name); err != nil {
		return err
	}
	if name != "" {
		for _, other := range c.channels {
			if other != ch && other.name == name {
				return fmt.Errorf("%w: %q is channel %d", ErrDuplicateName, name, other.index)
			}
		}
	}
	ch.name = name
	return nil
}

// validName rejects names that would not survive a servo config round trip.
func validName(name string) error {
	if strings.HasPrefix(name, "#") || strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: channel name %q", ErrInvalidArgument, name)
	}
	return nil
}

// SetAutocommit makes every position change commit immediately with move time d.
func (c *Controller) SetAutocommit(d time.Duration) error {
	if _, err := moveMillis(d); err != nil {
		return err
	}
	c.autocommit = d
	c.autocommitOn = true
	return nil
}

// DisableAutocommit returns to manual commits.
func (c *Controller) DisableAutocommit() {
	c.autocommit = 0
	c.autocommitOn = false
}

// Autocommit returns the autocommit move time, and false when commits are manual.
func (c *Controller) Autocommit() (time.Duration, bool) {
	return c.autocommit, c.autocommitOn
}

// SetPosition sets a channel's pulse width. With autocommit enabled every
// pending channel is committed, not only this one.
func (c *Controller) SetPosition(ctx context.Context, ref any, pw int) error {
	ch, err := c.Channel(ref)
	if err != nil {
		return err
	}
	ch.setPosition(pw)
	return c.changed(ctx)
}

// SetDegrees sets a channel's position as an angle. See SetPosition.
func (c *Controller) SetDegrees(ctx context.Context, ref any, deg float64) error {
	ch, err := c.Channel(ref)
	if err != nil {
		return err
	}
	if err := ch.setDegrees(deg); err != nil {
		return err
	}
	return c.changed(ctx)
}

// SetRadians sets a channel's position in radians. See SetPosition.
func (c *Controller) SetRadians(ctx context.Context, ref any, rad float64) error {
	ch, err := c.Channel(ref)
	if err != nil {
		return err
	}
	if err := ch.setRadians(rad); err != nil {
		return err
	}
	return c.changed(ctx)
}

func (c *Controller) changed(ctx context.Context) error {
	if !c.autocommitOn {
		return nil
	}
	return c.Commit(ctx, c.autocommit)
}

// Commit sends every pending channel as one command. A non-zero d is the time
// for the whole move (max 65535ms). Nothing is written when no channel is pending.
func (c *Controller) Commit(ctx context.Context, d time.Duration) error {
	ms, err := moveMillis(d)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	fragments := make([]string, 0, len(c.channels))
	for _, ch := range c.channels {
		fragments = append(fragments, ch.RenderCommand())
	}
	cmd := motionBatch(fragments, ms)
	if cmd == "" {
		return nil
	}
	return c.writeLine(cmd)
}

// MoveSingle sends only the given channel's pending change.
func (c *Controller) MoveSingle(ctx context.Context, ref any, d time.Duration) error {
	ch, err := c.Channel(ref)
	if err != nil {
		return err
	}
	ms, err := moveMillis(d)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cmd := motionBatch([]string{ch.RenderCommand()}, ms)
	if cmd == "" {
		return nil
	}
	return c.writeLine(cmd)
}

// Stop stops a channel where it is.
func (c *Controller) Stop(ctx context.Context, ref any) error {
	ch, err := c.Channel(ref)
	if err != nil {
		return err
	}
	if err := c.send(ctx, stopCommand(ch.index)); err != nil {
		return err
	}
	ch.moving = false
	return nil
}

// SetBinaryOutput drives a channel's signal line low (level 0) or high.
func (c *Controller) SetBinaryOutput(ctx context.Context, ref any, level int) error {
	ch, err := c.Channel(ref)
	if err != nil {
		return err
	}
	return c.send(ctx, binaryOutputCommand(ch.index, level))
}

// SetByteOutput sets the eight outputs of a bank (bank 0 is channels 0-7) to value.
func (c *Controller) SetByteOutput(ctx context.Context, bank, value int) error {
	banks := len(c.channels) / 8
	if bank < 0 || bank >= banks {
		return fmt.Errorf("%w: bank %d not in [0, %d)", ErrInvalidArgument, bank, banks)
	}
	if value < 0 || value > 255 {
		return fmt.Errorf("%w: byte value %d not in [0, 255]", ErrInvalidArgument, value)
	}
	return c.send(ctx, byteOutputCommand(bank, value))
}

// FirmwareVersion asks the board for its firmware version.
func (c *Controller) FirmwareVersion(ctx context.Context) (string, error) {
	if err := c.send(ctx, versionCommand); err != nil {
		return "", err
	}
	return c.readLine()
}

// IsDone reports whether the board has finished all moves.
func (c *Controller) IsDone(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := c.t.ResetInputBuffer(); err != nil {
		return false, fmt.Errorf("%w: flush input: %w", ErrTransport, err)
	}
	if err := c.writeLine(doneCommand); err != nil {
		return false, err
	}
	b, err := c.readBytes(1)
	if err != nil {
		return false, err
	}
	return parseDone(b[0]), nil
}

// QueryPulseWidth returns the pulse width the board is currently outputting on a
// channel, with a resolution of 10µs.
func (c *Controller) QueryPulseWidth(ctx context.Context, ref any) (int, error) {
	ch, err := c.Channel(ref)
	if err != nil {
		return 0, err
	}
	if err := c.send(ctx, queryPulseWidthCommand(ch.index)); err != nil {
		return 0, err
	}
	b, err := c.readBytes(1)
	if err != nil {
		return 0, err
	}
	return parsePulseWidth(b[0]), nil
}

// ReadAnalogInputs reads the analog inputs named by inputs (letters A-D, other
// letters are ignored). Values are returned in request order; ok is false when
// no valid input was requested, in which case nothing is sent.
func (c *Controller) ReadAnalogInputs(ctx context.Context, inputs string) (values []uint8, ok bool, err error) {
	cmd, count := analogReadCommand(inputs)
	if count == 0 {
		return nil, false, nil
	}
	if err := c.send(ctx, cmd); err != nil {
		return nil, false, err
	}
	b, err := c.readBytes(count)
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// ReadAnalogInput reads a single analog input (A-D).
func (c *Controller) ReadAnalogInput(ctx context.Context, input rune) (uint8, error) {
	if !isInput(unicode.ToUpper(input)) {
		return 0, fmt.Errorf("%w: input %q not in A-D", ErrInvalidArgument, input)
	}
	values, _, err := c.ReadAnalogInputs(ctx, string(input))
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

// ReadDigitalInputs reads the digital inputs named by inputs (letters A-D).
// With latched set the board reports whether the input went low since the
// last read. See ReadAnalogInputs for the result shape.
func (c *Controller) ReadDigitalInputs(ctx context.Context, inputs string, latched bool) (values []bool, ok bool, err error) {
	cmd, count := digitalReadCommand(inputs, latched)
	if count == 0 {
		return nil, false, nil
	}
	if err := c.send(ctx, cmd); err != nil {
		return nil, false, err
	}
	b, err := c.readBytes(count)
	if err != nil {
		return nil, false, err
	}
	values = make([]bool, len(b))
	for i, v := range b {
		values[i] = parseDigital(v)
	}
	return values, true, nil
}

// ReadDigitalInput reads a single digital input (A-D).
func (c *Controller) ReadDigitalInput(ctx context.Context, input rune, latched bool) (bool, error) {
	if !isInput(unicode.ToUpper(input)) {
		return false, fmt.Errorf("%w: input %q not in A-D", ErrInvalidArgument, input)
	}
	values, _, err := c.ReadDigitalInputs(ctx, string(input), latched)
	if err != nil {
		return false, err
	}
	return values[0], nil
}

func (c *Controller) String() string {
	return fmt.Sprintf("<SSC32: version=%q servos=%d>", c.version, len(c.channels))
}

func (c *Controller) send(ctx context.Context, cmd string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.writeLine(cmd)
}

func (c *Controller) writeLine(cmd string) error {
	c.log.Debug().Str("tx", cmd).Msg("write")
	if _, err := c.t.Write([]byte(cmd + string(lineTerminator))); err != nil {
		return fmt.Errorf("%w: write %q: %w", ErrTransport, cmd, err)
	}
	return nil
}

// readLine reads up to a CR (not included) or maxLineLength bytes.
func (c *Controller) readLine() (string, error) {
	var line []byte
	buf := make([]byte, 1)
	for len(line) < maxLineLength {
		n, err := c.t.Read(buf)
		if err != nil {
			return "", fmt.Errorf("%w: read line: %w", ErrTransport, err)
		}
		if n == 0 {
			return "", fmt.Errorf("%w: read line: %w", ErrTransport, io.ErrNoProgress)
		}
		if buf[0] == lineTerminator {
			break
		}
		line = append(line, buf[0])
	}
	c.log.Debug().Str("rx", string(line)).Msg("read")
	return string(line), nil
}

func (c *Controller) readBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.t, buf); err != nil {
		return nil, fmt.Errorf("%w: read %d bytes: %w", ErrTransport, n, err)
	}
	c.log.Debug().Hex("rx", buf).Msg("read")
	return buf, nil
}
