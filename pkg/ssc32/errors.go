package ssc32

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument reports a value outside the range the board accepts.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound reports an unknown channel name.
	ErrNotFound = errors.New("channel not found")
	// ErrIndexOutOfRange reports a channel index beyond the configured count.
	ErrIndexOutOfRange = errors.New("channel index out of range")
	// ErrDeviceNotRecognized reports a firmware version without the SSC32 signature.
	ErrDeviceNotRecognized = errors.New("no SSC32 board detected")
	// ErrMalformedConfig reports an unparsable servo config file.
	ErrMalformedConfig = errors.New("malformed servo config")
	// ErrTransport wraps I/O failures of the underlying transport.
	ErrTransport = errors.New("transport failure")
	// ErrDuplicateName reports a channel name already used by another channel.
	ErrDuplicateName = fmt.Errorf("%w: duplicate channel name", ErrInvalidArgument)
)

// ConfigError locates a problem in a servo config file.
type ConfigError struct {
	Path string
	Line int
	Err  error
}

func (e *ConfigError) Error() string {
	path := e.Path
	if path == "" {
		path = "<config>"
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
