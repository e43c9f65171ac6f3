// Package transport provides byte transports for talking to servo controller boards.
package transport

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
)

// Default serial settings. The SSC-32 baud rate is selected with jumpers;
// 115200 is the factory setting on the SSC-32U.
const (
	DefaultBaudRate = 115200
	DefaultTimeout  = time.Second
)

// ErrTimeout is returned by Serial.Read when no byte arrived within the read timeout.
var ErrTimeout = errors.New("serial read timeout")

// SerialConfig holds configuration for opening a serial port.
type SerialConfig struct {
	Port     string
	BaudRate int
	Timeout  time.Duration
}

// Serial is a transport backed by a hardware serial port.
type Serial struct {
	port     serial.Port
	portName string
	timeout  time.Duration
}

// OpenSerial opens a serial port with the given configuration.
func OpenSerial(cfg SerialConfig) (*Serial, error) {
	if cfg.Port == "" {
		return nil, errors.New("serial port path is required")
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}

	if err := port.SetReadTimeout(cfg.Timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	return &Serial{
		port:     port,
		portName: cfg.Port,
		timeout:  cfg.Timeout,
	}, nil
}

// Read reads from the port. A read that times out without data returns ErrTimeout
// instead of (0, nil), so io.ReadFull cannot spin on a silent board.
func (s *Serial) Read(p []byte) (int, error) {
	n, err := s.port.Read(p)
	if err == nil && n == 0 && len(p) > 0 {
		return 0, fmt.Errorf("%s: %w after %s", s.portName, ErrTimeout, s.timeout)
	}
	return n, err
}

func (s *Serial) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

// ResetInputBuffer discards any bytes received but not yet read.
func (s *Serial) ResetInputBuffer() error {
	return s.port.ResetInputBuffer()
}

func (s *Serial) Close() error {
	return s.port.Close()
}

// SetReadTimeout changes the per-read timeout.
func (s *Serial) SetReadTimeout(timeout time.Duration) error {
	s.timeout = timeout
	return s.port.SetReadTimeout(timeout)
}

// PortName returns the serial port name.
func (s *Serial) PortName() string {
	return s.portName
}

// Ports lists the serial ports that could host a controller board.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return filterPorts(ports), nil
}

func filterPorts(ports []string) []string {
	var out []string
	for _, p := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(p, "Bluetooth") {
			continue
		}
		out = append(out, p)
	}
	return out
}
