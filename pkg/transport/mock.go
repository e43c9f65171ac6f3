package transport

import (
	"io"
)

// Mock is an in-memory transport for tests.
type Mock struct {
	ReadData  []byte
	ReadErr   error
	WriteData []byte
	WriteErr  error
	Closed    bool
	Resets    int

	// Lines holds every written command with its CR terminator removed.
	Lines []string

	// Respond, when set, is called for each write and its result is queued
	// as board output.
	Respond func(line string) []byte
}

func (m *Mock) Read(p []byte) (int, error) {
	if m.ReadErr != nil {
		return 0, m.ReadErr
	}
	n := copy(p, m.ReadData)
	m.ReadData = m.ReadData[n:]
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (m *Mock) Write(p []byte) (int, error) {
	if m.WriteErr != nil {
		return 0, m.WriteErr
	}
	m.WriteData = append(m.WriteData, p...)
	line := string(p)
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	m.Lines = append(m.Lines, line)
	if m.Respond != nil {
		m.ReadData = append(m.ReadData, m.Respond(line)...)
	}
	return len(p), nil
}

// ResetInputBuffer counts the reset but keeps ReadData, since tests queue
// responses ahead of the commands that flush input.
func (m *Mock) ResetInputBuffer() error {
	m.Resets++
	return nil
}

func (m *Mock) Close() error {
	m.Closed = true
	return nil
}

// Queue appends bytes to the board output.
func (m *Mock) Queue(b ...byte) {
	m.ReadData = append(m.ReadData, b...)
}
