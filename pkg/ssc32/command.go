package ssc32

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Wire protocol of the SSC-32. Every command is ASCII and terminated by CR.
const (
	lineTerminator = '\r'
	maxLineLength  = 500
	maxMoveTime    = 65535 * time.Millisecond

	versionCommand = "VER"
	doneCommand    = "Q"

	boardSignature = "SSC32"
	doneMarker     = '.'
	pulseUnit      = 10 // QP reports pulse width in units of 10 µs
)

// motionFragment renders "#<ch>P<pw>", with "S<speed>" when speed is positive.
func motionFragment(index, pw, speed int) string {
	var b strings.Builder
	b.WriteByte('#')
	b.WriteString(strconv.Itoa(index))
	b.WriteByte('P')
	b.WriteString(strconv.Itoa(pw))
	if speed > 0 {
		b.WriteByte('S')
		b.WriteString(strconv.Itoa(speed))
	}
	return b.String()
}

// moveMillis validates a move duration. Zero means no duration.
func moveMillis(d time.Duration) (int, error) {
	if d < 0 || d > maxMoveTime {
		return 0, fmt.Errorf("%w: move time %s not in [0, %s]", ErrInvalidArgument, d, maxMoveTime)
	}
	return int(d.Milliseconds()), nil
}

// motionBatch joins fragments and appends "T<ms>" when there is something to move.
func motionBatch(fragments []string, ms int) string {
	cmd := strings.Join(fragments, "")
	if cmd != "" && ms > 0 {
		cmd += "T" + strconv.Itoa(ms)
	}
	return cmd
}

func binaryOutputCommand(index, level int) string {
	state := "H"
	if level == 0 {
		state = "L"
	}
	return "#" + strconv.Itoa(index) + state
}

func byteOutputCommand(bank, value int) string {
	return "#" + strconv.Itoa(bank) + ":" + strconv.Itoa(value)
}

func stopCommand(index int) string {
	return "STOP " + strconv.Itoa(index)
}

func queryPulseWidthCommand(index int) string {
	return "QP" + strconv.Itoa(index)
}

// analogReadCommand renders "V<x> " for each valid input letter and returns the
// number of result bytes the board will send.
func analogReadCommand(inputs string) (string, int) {
	var b strings.Builder
	count := 0
	for _, in := range []byte(ValidInputs(inputs)) {
		b.WriteByte('V')
		b.WriteByte(in)
		b.WriteByte(' ')
		count++
	}
	return b.String(), count
}

// digitalReadCommand renders "<x> " (or "<x>L " for latched reads) per valid input letter.
func digitalReadCommand(inputs string, latched bool) (string, int) {
	var b strings.Builder
	count := 0
	for _, in := range []byte(ValidInputs(inputs)) {
		b.WriteByte(in)
		if latched {
			b.WriteByte('L')
		}
		b.WriteByte(' ')
		count++
	}
	return b.String(), count
}

// ValidInputs returns the input letters the board will be asked for, upper-cased
// and in request order. Letters outside A..D are dropped. Read results line up
// with this string.
func ValidInputs(inputs string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(inputs) {
		if isInput(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isInput(r rune) bool {
	return r >= 'A' && r <= 'D'
}

func parsePulseWidth(b byte) int {
	return int(b) * pulseUnit
}

func parseDone(b byte) bool {
	return b == doneMarker
}

func parseDigital(b byte) bool {
	return b == '1'
}

func isBoardVersion(version string) bool {
	return strings.Contains(version, boardSignature)
}
