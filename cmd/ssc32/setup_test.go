package main

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/ssc32/pkg/ssc32"
	"github.com/gwillem/ssc32/pkg/transport"
)

func newJogController(t *testing.T) (*ssc32.Controller, *transport.Mock) {
	t.Helper()
	m := &transport.Mock{Respond: func(line string) []byte {
		if line == "VER" {
			return []byte("SSC32-V2.50USB\r")
		}
		return nil
	}}
	ctrl, err := ssc32.New(m, ssc32.WithChannelCount(4), ssc32.WithAutocommit(200*time.Millisecond))
	require.NoError(t, err)
	m.Lines = nil
	return ctrl, m
}

func TestNewJogModel(t *testing.T) {
	ctrl, _ := newJogController(t)
	require.NoError(t, ctrl.SetName(1, "grip"))
	grip, _ := ctrl.Channel(1)
	require.NoError(t, grip.SetLimits(1000, 2000))

	jm, err := newJogModel(ctrl)
	require.NoError(t, err)

	assert.Equal(t, map[int]int{1: 1000}, jm.minPos)
	assert.Equal(t, map[int]int{1: 2000}, jm.maxPos)
	for _, ch := range ctrl.Channels() {
		min, max := ch.Limits()
		assert.Equal(t, ssc32.DefaultMinPulse, min, "channel %d", ch.Index())
		assert.Equal(t, ssc32.DefaultMaxPulse, max, "channel %d", ch.Index())
	}
}

func TestJogModel_Keys(t *testing.T) {
	ctrl, m := newJogController(t)
	jm, err := newJogModel(ctrl)
	require.NoError(t, err)

	press := func(msg tea.KeyMsg) {
		next, _ := jm.Update(msg)
		jm = next.(jogModel)
	}

	press(tea.KeyMsg{Type: tea.KeyDown})
	press(tea.KeyMsg{Type: tea.KeyRight})
	require.NoError(t, jm.err)
	assert.Equal(t, []string{"#1P1510T200"}, m.Lines, "autocommit sends the jog with its own move time")

	press(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("[")})
	assert.Equal(t, 1510, jm.minPos[1])
	assert.True(t, jm.touched[1])

	press(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	assert.Equal(t, "#1P1500T200", m.Lines[len(m.Lines)-1])

	press(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	assert.NotContains(t, jm.minPos, 1)
}
