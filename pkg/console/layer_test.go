package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayer_NilIsNoOp(t *testing.T) {
	var l *Layer
	assert.NotPanics(t, func() {
		l.Write("x")
		l.WriteLine("x")
		l.WriteError("x")
		l.WriteInfo("x")
		l.WriteInfoColored("x", "y", ColorRed)
		l.SetForeColor(ColorGreen)
		l.SetBackgroundColor(ColorBlack)
		l.StartProgress(10)
		l.WriteProgress(5)
		l.EndProgress()
		l.Beep()
		l.AddInput("ignored")
	})
	assert.False(t, l.IsInProgress())
	assert.False(t, l.Confirm("sure?"))
	assert.Zero(t, l.Pending())
	assert.Nil(t, l.IO())

	_, err := l.ReadLine("> ", nil)
	assert.ErrorIs(t, err, ErrNoInput)
	_, err = l.ReadPassword("pass: ")
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestLayer_WithoutIOUsesQueuedInput(t *testing.T) {
	l := NewLayer(nil)
	l.AddInput("use auxiliary/tcp_forward", "run")
	assert.Equal(t, 2, l.Pending())

	line, err := l.ReadLine("> ", nil)
	require.NoError(t, err)
	assert.Equal(t, "use auxiliary/tcp_forward", line)

	line, err = l.ReadLine("> ", nil)
	require.NoError(t, err)
	assert.Equal(t, "run", line)

	_, err = l.ReadLine("> ", nil)
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestLayer_QueuedInputBeforeIO(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(strings.NewReader("typed\n"), &out, &out, true)
	l := NewLayer(term)
	l.AddInput("queued")

	line, err := l.ReadLine("> ", nil)
	require.NoError(t, err)
	assert.Equal(t, "queued", line)
	assert.Contains(t, out.String(), "> queued")

	line, err = l.ReadLine("> ", nil)
	require.NoError(t, err)
	assert.Equal(t, "typed", line)
}

func TestLayer_Confirm(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{"yes", true},
		{"Y", true},
		{"true", true},
		{"1", true},
		{"no", false},
		{"n", false},
		{"false", false},
		{"maybe", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		l := NewLayer(NewTerminal(strings.NewReader(tt.answer+"\n"), &out, &out, true))
		assert.Equal(t, tt.want, l.Confirm("create it?"), tt.answer)
		assert.Contains(t, out.String(), "create it?")
	}
}

func TestParseBool(t *testing.T) {
	assert.True(t, ParseBool(" YES "))
	assert.True(t, ParseBool("t"))
	assert.False(t, ParseBool("off"))
	assert.False(t, ParseBool("garbage"))
}
