package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTerminal(input string) (*Terminal, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewTerminal(strings.NewReader(input), &out, &errOut, true), &out, &errOut
}

func TestTerminal_Writes(t *testing.T) {
	term, out, errOut := newTestTerminal("")

	term.WriteLine("hello")
	term.WriteInfo("relay started")
	term.WriteInfoColored("status: ", "OK", ColorGreen)
	term.WriteError("bind failed")

	assert.Contains(t, out.String(), "hello\n")
	assert.Contains(t, out.String(), "[*] relay started")
	assert.Contains(t, out.String(), "[*] status: OK")
	assert.Contains(t, errOut.String(), "[!] bind failed")
}

func TestTerminal_ReadLine(t *testing.T) {
	term, out, _ := newTestTerminal("first\r\nsecond")

	line, err := term.ReadLine("xploit> ", nil)
	require.NoError(t, err)
	assert.Equal(t, "first", line)
	assert.Contains(t, out.String(), "xploit> ")

	line, err = term.ReadLine("", nil)
	require.NoError(t, err)
	assert.Equal(t, "second", line)

	_, err = term.ReadLine("", nil)
	assert.Error(t, err)
}

func TestTerminal_ReadPasswordFallsBackToLine(t *testing.T) {
	term, _, _ := newTestTerminal("s3cret\n")
	pass, err := term.ReadPassword("Password: ")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pass)
}

func TestTerminal_Progress(t *testing.T) {
	term, out, _ := newTestTerminal("")

	assert.False(t, term.IsInProgress())
	term.StartProgress(4)
	assert.True(t, term.IsInProgress())
	term.WriteProgress(2)
	assert.Contains(t, out.String(), " 50%")
	term.EndProgress()
	assert.False(t, term.IsInProgress())
	assert.Contains(t, out.String(), "100%")

	// no-op outside a progress run
	term.WriteProgress(1)
	term.EndProgress()
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "[==========] 100%", ProgressBar(5, 5, 10, true))
	assert.Equal(t, "[          ]   0%", ProgressBar(-1, 5, 10, true))
	assert.Equal(t, "[=====     ]  50%", ProgressBar(1, 2, 10, true))
	assert.Equal(t, "[==========] 100%", ProgressBar(9, 0, 10, true))
}

func TestTerminal_Beep(t *testing.T) {
	term, out, _ := newTestTerminal("")
	term.Beep()
	assert.Equal(t, "\a", out.String())
}
