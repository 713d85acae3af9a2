package console

import (
	"errors"
	"strings"
	"sync"

	"github.com/spf13/cast"
)

// ErrNoInput is returned by read operations on a Layer without collaborator
// and without queued input.
var ErrNoInput = errors.New("no input available")

// Layer wraps an optional IO. Every method is safe on a nil *Layer and on a
// Layer without IO; output calls then do nothing.
//
// Lines queued with AddInput are consumed by ReadLine before the wrapped IO
// is asked, which is how replay files feed the shell.
type Layer struct {
	io IO

	mu      sync.Mutex
	pending []string
}

// NewLayer returns a Layer over io. io may be nil.
func NewLayer(io IO) *Layer {
	return &Layer{io: io}
}

// IO returns the wrapped collaborator, or nil.
func (l *Layer) IO() IO {
	if l == nil {
		return nil
	}
	return l.io
}

// AddInput queues lines to be returned by ReadLine in order.
func (l *Layer) AddInput(lines ...string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, lines...)
}

// Pending reports how many queued input lines remain.
func (l *Layer) Pending() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

func (l *Layer) popInput() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return "", false
	}
	line := l.pending[0]
	l.pending = l.pending[1:]
	return line, true
}

func (l *Layer) Write(text string) {
	if l == nil || l.io == nil {
		return
	}
	l.io.Write(text)
}

func (l *Layer) WriteLine(line string) {
	if l == nil || l.io == nil {
		return
	}
	l.io.WriteLine(line)
}

func (l *Layer) WriteError(text string) {
	if l == nil || l.io == nil {
		return
	}
	l.io.WriteError(text)
}

func (l *Layer) WriteInfo(text string) {
	if l == nil || l.io == nil {
		return
	}
	l.io.WriteInfo(text)
}

func (l *Layer) WriteInfoColored(text, colorText string, c Color) {
	if l == nil || l.io == nil {
		return
	}
	l.io.WriteInfoColored(text, colorText, c)
}

// ReadLine returns the next queued line, or reads one from the IO.
func (l *Layer) ReadLine(prompt string, completer Completer) (string, error) {
	if l == nil {
		return "", ErrNoInput
	}
	if line, ok := l.popInput(); ok {
		if l.io != nil {
			l.io.WriteLine(prompt + line)
		}
		return line, nil
	}
	if l.io == nil {
		return "", ErrNoInput
	}
	return l.io.ReadLine(prompt, completer)
}

func (l *Layer) ReadPassword(prompt string) (string, error) {
	if l == nil || l.io == nil {
		return "", ErrNoInput
	}
	return l.io.ReadPassword(prompt)
}

func (l *Layer) SetForeColor(c Color) {
	if l == nil || l.io == nil {
		return
	}
	l.io.SetForeColor(c)
}

func (l *Layer) SetBackgroundColor(c Color) {
	if l == nil || l.io == nil {
		return
	}
	l.io.SetBackgroundColor(c)
}

func (l *Layer) StartProgress(max float64) {
	if l == nil || l.io == nil {
		return
	}
	l.io.StartProgress(max)
}

func (l *Layer) WriteProgress(value float64) {
	if l == nil || l.io == nil {
		return
	}
	l.io.WriteProgress(value)
}

func (l *Layer) EndProgress() {
	if l == nil || l.io == nil {
		return
	}
	l.io.EndProgress()
}

func (l *Layer) IsInProgress() bool {
	if l == nil || l.io == nil {
		return false
	}
	return l.io.IsInProgress()
}

func (l *Layer) Beep() {
	if l == nil || l.io == nil {
		return
	}
	l.io.Beep()
}

// Confirm asks a yes/no question. Without a collaborator (and no queued
// input) the answer is always no.
func (l *Layer) Confirm(question string) bool {
	if l == nil {
		return false
	}
	l.WriteLine(question)
	answer, err := l.ReadLine("", nil)
	if err != nil {
		return false
	}
	return ParseBool(answer)
}

// ParseBool interprets a user answer. Besides the forms accepted by
// cast (true, 1, t, ...) it understands y/yes/n/no.
func ParseBool(answer string) bool {
	a := strings.ToLower(strings.TrimSpace(answer))
	switch a {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	}
	v, err := cast.ToBoolE(a)
	if err != nil {
		return false
	}
	return v
}
