// Package console defines the command/IO collaborator consumed by modules
// and jobs, a nil-tolerant Layer wrapping it, and a Terminal implementation.
package console

// Color is a display color understood by IO implementations.
type Color int

const (
	ColorDefault Color = iota
	ColorBlack
	ColorRed
	ColorGreen
	ColorYellow
	ColorBlue
	ColorMagenta
	ColorCyan
	ColorWhite
	ColorGray
)

// Completer supplies completion candidates for a partially typed line.
type Completer interface {
	Complete(prefix string) []string
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(prefix string) []string

// Complete implements Completer.
func (f CompleterFunc) Complete(prefix string) []string { return f(prefix) }

// IO is the console collaborator contract.
type IO interface {
	Write(text string)
	WriteLine(line string)
	WriteError(text string)
	WriteInfo(text string)
	// WriteInfoColored writes text followed by colorText rendered in c.
	WriteInfoColored(text, colorText string, c Color)

	ReadLine(prompt string, completer Completer) (string, error)
	ReadPassword(prompt string) (string, error)

	SetForeColor(c Color)
	SetBackgroundColor(c Color)

	StartProgress(max float64)
	WriteProgress(value float64)
	EndProgress()
	IsInProgress() bool

	Beep()
}
