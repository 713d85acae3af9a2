package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"golang.org/x/term"
)

const progressWidth = 30

var (
	progressFilled = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	progressEmpty  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

// Terminal is an IO over a reader and two writers, typically the process'
// stdin, stdout and stderr.
type Terminal struct {
	in      *bufio.Reader
	inFile  *os.File
	out     io.Writer
	errOut  io.Writer
	noColor bool

	mu       sync.Mutex
	fg, bg   Color
	progress *progressState
}

type progressState struct {
	max   float64
	value float64
}

// NewTerminal builds a Terminal. When in is an *os.File attached to a
// terminal, ReadPassword disables echo.
func NewTerminal(in io.Reader, out, errOut io.Writer, noColor bool) *Terminal {
	t := &Terminal{
		in:      bufio.NewReader(in),
		out:     out,
		errOut:  errOut,
		noColor: noColor,
	}
	if f, ok := in.(*os.File); ok {
		t.inFile = f
	}
	return t
}

// NewStdTerminal builds a Terminal over the process' standard streams.
func NewStdTerminal(noColor bool) *Terminal {
	return NewTerminal(os.Stdin, os.Stdout, os.Stderr, noColor)
}

func (t *Terminal) colorize(c Color, bg Color) *color.Color {
	attrs := make([]color.Attribute, 0, 2)
	if a, ok := fgAttr(c); ok {
		attrs = append(attrs, a)
	}
	if a, ok := bgAttr(bg); ok {
		attrs = append(attrs, a)
	}
	col := color.New(attrs...)
	if t.noColor || len(attrs) == 0 {
		col.DisableColor()
	} else {
		col.EnableColor()
	}
	return col
}

func (t *Terminal) Write(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = t.colorize(t.fg, t.bg).Fprint(t.out, text)
}

func (t *Terminal) WriteLine(line string) {
	t.Write(line + "\n")
}

func (t *Terminal) WriteError(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = t.colorize(ColorRed, ColorDefault).Fprintln(t.errOut, "[!] "+text)
}

func (t *Terminal) WriteInfo(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = t.colorize(ColorCyan, ColorDefault).Fprint(t.out, "[*] ")
	_, _ = fmt.Fprintln(t.out, text)
}

func (t *Terminal) WriteInfoColored(text, colorText string, c Color) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = t.colorize(ColorCyan, ColorDefault).Fprint(t.out, "[*] ")
	_, _ = fmt.Fprint(t.out, text)
	_, _ = t.colorize(c, ColorDefault).Fprintln(t.out, colorText)
}

// ReadLine reads one line. Completion candidates are not offered: line
// editing belongs to the interactive front end.
func (t *Terminal) ReadLine(prompt string, _ Completer) (string, error) {
	if prompt != "" {
		t.Write(prompt)
	}
	line, err := t.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (t *Terminal) ReadPassword(prompt string) (string, error) {
	if prompt != "" {
		t.Write(prompt)
	}
	if t.inFile != nil && term.IsTerminal(int(t.inFile.Fd())) {
		b, err := term.ReadPassword(int(t.inFile.Fd()))
		t.WriteLine("")
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return t.ReadLine("", nil)
}

func (t *Terminal) SetForeColor(c Color) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fg = c
}

func (t *Terminal) SetBackgroundColor(c Color) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bg = c
}

func (t *Terminal) StartProgress(max float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if max <= 0 {
		max = 1
	}
	t.progress = &progressState{max: max}
	t.renderProgress()
}

func (t *Terminal) WriteProgress(value float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.progress == nil {
		return
	}
	t.progress.value = value
	t.renderProgress()
}

func (t *Terminal) EndProgress() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.progress == nil {
		return
	}
	t.progress.value = t.progress.max
	t.renderProgress()
	_, _ = fmt.Fprintln(t.out)
	t.progress = nil
}

func (t *Terminal) IsInProgress() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress != nil
}

// renderProgress must be called with t.mu held.
func (t *Terminal) renderProgress() {
	_, _ = fmt.Fprint(t.out, "\r"+ProgressBar(t.progress.value, t.progress.max, progressWidth, t.noColor))
}

// ProgressBar renders value/max as a fixed-width bar with a percentage.
func ProgressBar(value, max float64, width int, noColor bool) string {
	if max <= 0 {
		max = 1
	}
	ratio := value / max
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * float64(width))
	full := strings.Repeat("=", filled)
	empty := strings.Repeat(" ", width-filled)
	if !noColor {
		full = progressFilled.Render(full)
		empty = progressEmpty.Render(empty)
	}
	return fmt.Sprintf("[%s%s] %3.0f%%", full, empty, ratio*100)
}

func (t *Terminal) Beep() {
	_, _ = fmt.Fprint(t.out, "\a")
}

func fgAttr(c Color) (color.Attribute, bool) {
	switch c {
	case ColorBlack:
		return color.FgBlack, true
	case ColorRed:
		return color.FgRed, true
	case ColorGreen:
		return color.FgGreen, true
	case ColorYellow:
		return color.FgYellow, true
	case ColorBlue:
		return color.FgBlue, true
	case ColorMagenta:
		return color.FgMagenta, true
	case ColorCyan:
		return color.FgCyan, true
	case ColorWhite:
		return color.FgWhite, true
	case ColorGray:
		return color.FgHiBlack, true
	}
	return 0, false
}

func bgAttr(c Color) (color.Attribute, bool) {
	switch c {
	case ColorBlack:
		return color.BgBlack, true
	case ColorRed:
		return color.BgRed, true
	case ColorGreen:
		return color.BgGreen, true
	case ColorYellow:
		return color.BgYellow, true
	case ColorBlue:
		return color.BgBlue, true
	case ColorMagenta:
		return color.BgMagenta, true
	case ColorCyan:
		return color.BgCyan, true
	case ColorWhite:
		return color.BgWhite, true
	case ColorGray:
		return color.BgHiBlack, true
	}
	return 0, false
}
