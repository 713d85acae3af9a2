// Package shell dispatches console commands to modules and jobs.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vulntor/xploit/pkg/console"
	"github.com/vulntor/xploit/pkg/module"
)

// ErrUnknownCommand is returned for commands the shell does not know.
var ErrUnknownCommand = errors.New("unknown command")

// ErrNoModule is returned by commands that need a selected module.
var ErrNoModule = errors.New("no module selected, use <module> first")

type handler func(ctx context.Context, args []string) error

type command struct {
	name    string
	usage   string
	help    string
	aliases []string
	run     handler

	// split > 0 splits only the first split arguments on whitespace and
	// passes the rest of the line as one verbatim argument.
	split int
}

// Shell holds the selected module and executes command lines.
type Shell struct {
	rt       *module.Runtime
	modules  *module.Registry
	io       *console.Layer
	prompt   string
	noColor  bool
	logger   zerolog.Logger
	commands map[string]*command
	ordered  []*command

	current module.Entity
	exit    bool
}

// Option configures a Shell.
type Option func(*Shell)

// WithPrompt sets the prompt prefix.
func WithPrompt(prompt string) Option {
	return func(s *Shell) {
		if prompt != "" {
			s.prompt = prompt
		}
	}
}

// WithNoColor disables styled table headers.
func WithNoColor(noColor bool) Option {
	return func(s *Shell) { s.noColor = noColor }
}

// New returns a shell running modules from reg with rt.
func New(rt *module.Runtime, reg *module.Registry, opts ...Option) *Shell {
	s := &Shell{
		rt:       rt,
		modules:  reg,
		io:       rt.IO,
		prompt:   "xploit",
		logger:   log.With().Str("component", "shell").Logger(),
		commands: make(map[string]*command),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.register()
	return s
}

func (s *Shell) add(c *command) {
	s.ordered = append(s.ordered, c)
	s.commands[c.name] = c
	for _, a := range c.aliases {
		s.commands[a] = c
	}
}

// Current returns the selected module, or nil.
func (s *Shell) Current() module.Entity { return s.current }

// Exited reports whether exit was requested.
func (s *Shell) Exited() bool { return s.exit }

// Prompt returns the prompt for the next line.
func (s *Shell) Prompt() string {
	if s.current == nil {
		return s.prompt + "> "
	}
	return fmt.Sprintf("%s(%s)> ", s.prompt, s.current.Core().Info().FullPath())
}

// Execute runs one command line. Blank lines and comments are ignored.
func (s *Shell) Execute(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
		return nil
	}
	fields := strings.Fields(line)
	name := strings.ToLower(fields[0])

	c, ok := s.commands[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, fields[0])
	}
	args := fields[1:]
	if c.split > 0 {
		head, rest := cutFields(line, c.split+1)
		args = head[1:]
		if rest != "" {
			args = append(args, rest)
		}
	}
	s.logger.Debug().Str("command", c.name).Strs("args", args).Msg("Executing command")
	return c.run(ctx, args)
}

// cutFields splits up to n whitespace separated fields off line and
// returns them with the remainder, whose inner whitespace is kept.
func cutFields(line string, n int) ([]string, string) {
	var fields []string
	rest := strings.TrimLeftFunc(line, unicode.IsSpace)
	for len(fields) < n && rest != "" {
		end := strings.IndexFunc(rest, unicode.IsSpace)
		if end < 0 {
			return append(fields, rest), ""
		}
		fields = append(fields, rest[:end])
		rest = strings.TrimLeftFunc(rest[end:], unicode.IsSpace)
	}
	return fields, rest
}

// Run reads and executes lines until exit, end of input or ctx ends.
// Command errors are reported on the console and do not stop the loop.
func (s *Shell) Run(ctx context.Context) error {
	completer := console.CompleterFunc(s.Complete)
	for !s.exit {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := s.io.ReadLine(s.Prompt(), completer)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, console.ErrNoInput) {
				return nil
			}
			return err
		}
		if err := s.Execute(ctx, line); err != nil {
			s.report(err)
		}
	}
	return nil
}

// RunLines executes lines in order, stopping at the first error or exit.
func (s *Shell) RunLines(ctx context.Context, lines []string) error {
	for _, line := range lines {
		if s.exit {
			return nil
		}
		s.io.WriteLine(s.Prompt() + line)
		if err := s.Execute(ctx, line); err != nil {
			s.report(err)
			return err
		}
	}
	return nil
}

func (s *Shell) report(err error) {
	s.io.WriteError(err.Error())
	for _, hint := range module.Suggestions(err) {
		s.io.WriteInfo(hint)
	}
}

// Complete suggests command names, module paths and property names.
func (s *Shell) Complete(prefix string) []string {
	fields := strings.Fields(prefix)
	trailing := strings.HasSuffix(prefix, " ")

	var candidates []string
	switch {
	case len(fields) == 0 || (len(fields) == 1 && !trailing):
		for name := range s.commands {
			candidates = append(candidates, name)
		}
	case strings.EqualFold(fields[0], "use"):
		for _, info := range s.modules.Modules() {
			candidates = append(candidates, info.FullPath())
		}
	case strings.EqualFold(fields[0], "set") || strings.EqualFold(fields[0], "unset"):
		if s.current != nil {
			for _, p := range s.properties() {
				candidates = append(candidates, p.Name)
			}
			candidates = append(candidates, "target", "payload")
		}
	}

	word := ""
	if len(fields) > 0 && !trailing {
		word = fields[len(fields)-1]
	}
	var out []string
	for _, c := range candidates {
		if strings.HasPrefix(strings.ToLower(c), strings.ToLower(word)) {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// properties lists the module properties followed by the payload ones not
// already declared by the module.
func (s *Shell) properties() []*module.Property {
	b := s.current.Core()
	props := b.Schema().Properties()
	if p := b.Payload(); p != nil {
		for _, pp := range p.Core().Schema().Properties() {
			if _, dup := b.Schema().Lookup(pp.Name); !dup {
				props = append(props, pp)
			}
		}
	}
	return props
}
