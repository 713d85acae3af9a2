package shell

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/vulntor/xploit/pkg/console"
	"github.com/vulntor/xploit/pkg/module"
	"github.com/vulntor/xploit/pkg/stringutil"
	"github.com/vulntor/xploit/pkg/version"
)

const descriptionWidth = 60

const banner = `
 __  __ ____  _       _ _
 \ \/ /|  _ \| | ___ (_) |_
  \  / | |_) | |/ _ \| | __|
  /  \ |  __/| | (_) | | |_
 /_/\_\|_|   |_|\___/|_|\__|
`

func (s *Shell) register() {
	s.add(&command{name: "help", aliases: []string{"?"}, help: "List commands", run: s.cmdHelp})
	s.add(&command{name: "banner", help: "Print the banner", run: s.cmdBanner})
	s.add(&command{name: "modules", help: "List modules and payloads", run: s.cmdModules})
	s.add(&command{name: "use", usage: "use <module>", help: "Select a module", run: s.cmdUse})
	s.add(&command{name: "back", help: "Deselect the module", run: s.cmdBack})
	s.add(&command{name: "show", usage: "show options|targets|payloads|info", help: "Show module details", run: s.cmdShow})
	s.add(&command{name: "set", usage: "set <property> <value>", help: "Set a property, target or payload", run: s.cmdSet, split: 1})
	s.add(&command{name: "unset", usage: "unset <property>", help: "Clear a property", run: s.cmdUnset})
	s.add(&command{name: "check", help: "Validate the module configuration", run: s.cmdCheck})
	s.add(&command{name: "run", aliases: []string{"exploit"}, help: "Validate and run the module", run: s.cmdRun})
	s.add(&command{name: "jobs", help: "List running jobs", run: s.cmdJobs})
	s.add(&command{name: "kill", usage: "kill <job>", help: "Kill a job by number or id", run: s.cmdKill})
	s.add(&command{name: "killall", help: "Kill every job", run: s.cmdKillAll})
	s.add(&command{name: "exit", aliases: []string{"quit"}, help: "Leave the console", run: s.cmdExit})
}

func (s *Shell) table(headers []string, rows [][]string) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	head := make([]string, len(headers))
	for i, h := range headers {
		head[i] = strings.ToUpper(h)
		if !s.noColor {
			head[i] = color.New(color.Bold).Sprint(head[i])
		}
	}
	fmt.Fprintln(w, strings.Join(head, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
	s.io.Write(buf.String())
}

func (s *Shell) requireModule() (*module.Base, error) {
	if s.current == nil {
		return nil, ErrNoModule
	}
	return s.current.Core(), nil
}

func (s *Shell) cmdHelp(context.Context, []string) error {
	rows := make([][]string, 0, len(s.ordered))
	for _, c := range s.ordered {
		usage := c.usage
		if usage == "" {
			usage = c.name
		}
		rows = append(rows, []string{usage, c.help})
	}
	s.table([]string{"command", "description"}, rows)
	return nil
}

func (s *Shell) cmdBanner(context.Context, []string) error {
	s.io.WriteLine(banner)
	s.io.WriteInfoColored("Version: ", version.Version, console.ColorGreen)
	s.io.WriteInfo(fmt.Sprintf("%d modules, %d payloads", len(s.modules.Modules()), len(s.modules.Payloads())))
	return nil
}

func (s *Shell) cmdModules(context.Context, []string) error {
	var rows [][]string
	for _, info := range s.modules.Modules() {
		rows = append(rows, []string{info.FullPath(), "module", stringutil.Ellipsis(info.Description, descriptionWidth)})
	}
	for _, info := range s.modules.Payloads() {
		rows = append(rows, []string{info.FullPath(), "payload", stringutil.Ellipsis(info.Description, descriptionWidth)})
	}
	s.table([]string{"path", "type", "description"}, rows)
	return nil
}

func (s *Shell) cmdUse(_ context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: use <module>")
	}
	e, err := s.modules.NewModule(args[0])
	if err != nil {
		return err
	}
	e.Core().SetIO(s.io)
	s.current = e
	return nil
}

func (s *Shell) cmdBack(context.Context, []string) error {
	s.current = nil
	return nil
}

func (s *Shell) cmdShow(_ context.Context, args []string) error {
	b, err := s.requireModule()
	if err != nil {
		return err
	}
	what := "options"
	if len(args) > 0 {
		what = strings.ToLower(args[0])
	}

	switch what {
	case "options":
		rows := make([][]string, 0)
		for _, p := range s.properties() {
			req := "no"
			if p.Required {
				req = "yes"
			}
			rows = append(rows, []string{p.Name, p.Display(), req, stringutil.Ellipsis(p.Description, descriptionWidth)})
		}
		s.table([]string{"name", "value", "required", "description"}, rows)
	case "targets":
		selected := -1
		if t, ok := b.Target(); ok {
			selected = t.ID
		}
		rows := make([][]string, 0)
		for _, t := range b.Targets() {
			mark := ""
			if t.ID == selected {
				mark = "=>"
			}
			rows = append(rows, []string{mark, fmt.Sprint(t.ID), t.Name, t.Description})
		}
		s.table([]string{"", "id", "name", "description"}, rows)
	case "payloads":
		rows := make([][]string, 0)
		for _, info := range s.modules.CompatiblePayloads(s.current) {
			rows = append(rows, []string{info.FullPath(), info.Description})
		}
		s.table([]string{"payload", "description"}, rows)
	case "info":
		info := b.Info()
		s.io.WriteLine("Name:        " + info.FullPath())
		s.io.WriteLine("Author:      " + info.Author)
		s.io.WriteLine("Version:     " + info.Version)
		if !info.DisclosureDate.IsZero() {
			s.io.WriteLine("Disclosed:   " + info.DisclosureDate.Format(time.DateOnly))
		}
		s.io.WriteLine("Description: " + info.Description)
		for _, ref := range info.References {
			s.io.WriteLine("Reference:   " + ref)
		}
	default:
		return fmt.Errorf("usage: show options|targets|payloads|info")
	}
	return nil
}

func (s *Shell) cmdSet(_ context.Context, args []string) error {
	b, err := s.requireModule()
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return fmt.Errorf("usage: set <property> <value>")
	}
	value := strings.Join(args[1:], " ")
	if err := b.SetProperty(args[0], value); err != nil {
		return err
	}
	s.io.WriteInfo(fmt.Sprintf("%s => %s", args[0], value))
	return nil
}

func (s *Shell) cmdUnset(_ context.Context, args []string) error {
	b, err := s.requireModule()
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: unset <property>")
	}
	return b.SetProperty(args[0], nil)
}

func (s *Shell) cmdCheck(context.Context, []string) error {
	b, err := s.requireModule()
	if err != nil {
		return err
	}
	if err := b.Check(s.io); err != nil {
		return err
	}
	s.io.WriteInfo("Check OK")
	return nil
}

// cmdRun validates the module and runs an independent copy of it, so the
// console configuration can change while the job runs.
func (s *Shell) cmdRun(ctx context.Context, _ []string) error {
	b, err := s.requireModule()
	if err != nil {
		return err
	}
	if err := b.Check(s.io); err != nil {
		return err
	}

	instance, err := module.Clone(s.current)
	if err != nil {
		return err
	}
	runner, ok := instance.(module.Runner)
	if !ok {
		return fmt.Errorf("%w: %s", module.ErrNotRunnable, b)
	}
	return runner.Run(ctx, s.rt)
}

func (s *Shell) cmdJobs(context.Context, []string) error {
	rows := make([][]string, 0)
	for _, j := range s.rt.Jobs.List() {
		info := j.Snapshot()
		started := ""
		if !info.StartedAt.IsZero() {
			started = info.StartedAt.Format(time.TimeOnly)
		}
		rows = append(rows, []string{fmt.Sprint(info.Num), info.ID[:8], info.Name, info.State.String(), started})
	}
	s.table([]string{"num", "id", "name", "state", "started"}, rows)
	return nil
}

func (s *Shell) cmdKill(_ context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: kill <job>")
	}
	if err := s.rt.Jobs.Kill(args[0]); err != nil {
		return err
	}
	s.io.WriteInfo("Job " + args[0] + " killed")
	return nil
}

func (s *Shell) cmdKillAll(context.Context, []string) error {
	n := s.rt.Jobs.KillAll()
	s.io.WriteInfo(fmt.Sprintf("%d jobs killed", n))
	return nil
}

func (s *Shell) cmdExit(context.Context, []string) error {
	s.exit = true
	return nil
}
