package commands

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vulntor/xploit/pkg/app"
	"github.com/vulntor/xploit/pkg/module"
	"github.com/vulntor/xploit/pkg/modules/auxiliary"
	"github.com/vulntor/xploit/pkg/paths"
)

type forwardOptions struct {
	local   string
	remote  string
	proxy   string
	socks   int
	user    string
	pass    string
	capture string
}

func newForwardCommand() *cobra.Command {
	var opts forwardOptions

	cmd := &cobra.Command{
		Use:     "forward",
		Short:   "Relay a local TCP port to a remote endpoint",
		GroupID: "run",
		Args:    cobra.NoArgs,
		Example: `  xploit forward --local 127.0.0.1:8080 --remote 10.0.0.5:80
  xploit forward --local :2222 --remote 10.0.0.5:22 --proxy 127.0.0.1:9050 --socks 5
  xploit forward --local :8080 --remote 10.0.0.5:80 --capture ./traffic`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			rt, err := a.Runtime()
			if err != nil {
				return err
			}

			m, err := a.Modules.NewModule("auxiliary/tcp_forward")
			if err != nil {
				return err
			}
			b := m.Core()
			b.SetIO(a.IO)
			if err := opts.apply(b); err != nil {
				return err
			}
			if err := b.Check(a.IO); err != nil {
				return err
			}

			runner, ok := m.(module.Runner)
			if !ok {
				return module.ErrNotRunnable
			}
			if err := runner.Run(cmd.Context(), rt); err != nil {
				return err
			}
			return waitForInterrupt(cmd, a)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.local, "local", "l", "127.0.0.1:0", "Listen endpoint (host:port)")
	f.StringVarP(&opts.remote, "remote", "r", "", "Target endpoint (host:port)")
	f.StringVar(&opts.proxy, "proxy", "", "SOCKS proxy endpoint (host:port)")
	f.IntVar(&opts.socks, "socks", 5, "SOCKS version: 4 or 5")
	f.StringVar(&opts.user, "user", "", "SOCKS5 username")
	f.StringVar(&opts.pass, "pass", "", "SOCKS5 password")
	f.StringVar(&opts.capture, "capture", "", "Write the relayed traffic to this directory")
	f.Lookup("capture").NoOptDefVal = paths.CaptureDir()

	return cmd
}

// apply sets the module properties in the order a console user would.
func (o forwardOptions) apply(b *module.Base) error {
	type setting struct {
		name  string
		value any
	}
	settings := []setting{
		{"LocalAddr", o.local},
		{"RemoteAddr", o.remote},
	}
	if o.proxy != "" {
		host, port, err := net.SplitHostPort(o.proxy)
		if err != nil {
			return &module.ConfigurationError{Property: "ProxyHost", Err: fmt.Errorf("%w: %v", module.ErrInvalidValue, err)}
		}
		settings = append(settings,
			setting{"ProxyHost", host},
			setting{"ProxyPort", port},
			setting{"ProxyVersion", o.socks},
			setting{"ProxyUser", o.user},
			setting{"ProxyPass", o.pass},
		)
	}
	if o.capture != "" {
		settings = append(settings,
			setting{"target", auxiliary.TargetInspected},
			setting{"payload", "payload/traffic_capture"},
			setting{"OutputDir", o.capture},
		)
	}

	for _, s := range settings {
		if err := b.SetProperty(s.name, s.value); err != nil {
			return err
		}
	}
	return nil
}

// waitForInterrupt blocks until SIGINT, SIGTERM or the command context ends,
// then kills the running jobs.
func waitForInterrupt(cmd *cobra.Command, a *app.App) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.IO.WriteInfo("Press Ctrl+C to stop")
	<-ctx.Done()

	n := a.Jobs.KillAll()
	log.Info().Str("component", "cli").Int("jobs", n).Msg("Jobs stopped")
	return nil
}
