package commands

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vulntor/xploit/pkg/app"
	"github.com/vulntor/xploit/pkg/config"
	"github.com/vulntor/xploit/pkg/console"
	"github.com/vulntor/xploit/pkg/paths"
)

const cliExecutable = "xploit"

var errNoApp = errors.New("application not initialized")

// NewCommand constructs the top-level xploit command. Every subcommand runs
// with an initialized App stored on its context.
func NewCommand() *cobra.Command {
	var (
		configFile     string
		verbosityCount int
		application    *app.App
	)

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "xploit is a modular penetration testing console",
		Long: `xploit runs modules as background jobs from an interactive console
or from replay files. The built-in tcp_forward module relays TCP traffic,
optionally chained through SOCKS4/5 proxies and inspected by payloads.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			factory := &app.DefaultFactory{}

			path := configFile
			if path == "" {
				path = paths.ConfigFile()
			}
			a, err := factory.Create(cmd.Flags(), path)
			if err != nil {
				return fmt.Errorf("initialize app: %w", err)
			}
			a.IO = console.NewLayer(console.NewTerminal(
				cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), a.Config.Console.NoColor,
			))
			if err := a.Init(); err != nil {
				return fmt.Errorf("initialize app: %w", err)
			}
			application = a

			ctx := app.WithContext(cmd.Context(), a)
			cmd.SetContext(ctx)
			if root := cmd.Root(); root != nil && root != cmd {
				root.SetContext(ctx)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if application != nil {
				application.Shutdown()
				log.Debug().Str("component", "cli").Msg("Shut down")
			}
			return nil
		},
	}

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path (default $XDG_CONFIG_HOME/xploit/config.yaml)")
	cmd.PersistentFlags().CountVarP(&verbosityCount, "verbosity", "v", "Increase logging verbosity (repeatable)")
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddGroup(&cobra.Group{ID: "run", Title: "Run Commands"})
	cmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands"})

	cmd.AddCommand(newConsoleCommand())
	cmd.AddCommand(newReplayCommand())
	cmd.AddCommand(newForwardCommand())
	cmd.AddCommand(newModulesCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func appFrom(cmd *cobra.Command) (*app.App, error) {
	a, ok := app.FromContext(cmd.Context())
	if !ok {
		return nil, errNoApp
	}
	return a, nil
}
