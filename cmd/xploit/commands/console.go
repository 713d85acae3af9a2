package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vulntor/xploit/pkg/replay"
	"github.com/vulntor/xploit/pkg/shell"
)

func newConsoleCommand() *cobra.Command {
	var replayFile string

	cmd := &cobra.Command{
		Use:     "console",
		Short:   "Start the interactive console",
		GroupID: "run",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			rt, err := a.Runtime()
			if err != nil {
				return err
			}

			if replayFile == "" {
				replayFile = a.Config.Console.Replay
			}
			if replayFile != "" {
				if _, err := replay.Load(a.IO, replayFile); err != nil {
					return err
				}
			}

			sh := shell.New(rt, a.Modules,
				shell.WithPrompt(a.Config.Console.Prompt),
				shell.WithNoColor(a.Config.Console.NoColor),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// ReadLine cannot be interrupted, so an interrupt returns without
			// waiting for the shell.
			errc := make(chan error, 1)
			go func() { errc <- sh.Run(ctx) }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
				a.IO.WriteLine("")
				return nil
			}
		},
	}

	cmd.Flags().StringVarP(&replayFile, "replay", "r", "", "Replay file queued before interactive input")
	return cmd
}
