package commands

import (
	"github.com/spf13/cobra"

	"github.com/vulntor/xploit/pkg/replay"
	"github.com/vulntor/xploit/pkg/shell"
)

func newReplayCommand() *cobra.Command {
	var keep bool

	cmd := &cobra.Command{
		Use:     "replay <file>",
		Short:   "Execute the commands of a replay file",
		GroupID: "run",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			rt, err := a.Runtime()
			if err != nil {
				return err
			}

			lines, err := replay.ParseFile(args[0])
			if err != nil {
				return err
			}

			sh := shell.New(rt, a.Modules,
				shell.WithPrompt(a.Config.Console.Prompt),
				shell.WithNoColor(a.Config.Console.NoColor),
			)
			if err := sh.RunLines(cmd.Context(), lines); err != nil {
				return err
			}
			if keep && a.Jobs.Len() > 0 {
				return waitForInterrupt(cmd, a)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&keep, "keep", "k", false, "Keep running until interrupted while jobs are alive")
	return cmd
}
