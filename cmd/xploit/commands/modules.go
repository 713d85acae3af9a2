package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vulntor/xploit/cmd/xploit/internal/format"
	"github.com/vulntor/xploit/pkg/module"
	"github.com/vulntor/xploit/pkg/stringutil"
)

func newModulesCommand() *cobra.Command {
	var (
		output string
		kind   string
	)

	cmd := &cobra.Command{
		Use:     "modules",
		Short:   "List the available modules and payloads",
		GroupID: "core",
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := format.ValidateMode(output); err != nil {
				return err
			}
			switch kind {
			case "all", "module", "payload":
				return nil
			}
			return fmt.Errorf("invalid type: %s (must be 'all', 'module' or 'payload')", kind)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}

			mode := format.ParseMode(output)
			var rows [][]string
			add := func(infos []module.Info, typ string) {
				for _, info := range infos {
					desc := info.Description
					if mode == format.ModeTable {
						desc = stringutil.Ellipsis(desc, 60)
					}
					rows = append(rows, []string{info.FullPath(), typ, info.Version, desc})
				}
			}
			if kind != "payload" {
				add(a.Modules.Modules(), "module")
			}
			if kind != "module" {
				add(a.Modules.Payloads(), "payload")
			}

			f := format.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode, false, !a.Config.Console.NoColor)
			if err := f.PrintTable([]string{"Path", "Type", "Version", "Description"}, rows); err != nil {
				return err
			}
			return f.PrintSummary(fmt.Sprintf("%d entries", len(rows)))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	cmd.Flags().StringVarP(&kind, "type", "t", "all", "Entity type (all, module, payload)")
	return cmd
}
