package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oactree/jobmon/internal/engine"
)

var validateCmd = &cobra.Command{
	Use:   "validate <procedure.yaml>",
	Short: "Check a procedure file and print its instruction tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := engine.LoadProcedure(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %d instructions, %d variables\n", p.Name, p.Count(), len(p.Variables))
		fmt.Fprint(out, p.Tree())
		return nil
	},
}
