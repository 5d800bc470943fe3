package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "corint",
		Short:         "Compile and run CORINT risk-decision repositories",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newCompileCmd())
	cmd.AddCommand(newDecideCmd())
	cmd.AddCommand(newLintCmd())

	return cmd
}
