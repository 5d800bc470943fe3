package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corintai/corint/internal/loader"
	"github.com/corintai/corint/internal/semantic"
)

func newLintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint <repo>",
		Short: "Run parse + semantic analysis only, without a server config tree or datasource connections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := loader.Load(args[0])
			if err != nil {
				return firstFatal(err)
			}
			if _, err := semantic.Analyze(raw, nil); err != nil {
				return firstFatal(err)
			}
			fmt.Println("ok")
			return nil
		},
	}
}
