package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corintai/corint/internal/corinterr"
	"github.com/corintai/corint/internal/engineconfig"
	"github.com/corintai/corint/internal/loader"
	"github.com/corintai/corint/internal/semantic"
)

func newCompileCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "compile <repo>",
		Short: "Parse, load, and semantically analyze a repository, exiting non-zero on any compile error",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompileWithConfig(args[0], configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to the server configuration tree (YAML), backing @{…} substitution")

	return cmd
}

// runCompile compiles root without a server config tree; any `@{…}`
// reference in the repository then fails to resolve. Used directly by
// callers (and tests) that have no config file to load.
func runCompile(root string) error {
	return runCompileWithConfig(root, "")
}

func runCompileWithConfig(root, configPath string) error {
	tree := engineconfig.NewTree(nil)
	if configPath != "" {
		var err error
		tree, err = engineconfig.LoadTreeFromFile(configPath)
		if err != nil {
			return err
		}
	}

	raw, err := loader.Load(root)
	if err != nil {
		return firstFatal(err)
	}
	repo, err := semantic.Analyze(raw, tree)
	if err != nil {
		return firstFatal(err)
	}
	fmt.Printf("compiled ok: %d rules, %d rulesets, %d pipelines, %d features, %d lists\n",
		len(repo.Rules), len(repo.Rulesets), len(repo.Pipelines), len(repo.Features), len(repo.Lists))
	return nil
}

// firstFatal formats a compile error with its path pointer, per spec §6.4:
// "printing the first fatal with a path:line pointer".
func firstFatal(err error) error {
	var ce *corinterr.Error
	if errors.As(err, &ce) && ce.Location != "" {
		return fmt.Errorf("%s: %s: %s", ce.Location, ce.Kind, ce.Message)
	}
	return err
}
