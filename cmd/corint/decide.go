package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corintai/corint/internal/corintlog"
	"github.com/corintai/corint/internal/engine"
	"github.com/corintai/corint/internal/engineconfig"
)

func newDecideCmd() *cobra.Command {
	var eventPath, repoPath, configPath string

	cmd := &cobra.Command{
		Use:   "decide <repo>",
		Short: "Run a single event against a compiled repository and print the DecisionRecord as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repoPath = args[0]
			return runDecide(repoPath, eventPath, configPath)
		},
	}

	cmd.Flags().StringVar(&eventPath, "event", "", "Path to a JSON file containing the inbound event")
	cmd.MarkFlagRequired("event") //nolint:errcheck
	cmd.Flags().StringVar(&configPath, "config", "", "Path to the server configuration tree (YAML)")

	return cmd
}

func runDecide(repoPath, eventPath, configPath string) error {
	raw, err := os.ReadFile(eventPath)
	if err != nil {
		return fmt.Errorf("read event: %w", err)
	}
	var event map[string]any
	if err := json.Unmarshal(raw, &event); err != nil {
		return fmt.Errorf("parse event: %w", err)
	}

	tree := engineconfig.NewTree(nil)
	if configPath != "" {
		tree, err = engineconfig.LoadTreeFromFile(configPath)
		if err != nil {
			return err
		}
	}

	logger := corintlog.NewFromEnv("corint-cli")
	opts := engineconfig.OptionsFromEnv()

	eng, err := engine.New(opts, tree, logger, nil)
	if err != nil {
		return err
	}
	if err := eng.Compile(repoPath); err != nil {
		return firstFatal(err)
	}

	rec, err := eng.Decide(context.Background(), event)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
