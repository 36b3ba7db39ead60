package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/persistorai/listengraph/internal/backend"
	"github.com/persistorai/listengraph/internal/config"
)

func newCheckpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Manage resume checkpoints",
	}

	cmd.AddCommand(newCheckpointClearCmd())

	return cmd
}

func newCheckpointClearCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget the completed batches of the configured input and target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flagConfig, globalOverrides(cmd), flags.overrides(cmd))
			if err != nil {
				return err
			}

			open := backend.Checkpoints(cfg, newLogger(cfg))
			if open == nil {
				return errors.New("checkpointing is disabled: set CHECKPOINT_DIR or --checkpoint-dir")
			}

			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clearing checkpoints: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Cleared checkpoints in %s\n", cfg.CheckpointDir)

			return nil
		},
	}

	// The scope of a checkpoint depends on the same settings as a run.
	flags.register(cmd)

	return cmd
}
