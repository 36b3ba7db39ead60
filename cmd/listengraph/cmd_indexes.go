package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/persistorai/listengraph/internal/backend"
	"github.com/persistorai/listengraph/internal/config"
	"github.com/persistorai/listengraph/internal/indexes"
	"github.com/persistorai/listengraph/internal/resolve"
)

const closeTimeout = 10 * time.Second

func newIndexesCmd() *cobra.Command {
	var flagBackend string
	var flagDryRun bool

	cmd := &cobra.Command{
		Use:   "indexes",
		Short: "Create the secondary indexes of the target store",
		Long: "Creates every index the target needs. Existing indexes are left alone " +
			"and a failing index does not stop the others.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(); err != nil {
				return err
			}

			cfg, err := config.LoadTarget(flagConfig, globalOverrides(cmd), func(c *config.Config) {
				if cmd.Flags().Changed("backend") {
					c.Backend = flagBackend
				}
				if cmd.Flags().Changed("dry-run") {
					c.DryRun = flagDryRun
				}
			})
			if err != nil {
				return err
			}

			log := newLogger(cfg)
			ctx := cmd.Context()

			b, err := backend.Open(ctx, cfg, resolve.New(cfg.TrackURIPrefix), log)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
				defer cancel()

				if err := b.Close(closeCtx); err != nil {
					log.WithError(err).Warn("closing backend")
				}
			}()

			if err := b.Prepare(ctx); err != nil {
				return err
			}

			report := indexes.Ensure(ctx, b.IndexCreator(), b.IndexPlan(), log)

			return printIndexReport(cmd.OutOrStdout(), b.IndexPlan(), report, flagFmt)
		},
	}

	cmd.Flags().StringVarP(&flagBackend, "backend", "b", "", "Target: document|relational (env: LISTENGRAPH_BACKEND)")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Validate and log the plan without connecting")

	return cmd
}
