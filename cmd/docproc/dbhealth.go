package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docproc/internal/repository"
)

func newDBHealthCmd(a *app) *cobra.Command {
	var (
		timeout time.Duration
		migrate bool
	)
	cmd := &cobra.Command{
		Use:   "dbhealth",
		Short: "Check that the configured database is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := repository.Open(ctx, repository.ConfigFrom(a.cfg.Database), a.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.HealthCheck(ctx, timeout); err != nil {
				return err
			}
			if migrate {
				if err := db.Migrate(ctx); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK (%s)\n", db.Dialect())
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "ping timeout")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "also create missing tables")
	return cmd
}
