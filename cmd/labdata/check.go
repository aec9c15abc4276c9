package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BadgerOps/labdata/internal/fetcher"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the kaggle CLI and its credentials",
		Long: `Run the same availability check download performs before it starts:
the kaggle binary must answer --version and the credentials file must exist.`,
		Args: cobra.NoArgs,
		RunE: checkRun,
	}
}

func checkRun(cmd *cobra.Command, args []string) error {
	if globalFetcher == nil {
		return fmt.Errorf("components not initialized")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	if err := globalFetcher.CheckAvailable(ctx); err != nil {
		fmt.Fprintln(out, failStyle.Render("✗ "+err.Error()))
		var cfgErr *fetcher.ConfigError
		if errors.As(err, &cfgErr) && cfgErr.Hint != "" {
			fmt.Fprintln(out, "   "+cfgErr.Hint)
		}
		return err
	}

	fmt.Fprintln(out, okStyle.Render("✓ kaggle CLI and credentials found"))
	return nil
}
