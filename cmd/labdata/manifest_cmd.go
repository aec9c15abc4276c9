package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BadgerOps/labdata/internal/engine"
)

var manifestLabs []int

func newManifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest [LAB...]",
		Short: "Regenerate dataset manifests without downloading",
		Long: `Rescan each lab's data/raw directory and overwrite its dataset_manifest.json.
Nothing is downloaded. Without any lab every registered lab is rescanned. A
lab whose directory is missing is reported as not found and makes the
command exit non-zero.`,
		Example: `  labdata manifest
  labdata manifest 1 5`,
		RunE: manifestRun,
	}

	cmd.Flags().IntSliceVar(&manifestLabs, "lab", nil, "lab identifier(s) to rescan")

	return cmd
}

func manifestRun(cmd *cobra.Command, args []string) error {
	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	if globalRegistry == nil {
		return fmt.Errorf("components not initialized")
	}

	ids, err := parseLabIDs(args, manifestLabs)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	acquirer := engine.NewAcquirer(globalRegistry, globalFetcher, nil, globalStore, globalCfg, logger)
	reports, err := acquirer.WriteManifests(ctx, ids)
	if err != nil {
		return err
	}

	failures := 0
	for _, lr := range reports {
		switch {
		case lr.Err != nil:
			failures++
			fmt.Fprintf(out, "%s %s\n", failStyle.Render("✗"), lr.Err)
		case lr.ManifestErr != nil:
			failures++
			fmt.Fprintf(out, "%s %s\n", failStyle.Render("✗"), lr.ManifestErr)
		default:
			fmt.Fprintf(out, "%s %s %s\n", okStyle.Render("✓ Created manifest:"), lr.ManifestPath, detailStyle.Render(manifestDetail(lr.Manifest)))
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d manifests not written", failures, len(reports))
	}
	return nil
}
