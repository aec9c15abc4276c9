package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/BadgerOps/labdata/internal/registry"
	"github.com/BadgerOps/labdata/internal/store"
)

var (
	statusLab   int
	statusLimit int
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent download runs and manifests",
		Long: `Display recent download runs from the history database, the per-dataset
outcomes of the most recent one, and the last manifest written for each lab.

Use --lab to restrict the output to runs and manifests of a single lab.`,
		Example: `  labdata status
  labdata status --lab 2
  labdata status --limit 3`,
		Args: cobra.NoArgs,
		RunE: statusRun,
	}

	cmd.Flags().IntVar(&statusLab, "lab", 0, "only show runs that included this lab")
	cmd.Flags().IntVar(&statusLimit, "limit", 10, "number of runs to show")

	return cmd
}

func statusRun(cmd *cobra.Command, args []string) error {
	if globalStore == nil {
		return fmt.Errorf("run history is not available (was --no-history given?)")
	}

	if globalRegistry == nil {
		return fmt.Errorf("components not initialized")
	}

	labs := globalRegistry.All()
	if statusLab != 0 {
		lab, err := globalRegistry.Get(statusLab)
		if err != nil {
			return err
		}
		labs = []registry.Lab{lab}
	}

	out := cmd.OutOrStdout()

	runs, err := globalStore.ListRuns(statusLab, statusLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	fmt.Fprintln(out, "Recent Runs")
	fmt.Fprintln(out, "===========")
	fmt.Fprintln(out, "")

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
	} else {
		fmt.Fprintf(out, "%-10s %-17s %-12s %8s %-8s\n", "Run", "Started", "Labs", "Result", "Status")
		fmt.Fprintln(out, strings.Repeat("-", 60))
		for _, run := range runs {
			fmt.Fprintf(out, "%-10s %-17s %-12s %8s %-8s\n",
				shortID(run.ID),
				run.StartTime.Local().Format("2006-01-02 15:04"),
				run.Labs,
				fmt.Sprintf("%d/%d", run.Succeeded, run.Total),
				run.Status,
			)
		}

		latest := runs[0]
		outcomes, err := globalStore.ListOutcomes(latest.ID)
		if err != nil {
			return fmt.Errorf("failed to list outcomes: %w", err)
		}

		fmt.Fprintf(out, "\nLatest run %s (%s)\n", shortID(latest.ID), humanize.Time(latest.StartTime))
		for _, o := range outcomes {
			line := fmt.Sprintf("  %-9s %-20s %s", o.Status, o.LabName, o.Reference)
			if o.Error != "" {
				line += ": " + o.Error
			}
			fmt.Fprintln(out, line)
		}
		if latest.ErrorMessage != "" {
			fmt.Fprintf(out, "  %s\n", latest.ErrorMessage)
		}
	}

	fmt.Fprintln(out, "\nManifests")
	fmt.Fprintln(out, "=========")
	fmt.Fprintln(out, "")
	fmt.Fprintf(out, "%-36s %6s %10s %s\n", "Lab", "Files", "Size", "Written")
	fmt.Fprintln(out, strings.Repeat("-", 70))

	for _, lab := range labs {
		snap, err := globalStore.LatestManifest(lab.Name)
		if errors.Is(err, store.ErrNotFound) {
			fmt.Fprintf(out, "%-36s %6s %10s %s\n", lab.Name, "-", "-", "never")
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read manifest history: %w", err)
		}
		fmt.Fprintf(out, "%-36s %6d %10s %s\n",
			lab.Name,
			snap.Files,
			humanize.IBytes(uint64(snap.TotalBytes)),
			snap.WrittenAt.Local().Format("2006-01-02 15:04"),
		)
	}

	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
