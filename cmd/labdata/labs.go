package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var labsShowDatasets bool

func newLabsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labs",
		Short: "List the labs and the datasets they need",
		Example: `  labdata labs
  labdata labs --datasets`,
		Args: cobra.NoArgs,
		RunE: labsRun,
	}

	cmd.Flags().BoolVar(&labsShowDatasets, "datasets", false, "list every dataset of each lab")

	return cmd
}

func labsRun(cmd *cobra.Command, args []string) error {
	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	if globalRegistry == nil {
		return fmt.Errorf("components not initialized")
	}

	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%-4s %-36s %9s %8s\n", "ID", "Lab", "Datasets", "Present")
	fmt.Fprintln(out, strings.Repeat("-", 60))

	for _, lab := range globalRegistry.All() {
		present := "no"
		if info, err := os.Stat(globalCfg.LabRoot(lab.Name)); err == nil && info.IsDir() {
			present = "yes"
		}
		fmt.Fprintf(out, "%-4d %-36s %9d %8s\n", lab.ID, lab.Name, len(lab.Datasets), present)

		if labsShowDatasets {
			for _, ds := range lab.Datasets {
				fmt.Fprintf(out, "       %s -> %s\n", ds.Reference, ds.Destination)
				if ds.Description != "" {
					fmt.Fprintf(out, "         %s\n", detailStyle.Render(ds.Description))
				}
			}
		}
	}

	return nil
}
