package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/BadgerOps/labdata/internal/confirm"
	"github.com/BadgerOps/labdata/internal/engine"
	"github.com/BadgerOps/labdata/internal/fetcher"
)

var (
	downloadLabs        []int
	downloadSkipCheck   bool
	downloadYes         bool
	downloadNoOverwrite bool
)

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download [LAB...]",
		Short: "Download the Kaggle datasets for one or more labs",
		Long: `Download every dataset a lab needs into its data/raw directory, then write
the lab's dataset_manifest.json.

Labs may be given as arguments, with --lab, or both. Without any lab every
lab is downloaded, which asks for confirmation first because of the total
size. A destination that already contains files is only downloaded into
after confirmation; --yes and --no-overwrite answer those prompts.

The command exits non-zero unless every requested dataset downloaded and
every manifest was written.`,
		Example: `  labdata download
  labdata download --lab 1
  labdata download 2 3
  labdata download --lab 4 --skip-check --no-overwrite`,
		RunE: downloadRun,
	}

	cmd.Flags().IntSliceVar(&downloadLabs, "lab", nil, "lab identifier(s) to download (repeatable or comma-separated)")
	cmd.Flags().BoolVar(&downloadSkipCheck, "skip-check", false, "skip the kaggle CLI and credentials check")
	cmd.Flags().BoolVarP(&downloadYes, "yes", "y", false, "answer yes to every prompt, including overwrites")
	cmd.Flags().BoolVar(&downloadNoOverwrite, "no-overwrite", false, "skip datasets whose destination is not empty")

	return cmd
}

func downloadRun(cmd *cobra.Command, args []string) error {
	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	if globalRegistry == nil || globalFetcher == nil {
		return fmt.Errorf("components not initialized")
	}

	if downloadYes && downloadNoOverwrite {
		return fmt.Errorf("--yes and --no-overwrite cannot be used together")
	}

	ids, err := parseLabIDs(args, downloadLabs)
	if err != nil {
		return err
	}
	// fail on unknown labs before prompting for anything
	if _, err := globalRegistry.Resolve(ids); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	in := cmd.InOrStdin()
	out := cmd.OutOrStdout()
	prompter := confirm.NewPrompter(in, out)

	var confirmer confirm.Confirmer = prompter
	switch {
	case downloadYes:
		confirmer = confirm.Always(true)
	case downloadNoOverwrite:
		confirmer = confirm.Always(false)
	default:
		if f, ok := in.(*os.File); ok && !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
			logger.Warn("stdin is not a terminal; overwrite prompts will read answers from it (use --yes or --no-overwrite)")
		}
	}

	if len(ids) == 0 {
		all := globalRegistry.IDs()
		fmt.Fprintf(out, "\nDownloading datasets for all labs (%s)\n", joinInts(all))
		if est := globalCfg.AllLabsEstimateBytes(); est > 0 {
			fmt.Fprintln(out, warnStyle.Render("⚠ Warning: Total download size may exceed "+humanize.Bytes(est)))
		}
		fmt.Fprintln(out, "   Consider downloading one lab at a time with --lab <number>")
		if !downloadYes {
			ok, err := prompter.Ask(ctx, "\nContinue?")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(out, "Cancelled.")
				return nil
			}
		}
		ids = all
	} else {
		fmt.Fprintf(out, "\nDownloading datasets for Lab(s): %s\n", joinInts(ids))
	}

	if k, ok := globalFetcher.(*fetcher.KaggleCLI); ok {
		k.Stdout = out
		k.Stderr = cmd.ErrOrStderr()
	}

	acquirer := engine.NewAcquirer(globalRegistry, globalFetcher, confirmer, globalStore, globalCfg, logger)
	if !quiet {
		acquirer.SetReporter(newConsoleReporter(out))
	}

	report, err := acquirer.Acquire(ctx, ids, engine.AcquireOptions{SkipCheck: downloadSkipCheck})
	if err != nil {
		var cfgErr *fetcher.ConfigError
		if errors.As(err, &cfgErr) {
			fmt.Fprintln(out, failStyle.Render("✗ "+cfgErr.Error()))
			if cfgErr.Hint != "" {
				fmt.Fprintln(out, "   "+cfgErr.Hint)
			}
			fmt.Fprintln(out, "\nKaggle API not properly configured. Exiting.")
		}
		if report != nil {
			printSummary(out, report)
		}
		return err
	}

	printSummary(out, report)

	if !report.Succeeded() {
		succeeded, total := report.Counts()
		return fmt.Errorf("download incomplete: %d of %d datasets succeeded", succeeded, total)
	}

	return nil
}

// parseLabIDs merges positional and --lab identifiers, keeping first
// occurrence order.
func parseLabIDs(args []string, flagIDs []int) ([]int, error) {
	var ids []int
	seen := make(map[int]bool)
	add := func(id int) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid lab identifier %q", part)
			}
			add(id)
		}
	}
	for _, id := range flagIDs {
		add(id)
	}

	return ids, nil
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ", ")
}
