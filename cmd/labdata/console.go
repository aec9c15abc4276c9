package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/BadgerOps/labdata/internal/engine"
	"github.com/BadgerOps/labdata/internal/fetcher"
	"github.com/BadgerOps/labdata/internal/registry"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
)

const ruleWidth = 70

// consoleReporter renders acquisition progress as plain text.
type consoleReporter struct {
	out io.Writer
}

func newConsoleReporter(out io.Writer) *consoleReporter {
	return &consoleReporter{out: out}
}

func (c *consoleReporter) LabStarted(lab registry.Lab, root string) {
	rule := strings.Repeat("#", ruleWidth)
	fmt.Fprintf(c.out, "\n%s\n", rule)
	fmt.Fprintln(c.out, headingStyle.Render(fmt.Sprintf("# LAB %d: %s", lab.ID, lab.Name)))
	fmt.Fprintln(c.out, rule)
}

func (c *consoleReporter) DatasetStarted(_ registry.Lab, ds registry.Dataset, destination string) {
	rule := strings.Repeat("=", ruleWidth)
	fmt.Fprintf(c.out, "\n%s\n", rule)
	fmt.Fprintf(c.out, "Dataset: %s\n", ds.Description)
	fmt.Fprintf(c.out, "Kaggle:  %s\n", ds.Reference)
	fmt.Fprintf(c.out, "Target:  %s\n", destination)
	fmt.Fprintln(c.out, rule)
}

func (c *consoleReporter) DatasetFinished(o engine.Outcome) {
	switch o.Status {
	case engine.StatusSucceeded:
		fmt.Fprintln(c.out, okStyle.Render("✓ Downloaded successfully"))
	case engine.StatusSkipped:
		fmt.Fprintln(c.out, warnStyle.Render("   Skipped."))
	default:
		fmt.Fprintln(c.out, failStyle.Render("✗ Download failed: ")+o.Err.Error())
		var dlErr *fetcher.DownloadFailedError
		if errors.As(o.Err, &dlErr) {
			fmt.Fprintln(c.out, "\nTroubleshooting:")
			for i, hint := range dlErr.Troubleshooting() {
				fmt.Fprintf(c.out, "%d. %s\n", i+1, hint)
			}
		}
	}
}

func (c *consoleReporter) ManifestWritten(_ registry.Lab, path string, m *engine.Manifest, err error) {
	if err != nil {
		fmt.Fprintln(c.out, failStyle.Render("\n✗ Manifest not written: ")+err.Error())
		return
	}
	fmt.Fprintf(c.out, "\n%s %s %s\n",
		okStyle.Render("✓ Created manifest:"),
		path,
		detailStyle.Render(manifestDetail(m)),
	)
}

func (c *consoleReporter) LabFinished(lr *engine.LabReport) {
	if lr.Err != nil {
		fmt.Fprintln(c.out, failStyle.Render("✗ "+lr.Err.Error()))
		return
	}
	rule := strings.Repeat("=", ruleWidth)
	fmt.Fprintf(c.out, "\n%s\n", rule)
	fmt.Fprintf(c.out, "Lab %d Summary: %d/%d datasets downloaded successfully\n", lr.Lab.ID, lr.SucceededCount(), lr.Total())
	fmt.Fprintln(c.out, rule)
}

func manifestDetail(m *engine.Manifest) string {
	if m == nil {
		return ""
	}
	return fmt.Sprintf("(%d datasets, %d files, %s)", len(m.Datasets), m.FileCount(), humanize.IBytes(uint64(m.TotalBytes)))
}

// printSummary itemizes every lab count and every non-success of a run.
func printSummary(out io.Writer, report *engine.Report) {
	fmt.Fprintln(out, "\n=== DOWNLOAD SUMMARY ===")
	for _, lr := range report.Labs {
		fmt.Fprintf(out, "Lab %d (%s): %d/%d\n", lr.Lab.ID, lr.Lab.Name, lr.SucceededCount(), lr.Total())
	}
	succeeded, total := report.Counts()
	fmt.Fprintf(out, "Overall: %d/%d datasets downloaded\n", succeeded, total)

	var issues []string
	for _, lr := range report.Labs {
		if lr.Err != nil {
			issues = append(issues, fmt.Sprintf("Lab %d: %v", lr.Lab.ID, lr.Err))
		}
		for _, o := range lr.Outcomes {
			switch o.Status {
			case engine.StatusSkipped:
				issues = append(issues, fmt.Sprintf("Lab %d: %s skipped (destination not empty)", lr.Lab.ID, o.Dataset.Reference))
			case engine.StatusFailed:
				issues = append(issues, fmt.Sprintf("Lab %d: %s failed: %v", lr.Lab.ID, o.Dataset.Reference, o.Err))
			}
		}
		if lr.ManifestErr != nil {
			issues = append(issues, fmt.Sprintf("Lab %d: %v", lr.Lab.ID, lr.ManifestErr))
		}
	}

	if len(issues) > 0 {
		fmt.Fprintln(out, "\nNot completed:")
		for _, issue := range issues {
			fmt.Fprintf(out, "  - %s\n", issue)
		}
	}

	fmt.Fprintln(out, strings.Repeat("=", ruleWidth))
	if report.Succeeded() {
		fmt.Fprintln(out, okStyle.Render("✓ All downloads completed successfully!"))
		fmt.Fprintln(out, "\nNext steps:")
		fmt.Fprintln(out, "1. Review dataset manifests in each lab's data/raw/dataset_manifest.json")
		fmt.Fprintln(out, "2. For large datasets, see data/raw/README.md for filtering instructions")
	} else {
		fmt.Fprintln(out, warnStyle.Render("⚠ Some downloads failed. Check output above for details."))
	}
	fmt.Fprintln(out, strings.Repeat("=", ruleWidth))
}
