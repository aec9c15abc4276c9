package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/BadgerOps/labdata/internal/config"
	"github.com/BadgerOps/labdata/internal/confirm"
	"github.com/BadgerOps/labdata/internal/fetcher"
	"github.com/BadgerOps/labdata/internal/registry"
	"github.com/BadgerOps/labdata/internal/safety"
	"github.com/BadgerOps/labdata/internal/store"
)

// Status is the result of acquiring one dataset.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// AcquireOptions tunes a single Acquire call.
type AcquireOptions struct {
	// SkipCheck bypasses the downloader availability check.
	SkipCheck bool
}

// Outcome records what happened to one dataset.
type Outcome struct {
	LabID       int
	LabName     string
	Dataset     registry.Dataset
	Destination string // absolute destination directory
	Status      Status
	Err         error
	Diagnostics string
	Duration    time.Duration
}

// LabReport aggregates the outcomes of one lab.
type LabReport struct {
	Lab          registry.Lab
	Root         string
	Outcomes     []Outcome
	ManifestPath string
	Manifest     *Manifest
	ManifestErr  error
	// Err is set when the lab could not be processed at all.
	Err error
}

// SucceededCount returns how many datasets were downloaded.
func (lr *LabReport) SucceededCount() int {
	n := 0
	for _, o := range lr.Outcomes {
		if o.Status == StatusSucceeded {
			n++
		}
	}
	return n
}

// Total returns the number of datasets the lab declares.
func (lr *LabReport) Total() int { return len(lr.Lab.Datasets) }

// Succeeded reports whether every dataset succeeded and the manifest was written.
func (lr *LabReport) Succeeded() bool {
	return lr.Err == nil && lr.ManifestErr == nil && lr.SucceededCount() == lr.Total()
}

// Report is the result of one Acquire call.
type Report struct {
	RunID string
	IDs   []int // requested lab ids, deduplicated
	Labs  []*LabReport
	Start time.Time
	End   time.Time
}

// Succeeded is true only when every requested lab was processed and fully
// succeeded.
func (r *Report) Succeeded() bool {
	if len(r.Labs) != len(r.IDs) {
		return false
	}
	for _, lr := range r.Labs {
		if !lr.Succeeded() {
			return false
		}
	}
	return true
}

// Counts returns succeeded and total datasets across all labs.
func (r *Report) Counts() (succeeded, total int) {
	for _, lr := range r.Labs {
		succeeded += lr.SucceededCount()
		total += lr.Total()
	}
	return succeeded, total
}

// Problems returns every non-successful outcome in processing order.
func (r *Report) Problems() []Outcome {
	var out []Outcome
	for _, lr := range r.Labs {
		for _, o := range lr.Outcomes {
			if o.Status != StatusSucceeded {
				out = append(out, o)
			}
		}
	}
	return out
}

// Acquirer drives the downloader across labs and writes their manifests.
type Acquirer struct {
	registry  *registry.Registry
	fetcher   fetcher.Fetcher
	confirmer confirm.Confirmer
	store     *store.Store
	config    *config.Config
	logger    *slog.Logger
	fs        afero.Fs
	manifests *ManifestWriter
	reporter  Reporter
	now       func() time.Time
}

// NewAcquirer creates an Acquirer. st may be nil to disable run history.
func NewAcquirer(
	reg *registry.Registry,
	f fetcher.Fetcher,
	c confirm.Confirmer,
	st *store.Store,
	cfg *config.Config,
	logger *slog.Logger,
) *Acquirer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if c == nil {
		c = confirm.Always(false)
	}
	a := &Acquirer{
		registry:  reg,
		fetcher:   f,
		confirmer: c,
		store:     st,
		config:    cfg,
		logger:    logger,
		reporter:  nopReporter{},
		now:       time.Now,
	}
	a.SetFs(afero.NewOsFs())
	return a
}

// SetFs replaces the filesystem used for directories and manifests.
func (a *Acquirer) SetFs(fs afero.Fs) {
	a.fs = fs
	a.manifests = NewManifestWriter(fs, a.config.Manifest.FileName, a.config.Manifest.Exclude)
	a.manifests.now = func() time.Time { return a.now() }
}

// SetReporter installs a progress reporter.
func (a *Acquirer) SetReporter(r Reporter) {
	if r == nil {
		r = nopReporter{}
	}
	a.reporter = r
}

// Manifests returns the manifest writer bound to the Acquirer's filesystem.
func (a *Acquirer) Manifests() *ManifestWriter { return a.manifests }

// Preflight verifies the downloader is usable. Every error it returns
// matches fetcher.ErrConfiguration.
func (a *Acquirer) Preflight(ctx context.Context) error {
	if err := a.fetcher.CheckAvailable(ctx); err != nil {
		if !errors.Is(err, fetcher.ErrConfiguration) {
			err = fmt.Errorf("%w: %w", fetcher.ErrConfiguration, err)
		}
		return err
	}
	return nil
}

// Acquire downloads every dataset of the requested labs. An empty ids
// slice means all labs. Unknown ids and failed preflight checks abort
// before anything is touched; everything else is recorded in the Report.
func (a *Acquirer) Acquire(ctx context.Context, ids []int, opts AcquireOptions) (*Report, error) {
	if len(ids) == 0 {
		ids = a.registry.IDs()
	}
	ids = uniqueIDs(ids)

	labs, err := a.registry.Resolve(ids)
	if err != nil {
		return nil, err
	}

	if !opts.SkipCheck {
		if err := a.Preflight(ctx); err != nil {
			return nil, err
		}
	} else {
		a.logger.Warn("skipping downloader check")
	}

	report := &Report{RunID: uuid.NewString(), IDs: ids, Start: a.now()}
	a.logger.Info("starting acquisition", "run_id", report.RunID, "labs", ids)
	a.startRun(report)

	for _, lab := range labs {
		if err := ctx.Err(); err != nil {
			report.End = a.now()
			a.finishRun(report, err)
			return report, err
		}
		report.Labs = append(report.Labs, a.acquireLab(ctx, report.RunID, lab))
	}

	report.End = a.now()
	succeeded, total := report.Counts()
	a.logger.Info("acquisition finished",
		"run_id", report.RunID,
		"succeeded", succeeded,
		"total", total,
		"duration", report.End.Sub(report.Start).Round(time.Millisecond),
	)
	a.finishRun(report, ctx.Err())

	return report, ctx.Err()
}

func (a *Acquirer) acquireLab(ctx context.Context, runID string, lab registry.Lab) *LabReport {
	root := a.config.LabRoot(lab.Name)
	lr := &LabReport{Lab: lab, Root: root}
	a.reporter.LabStarted(lab, root)

	if err := a.checkLabDir(lab, root); err != nil {
		lr.Err = err
		a.reporter.LabFinished(lr)
		return lr
	}

	for _, ds := range lab.Datasets {
		o := a.acquireDataset(ctx, lab, root, ds)
		lr.Outcomes = append(lr.Outcomes, o)
		a.recordOutcome(runID, o)
		a.reporter.DatasetFinished(o)
	}

	a.writeManifest(runID, lr)

	a.logger.Info("lab finished", "lab", lab.Name, "succeeded", lr.SucceededCount(), "total", lr.Total())
	a.reporter.LabFinished(lr)
	return lr
}

func (a *Acquirer) acquireDataset(ctx context.Context, lab registry.Lab, root string, ds registry.Dataset) (o Outcome) {
	o = Outcome{LabID: lab.ID, LabName: lab.Name, Dataset: ds}
	start := a.now()
	defer func() { o.Duration = a.now().Sub(start) }()

	fail := func(err error) Outcome {
		o.Status = StatusFailed
		o.Err = err
		a.logger.Warn("dataset failed", "lab", lab.Name, "dataset", ds.Reference, "error", err)
		return o
	}

	dest, err := safety.DatasetDir(root, ds.Destination)
	if err != nil {
		return fail(fmt.Errorf("invalid destination: %w", err))
	}
	o.Destination = dest
	a.reporter.DatasetStarted(lab, ds, dest)

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	if err := a.fs.MkdirAll(dest, 0o755); err != nil {
		return fail(fmt.Errorf("creating destination: %w", err))
	}

	empty, err := afero.IsEmpty(a.fs, dest)
	if err != nil {
		return fail(fmt.Errorf("inspecting destination: %w", err))
	}
	if !empty {
		ok, err := a.confirmer.Confirm(ctx, confirm.Request{
			LabName:     lab.Name,
			Reference:   ds.Reference,
			Description: ds.Description,
			Destination: dest,
		})
		if err != nil {
			return fail(fmt.Errorf("confirmation: %w", err))
		}
		if !ok {
			o.Status = StatusSkipped
			a.logger.Info("dataset skipped", "lab", lab.Name, "dataset", ds.Reference, "path", dest)
			return o
		}
	}

	a.logger.Debug("fetching dataset", "lab", lab.Name, "dataset", ds.Reference, "path", dest)
	res, err := a.fetcher.Fetch(ctx, ds.Reference, dest)
	if res != nil {
		o.Diagnostics = res.Diagnostics
	}
	if err != nil {
		return fail(err)
	}

	o.Status = StatusSucceeded
	a.logger.Info("dataset downloaded", "lab", lab.Name, "dataset", ds.Reference)
	return o
}

func (a *Acquirer) writeManifest(runID string, lr *LabReport) {
	path, m, err := a.manifests.Write(lr.Lab.Name, a.config.RawDataRoot(lr.Lab.Name))
	lr.ManifestPath = path
	lr.Manifest = m
	if err != nil {
		lr.ManifestErr = err
		a.logger.Error("manifest write failed", "lab", lr.Lab.Name, "path", path, "error", err)
	} else {
		a.logger.Info("manifest written", "lab", lr.Lab.Name, "path", path, "datasets", len(m.Datasets))
		a.recordManifest(runID, path, m)
	}
	a.reporter.ManifestWritten(lr.Lab, path, m, err)
}

// WriteManifests regenerates manifests for the requested labs without
// downloading anything. An empty ids slice means all labs.
func (a *Acquirer) WriteManifests(ctx context.Context, ids []int) ([]*LabReport, error) {
	if len(ids) == 0 {
		ids = a.registry.IDs()
	}
	labs, err := a.registry.Resolve(uniqueIDs(ids))
	if err != nil {
		return nil, err
	}

	reports := make([]*LabReport, 0, len(labs))
	for _, lab := range labs {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		lr := &LabReport{Lab: lab, Root: a.config.LabRoot(lab.Name)}
		if err := a.checkLabDir(lab, lr.Root); err != nil {
			lr.Err = err
		} else {
			a.writeManifest("", lr)
		}
		reports = append(reports, lr)
	}
	return reports, nil
}

// checkLabDir reports ErrLabNotFound only when the lab directory is absent;
// other stat failures are wrapped unchanged.
func (a *Acquirer) checkLabDir(lab registry.Lab, root string) error {
	exists, err := afero.DirExists(a.fs, root)
	if err != nil {
		a.logger.Error("cannot inspect lab directory", "lab", lab.Name, "path", root, "error", err)
		return fmt.Errorf("inspecting lab directory %s: %w", root, err)
	}
	if !exists {
		a.logger.Error("lab directory not found", "lab", lab.Name, "path", root)
		return fmt.Errorf("%w: %s", ErrLabNotFound, root)
	}
	return nil
}

// ============================================================================
// Run history
// ============================================================================

func (a *Acquirer) startRun(report *Report) {
	if a.store == nil {
		return
	}
	total := 0
	for _, id := range report.IDs {
		if lab, err := a.registry.Get(id); err == nil {
			total += len(lab.Datasets)
		}
	}
	run := &store.Run{
		ID:        report.RunID,
		StartTime: report.Start,
		Labs:      joinIDs(report.IDs),
		Total:     total,
		Status:    store.RunRunning,
	}
	if err := a.store.CreateRun(run); err != nil {
		a.logger.Error("failed to create run record", "run_id", report.RunID, "error", err)
	}
}

func (a *Acquirer) finishRun(report *Report, runErr error) {
	if a.store == nil {
		return
	}
	succeeded, total := report.Counts()
	run := &store.Run{
		ID:        report.RunID,
		StartTime: report.Start,
		EndTime:   report.End,
		Labs:      joinIDs(report.IDs),
		Succeeded: succeeded,
		Total:     total,
		Status:    runStatus(report),
	}

	var msgs []string
	if runErr != nil {
		msgs = append(msgs, runErr.Error())
	}
	for _, lr := range report.Labs {
		if lr.Err != nil {
			msgs = append(msgs, lr.Err.Error())
		}
		if lr.ManifestErr != nil {
			msgs = append(msgs, lr.ManifestErr.Error())
		}
	}
	run.ErrorMessage = strings.Join(msgs, "; ")

	if err := a.store.UpdateRun(run); err != nil {
		a.logger.Error("failed to update run record", "run_id", report.RunID, "error", err)
	}
}

func (a *Acquirer) recordOutcome(runID string, o Outcome) {
	if a.store == nil {
		return
	}
	rec := &store.Outcome{
		RunID:       runID,
		LabID:       o.LabID,
		LabName:     o.LabName,
		Reference:   o.Dataset.Reference,
		Destination: o.Destination,
		Status:      string(o.Status),
		RecordedAt:  a.now(),
	}
	if o.Err != nil {
		rec.Error = o.Err.Error()
	}
	if err := a.store.AddOutcome(rec); err != nil {
		a.logger.Error("failed to record outcome", "run_id", runID, "dataset", o.Dataset.Reference, "error", err)
	}
}

func (a *Acquirer) recordManifest(runID, path string, m *Manifest) {
	if a.store == nil {
		return
	}
	snap := &store.ManifestSnapshot{
		RunID:       runID,
		LabName:     m.LabName,
		Path:        path,
		WrittenAt:   a.now(),
		Directories: len(m.Datasets),
		Files:       m.FileCount(),
		TotalBytes:  m.TotalBytes,
	}
	if err := a.store.RecordManifest(snap); err != nil {
		a.logger.Error("failed to record manifest", "lab", m.LabName, "error", err)
	}
}

func runStatus(r *Report) string {
	succeeded, _ := r.Counts()
	switch {
	case len(r.Labs) > 0 && r.Succeeded():
		return store.RunSuccess
	case succeeded == 0:
		return store.RunFailed
	default:
		return store.RunPartial
	}
}

func uniqueIDs(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
