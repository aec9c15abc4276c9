package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/BadgerOps/labdata/internal/config"
	"github.com/BadgerOps/labdata/internal/fetcher"
	"github.com/BadgerOps/labdata/internal/registry"
	"github.com/BadgerOps/labdata/internal/store"
)

// stubFetcher writes a small CSV into each destination.
type stubFetcher struct {
	checkErr error
	failures map[string]bool
	calls    []string
}

func (s *stubFetcher) CheckAvailable(context.Context) error { return s.checkErr }

func (s *stubFetcher) Fetch(_ context.Context, ref, dest string) (*fetcher.Result, error) {
	s.calls = append(s.calls, ref)
	if s.failures[ref] {
		return &fetcher.Result{Reference: ref, ExitCode: 1, Diagnostics: "404 - Not Found"},
			&fetcher.DownloadFailedError{Reference: ref, ExitCode: 1, Diagnostics: "404 - Not Found"}
	}
	if err := os.WriteFile(filepath.Join(dest, "data.csv"), []byte("a,b\n1,2\n"), 0o644); err != nil {
		return nil, err
	}
	return &fetcher.Result{Reference: ref, Destination: dest}, nil
}

type testEnv struct {
	base    string
	fetcher *stubFetcher
	store   *store.Store
}

// setupGlobals installs a two-lab registry rooted in a temp dir. Labs named
// in present get their directory created.
func setupGlobals(t *testing.T, present ...string) *testEnv {
	t.Helper()

	reg, err := registry.New(
		registry.Lab{ID: 1, Name: "lab-a", Datasets: []registry.Dataset{
			{Reference: "owner/one", Destination: "data/raw/one", Description: "First dataset"},
			{Reference: "owner/two", Destination: "data/raw/two", Description: "Second dataset"},
		}},
		registry.Lab{ID: 2, Name: "lab-b", Datasets: []registry.Dataset{
			{Reference: "owner/three", Destination: "data/raw/three", Description: "Third dataset"},
		}},
	)
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}

	env := &testEnv{
		base:    t.TempDir(),
		fetcher: &stubFetcher{failures: map[string]bool{}},
		store:   newTestStore(t),
	}
	for _, name := range present {
		if err := os.MkdirAll(filepath.Join(env.base, name), 0o755); err != nil {
			t.Fatalf("creating lab dir: %v", err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.Workspace.BaseDir = env.base

	origCfg, origReg, origFetcher, origStore, origLogger := globalCfg, globalRegistry, globalFetcher, globalStore, logger
	globalCfg = cfg
	globalRegistry = reg
	globalFetcher = env.fetcher
	globalStore = env.store
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	t.Cleanup(func() {
		globalCfg, globalRegistry, globalFetcher, globalStore, logger = origCfg, origReg, origFetcher, origStore, origLogger
		downloadLabs, downloadSkipCheck, downloadYes, downloadNoOverwrite = nil, false, false, false
		manifestLabs, labsShowDatasets, statusLab, statusLimit, quiet = nil, false, 0, 10, false
	})

	return env
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// runDownload executes the download command with args, which may include
// flags, and returns what it printed.
func runDownload(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newDownloadCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.Execute()
	return out.String(), err
}

// executeCmd runs cmd with args and captures what it writes to stdout.
func executeCmd(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SetErr(io.Discard)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	var err error
	out := captureStdout(t, func() {
		err = cmd.Execute()
	})
	return out, err
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	_ = w.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading captured stdout: %v", err)
	}
	_ = r.Close()
	return string(data)
}

func TestParseLabIDs(t *testing.T) {
	ids, err := parseLabIDs([]string{"3", "1,2", " "}, []int{2, 4})
	if err != nil {
		t.Fatalf("parseLabIDs returned error: %v", err)
	}
	want := []int{3, 1, 2, 4}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}

	if _, err := parseLabIDs([]string{"one"}, nil); err == nil {
		t.Fatal("expected error for non-numeric lab")
	}

	ids, err = parseLabIDs(nil, nil)
	if err != nil || len(ids) != 0 {
		t.Fatalf("expected no ids, got %v (%v)", ids, err)
	}
}

func TestDownloadRun_SelectedLab(t *testing.T) {
	env := setupGlobals(t, "lab-a", "lab-b")

	out, err := runDownload(t, "", "1")
	if err != nil {
		t.Fatalf("downloadRun returned error: %v\n%s", err, out)
	}

	for _, want := range []string{
		"Downloading datasets for Lab(s): 1",
		"# LAB 1: lab-a",
		"Kaggle:  owner/one",
		"Lab 1 Summary: 2/2 datasets downloaded successfully",
		"Created manifest:",
		"Overall: 2/2 datasets downloaded",
		"All downloads completed successfully!",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got:\n%s", want, out)
		}
	}

	if len(env.fetcher.calls) != 2 {
		t.Errorf("expected 2 fetches, got %v", env.fetcher.calls)
	}

	manifest := filepath.Join(env.base, "lab-a", "data", "raw", "dataset_manifest.json")
	if _, err := os.Stat(manifest); err != nil {
		t.Errorf("expected manifest at %s: %v", manifest, err)
	}

	runs, err := env.store.ListRuns(0, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != store.RunSuccess {
		t.Errorf("expected one successful run, got %+v", runs)
	}
}

func TestDownloadRun_FailureIsItemized(t *testing.T) {
	env := setupGlobals(t, "lab-a")
	env.fetcher.failures["owner/two"] = true

	out, err := runDownload(t, "", "1")
	if err == nil {
		t.Fatal("expected error for incomplete download")
	}
	if !strings.Contains(err.Error(), "1 of 2") {
		t.Errorf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"Download failed",
		"Troubleshooting:",
		"https://www.kaggle.com/datasets/owner/two",
		"Not completed:",
		"owner/two failed",
		"Some downloads failed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestDownloadRun_PromptDeclinedSkips(t *testing.T) {
	env := setupGlobals(t, "lab-a")
	existing := filepath.Join(env.base, "lab-a", "data", "raw", "one", "old.csv")
	if err := os.MkdirAll(filepath.Dir(existing), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(existing, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runDownload(t, "n\n", "1")
	if err == nil {
		t.Fatal("expected error because a dataset was skipped")
	}

	if !strings.Contains(out, "Directory not empty") || !strings.Contains(out, "Skipped.") {
		t.Errorf("expected prompt and skip in output, got:\n%s", out)
	}
	if !strings.Contains(out, "owner/one skipped") {
		t.Errorf("expected skip in summary, got:\n%s", out)
	}
	if len(env.fetcher.calls) != 1 || env.fetcher.calls[0] != "owner/two" {
		t.Errorf("expected only owner/two fetched, got %v", env.fetcher.calls)
	}

	data, err := os.ReadFile(existing)
	if err != nil || string(data) != "old" {
		t.Errorf("existing file changed: %q (%v)", data, err)
	}
}

func TestDownloadRun_NoOverwriteFlag(t *testing.T) {
	env := setupGlobals(t, "lab-a")
	if err := os.MkdirAll(filepath.Join(env.base, "lab-a", "data", "raw", "two", "x"), 0o755); err != nil {
		t.Fatal(err)
	}
	out, err := runDownload(t, "", "--no-overwrite", "1")
	if err == nil {
		t.Fatal("expected error because a dataset was skipped")
	}
	if strings.Contains(out, "Directory not empty") {
		t.Errorf("did not expect an interactive prompt, got:\n%s", out)
	}
	if len(env.fetcher.calls) != 1 || env.fetcher.calls[0] != "owner/one" {
		t.Errorf("expected only owner/one fetched, got %v", env.fetcher.calls)
	}
}

func TestDownloadRun_AllLabsCancelled(t *testing.T) {
	env := setupGlobals(t, "lab-a", "lab-b")

	out, err := runDownload(t, "n\n")
	if err != nil {
		t.Fatalf("cancelling should not be an error: %v", err)
	}
	if !strings.Contains(out, "Downloading datasets for all labs (1, 2)") {
		t.Errorf("expected all-labs banner, got:\n%s", out)
	}
	if !strings.Contains(out, "may exceed 50 GB") {
		t.Errorf("expected size warning, got:\n%s", out)
	}
	if !strings.Contains(out, "Continue? [y/N]:") || !strings.Contains(out, "Cancelled.") {
		t.Errorf("expected prompt and cancellation, got:\n%s", out)
	}
	if len(env.fetcher.calls) != 0 {
		t.Errorf("expected no fetches, got %v", env.fetcher.calls)
	}
}

func TestDownloadRun_AllLabsConfirmed(t *testing.T) {
	env := setupGlobals(t, "lab-a", "lab-b")

	out, err := runDownload(t, "yes\n")
	if err != nil {
		t.Fatalf("downloadRun returned error: %v\n%s", err, out)
	}
	if len(env.fetcher.calls) != 3 {
		t.Errorf("expected 3 fetches, got %v", env.fetcher.calls)
	}
	if !strings.Contains(out, "Overall: 3/3 datasets downloaded") {
		t.Errorf("expected overall count, got:\n%s", out)
	}
}

func TestDownloadRun_UnknownLab(t *testing.T) {
	env := setupGlobals(t, "lab-a")

	out, err := runDownload(t, "", "1", "9")
	if !errors.Is(err, registry.ErrUnknownLab) {
		t.Fatalf("expected unknown lab error, got %v", err)
	}
	if out != "" {
		t.Errorf("expected no output before failing, got:\n%s", out)
	}
	if len(env.fetcher.calls) != 0 {
		t.Errorf("expected no fetches, got %v", env.fetcher.calls)
	}
}

func TestDownloadRun_PreflightFailure(t *testing.T) {
	env := setupGlobals(t, "lab-a")
	env.fetcher.checkErr = &fetcher.ConfigError{
		Reason: `kaggle CLI "kaggle" not found`,
		Hint:   "Install with: pip install kaggle",
		Err:    fetcher.ErrToolUnavailable,
	}

	out, err := runDownload(t, "", "1")
	if !errors.Is(err, fetcher.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !strings.Contains(out, "pip install kaggle") || !strings.Contains(out, "Kaggle API not properly configured") {
		t.Errorf("expected setup hint, got:\n%s", out)
	}
	if len(env.fetcher.calls) != 0 {
		t.Errorf("expected no fetches, got %v", env.fetcher.calls)
	}

	// --skip-check bypasses it
	if _, err := runDownload(t, "", "--skip-check", "1"); err != nil {
		t.Fatalf("expected success with --skip-check, got %v", err)
	}
}

func TestDownloadRun_ConflictingFlags(t *testing.T) {
	setupGlobals(t)

	if _, err := runDownload(t, "", "--yes", "--no-overwrite", "1"); err == nil {
		t.Fatal("expected error for --yes with --no-overwrite")
	}
}

func TestDownloadRun_Quiet(t *testing.T) {
	setupGlobals(t, "lab-a")
	quiet = true

	out, err := runDownload(t, "", "1")
	if err != nil {
		t.Fatalf("downloadRun returned error: %v", err)
	}
	if strings.Contains(out, "# LAB 1") {
		t.Errorf("expected no progress output in quiet mode, got:\n%s", out)
	}
	if !strings.Contains(out, "DOWNLOAD SUMMARY") {
		t.Errorf("expected summary even in quiet mode, got:\n%s", out)
	}
}

func TestManifestRun(t *testing.T) {
	env := setupGlobals(t, "lab-a")
	payload := filepath.Join(env.base, "lab-a", "data", "raw", "weather", "w.csv")
	if err := os.MkdirAll(filepath.Dir(payload), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(payload, make([]byte, 2048), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := newManifestCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	if !strings.Contains(cmd.Long, "missing is reported as not found") {
		t.Errorf("help text does not describe missing labs: %s", cmd.Long)
	}

	err := manifestRun(cmd, nil)
	if err == nil || !strings.Contains(err.Error(), "1 of 2") {
		t.Fatalf("expected one missing lab, got %v", err)
	}
	if !strings.Contains(out.String(), "Created manifest:") || !strings.Contains(out.String(), "1 datasets, 1 files") {
		t.Errorf("expected manifest line, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "lab directory not found") {
		t.Errorf("expected missing lab line, got:\n%s", out.String())
	}
	if len(env.fetcher.calls) != 0 {
		t.Errorf("manifest must not download, got %v", env.fetcher.calls)
	}

	snap, err := env.store.LatestManifest("lab-a")
	if err != nil {
		t.Fatalf("LatestManifest: %v", err)
	}
	if snap.RunID != "" || snap.Files != 1 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestLabsRun(t *testing.T) {
	setupGlobals(t, "lab-a")

	out, err := executeCmd(t, newLabsCmd(), "--datasets")
	if err != nil {
		t.Fatalf("labs returned error: %v", err)
	}

	if !strings.Contains(out, "lab-a") || !strings.Contains(out, "lab-b") {
		t.Fatalf("expected lab names in output, got: %s", out)
	}
	if !strings.Contains(out, "owner/one -> data/raw/one") {
		t.Fatalf("expected dataset listing in output, got: %s", out)
	}
	if !strings.Contains(out, "yes") || !strings.Contains(out, "no") {
		t.Fatalf("expected presence markers in output, got: %s", out)
	}
}

func TestStatusRun(t *testing.T) {
	env := setupGlobals(t, "lab-a")
	env.fetcher.failures["owner/two"] = true
	if _, err := runDownload(t, "", "1"); err == nil {
		t.Fatal("expected incomplete download")
	}

	out := captureStdout(t, func() {
		if err := statusRun(newStatusCmd(), nil); err != nil {
			t.Fatalf("statusRun returned error: %v", err)
		}
	})

	for _, want := range []string{"Recent Runs", "partial", "1/2", "succeeded", "owner/one", "failed", "owner/two", "Manifests", "never"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestStatusRun_FilterByLab(t *testing.T) {
	setupGlobals(t)

	out, err := executeCmd(t, newStatusCmd(), "--lab", "2")
	if err != nil {
		t.Fatalf("status returned error: %v", err)
	}

	if !strings.Contains(out, "No runs recorded") {
		t.Errorf("expected empty history, got:\n%s", out)
	}
	if strings.Contains(out, "lab-a") || !strings.Contains(out, "lab-b") {
		t.Errorf("expected only lab-b manifests, got:\n%s", out)
	}

	if _, err := executeCmd(t, newStatusCmd(), "--lab", "7"); !errors.Is(err, registry.ErrUnknownLab) {
		t.Errorf("expected unknown lab error, got %v", err)
	}
}

func TestStatusRun_NoHistory(t *testing.T) {
	setupGlobals(t)
	globalStore = nil

	if err := statusRun(newStatusCmd(), nil); err == nil {
		t.Fatal("expected error without a store")
	}
}

func TestCheckRun(t *testing.T) {
	env := setupGlobals(t)

	out := captureStdout(t, func() {
		if err := checkRun(newCheckCmd(), nil); err != nil {
			t.Fatalf("checkRun returned error: %v", err)
		}
	})
	if !strings.Contains(out, "credentials found") {
		t.Errorf("expected success line, got: %s", out)
	}

	env.fetcher.checkErr = &fetcher.ConfigError{Reason: "kaggle credentials not found at /x/kaggle.json", Hint: "See docs"}
	out = captureStdout(t, func() {
		if err := checkRun(newCheckCmd(), nil); !errors.Is(err, fetcher.ErrConfiguration) {
			t.Fatalf("expected configuration error, got %v", err)
		}
	})
	if !strings.Contains(out, "/x/kaggle.json") || !strings.Contains(out, "See docs") {
		t.Errorf("expected failure details, got: %s", out)
	}
}

func TestConfigShowRun(t *testing.T) {
	env := setupGlobals(t)

	out := captureStdout(t, func() {
		if err := configShowRun(newConfigShowCmd(), nil); err != nil {
			t.Fatalf("configShowRun returned error: %v", err)
		}
	})

	if !strings.Contains(out, "base_dir: "+env.base) {
		t.Errorf("expected base_dir in output, got: %s", out)
	}
	if !strings.Contains(out, "file_name: dataset_manifest.json") {
		t.Errorf("expected manifest settings in output, got: %s", out)
	}
}

func TestRootCmd_LabsWithDefaults(t *testing.T) {
	setupGlobals(t)
	globalStore = nil
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(config.BaseDirEnv, "")
	origCfgPath, origBaseDir, origNoHistory := cfgPath, baseDir, noHistory
	t.Cleanup(func() { cfgPath, baseDir, noHistory = origCfgPath, origBaseDir, origNoHistory })

	// lives in a fresh dir so no labdata.yaml or .env is picked up
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(home); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"labs", "--base-dir", home, "--log-level", "error"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	for _, want := range []string{"lab-01-nyc-neighborhood-signals", "lab-05-nyc-mobility-externalities"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected %q in output, got:\n%s", want, out.String())
		}
	}
	if globalCfg.Workspace.BaseDir != home {
		t.Errorf("expected --base-dir override, got %q", globalCfg.Workspace.BaseDir)
	}
	if globalStore != nil {
		t.Error("labs should not open the history store")
	}
}
