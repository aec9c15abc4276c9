package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// KaggleConfigDirEnv is honoured by the kaggle CLI for its credentials.
const KaggleConfigDirEnv = "KAGGLE_CONFIG_DIR"

const maxDiagnosticBytes = 16 * 1024

// KaggleCLI drives the kaggle command line tool as a child process.
type KaggleCLI struct {
	binary          string
	credentialsPath string
	logger          *slog.Logger

	// Stdout and Stderr receive the tool's output as it runs.
	Stdout io.Writer
	Stderr io.Writer
}

// NewKaggleCLI creates a downloader for the given binary. An empty
// credentialsPath resolves to the kaggle CLI's own default location.
func NewKaggleCLI(binary, credentialsPath string, logger *slog.Logger) *KaggleCLI {
	if logger == nil {
		logger = slog.Default()
	}
	if binary == "" {
		binary = "kaggle"
	}
	return &KaggleCLI{
		binary:          binary,
		credentialsPath: credentialsPath,
		logger:          logger,
		Stdout:          io.Discard,
		Stderr:          io.Discard,
	}
}

// CredentialsPath returns the credentials file the check looks for.
func (k *KaggleCLI) CredentialsPath() (string, error) {
	if k.credentialsPath != "" {
		return k.credentialsPath, nil
	}
	if dir := os.Getenv(KaggleConfigDirEnv); dir != "" {
		return filepath.Join(dir, "kaggle.json"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".kaggle", "kaggle.json"), nil
}

// CheckAvailable verifies the binary answers --version and the credentials
// file exists. It never touches the network beyond what --version does.
func (k *KaggleCLI) CheckAvailable(ctx context.Context) error {
	path, err := exec.LookPath(k.binary)
	if err != nil {
		return &ConfigError{
			Reason: fmt.Sprintf("kaggle CLI %q not found", k.binary),
			Hint:   "Install with: pip install kaggle",
			Err:    fmt.Errorf("%w: %v", ErrToolUnavailable, err),
		}
	}

	out, err := exec.CommandContext(ctx, path, "--version").CombinedOutput()
	if err != nil {
		return &ConfigError{
			Reason: fmt.Sprintf("kaggle CLI %q did not report a version", path),
			Hint:   "Install with: pip install kaggle",
			Err:    fmt.Errorf("%w: %v: %s", ErrToolUnavailable, err, strings.TrimSpace(string(out))),
		}
	}
	k.logger.Info("kaggle CLI found", "path", path, "version", strings.TrimSpace(string(out)))

	credPath, err := k.CredentialsPath()
	if err != nil {
		return &ConfigError{Reason: "kaggle credentials location unknown", Err: err}
	}
	info, err := os.Stat(credPath)
	if err != nil {
		return &ConfigError{
			Reason: fmt.Sprintf("kaggle credentials not found at %s", credPath),
			Hint:   "See docs/dataset-download-guide.md for setup instructions",
			Err:    err,
		}
	}
	if info.IsDir() {
		return &ConfigError{Reason: fmt.Sprintf("kaggle credentials path %s is a directory", credPath)}
	}
	k.logger.Info("kaggle credentials found", "path", credPath)

	return nil
}

// Fetch runs `kaggle datasets download -d <ref> -p <dest> --unzip` and waits
// for it without a deadline of its own.
func (k *KaggleCLI) Fetch(ctx context.Context, reference, destination string) (*Result, error) {
	args := []string{"datasets", "download", "-d", reference, "-p", destination, "--unzip"}
	cmd := exec.CommandContext(ctx, k.binary, args...)

	stderr := &tailBuffer{limit: maxDiagnosticBytes}
	cmd.Stdout = k.Stdout
	cmd.Stderr = io.MultiWriter(k.Stderr, stderr)

	k.logger.Debug("running downloader", "binary", k.binary, "args", args)
	start := time.Now()
	err := cmd.Run()

	result := &Result{
		Reference:   reference,
		Destination: destination,
		Diagnostics: strings.TrimSpace(stderr.String()),
		Duration:    time.Since(start),
	}

	if err == nil {
		return result, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		return result, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		diag := result.Diagnostics
		if diag == "" {
			diag = exitErr.Error()
		}
		return result, &DownloadFailedError{
			Reference:   reference,
			ExitCode:    result.ExitCode,
			Diagnostics: diag,
		}
	}

	result.ExitCode = -1
	return result, fmt.Errorf("%w: starting %s: %v", ErrToolUnavailable, k.binary, err)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) >= t.limit {
		t.buf.Reset()
		t.buf.Write(p[len(p)-t.limit:])
		return n, nil
	}
	if over := t.buf.Len() + len(p) - t.limit; over > 0 {
		t.buf.Next(over)
	}
	t.buf.Write(p)
	return n, nil
}

func (t *tailBuffer) String() string { return t.buf.String() }
