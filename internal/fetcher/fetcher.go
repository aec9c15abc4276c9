package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrConfiguration means the downloader or its credentials are not set up.
	ErrConfiguration = errors.New("downloader not configured")

	// ErrToolUnavailable means the downloader could not be invoked at all,
	// as opposed to an invocation that exited unsuccessfully.
	ErrToolUnavailable = errors.New("downloader unavailable")
)

// Fetcher is the capability the acquisition driver needs from an external
// dataset downloader.
type Fetcher interface {
	// CheckAvailable verifies the tool and its credentials are present.
	CheckAvailable(ctx context.Context) error

	// Fetch downloads and unpacks reference into destination.
	Fetch(ctx context.Context, reference, destination string) (*Result, error)
}

// Result describes a finished downloader invocation.
type Result struct {
	Reference   string
	Destination string
	ExitCode    int
	Diagnostics string // captured stderr, trimmed
	Duration    time.Duration
}

// ConfigError is returned by CheckAvailable. It matches ErrConfiguration
// and, when the binary itself is the problem, ErrToolUnavailable.
type ConfigError struct {
	Reason string
	Hint   string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() []error {
	errs := []error{ErrConfiguration}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// DownloadFailedError reports a downloader run that exited non-zero.
type DownloadFailedError struct {
	Reference   string
	ExitCode    int
	Diagnostics string
}

func (e *DownloadFailedError) Error() string {
	msg := fmt.Sprintf("download of %s failed with exit code %d", e.Reference, e.ExitCode)
	if d := lastLine(e.Diagnostics); d != "" {
		msg += ": " + d
	}
	return msg
}

// Troubleshooting returns operator hints for a failed dataset download.
func (e *DownloadFailedError) Troubleshooting() []string {
	return []string{
		"Visit https://www.kaggle.com/datasets/" + e.Reference,
		"Accept the dataset's terms (if required)",
		"Verify your Kaggle credentials",
		"Try manual download if issues persist",
	}
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
