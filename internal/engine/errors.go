package engine

import (
	"errors"
	"fmt"
)

// ErrLabNotFound means a lab's directory is missing from the workspace.
var ErrLabNotFound = errors.New("lab directory not found")

// ManifestWriteError reports a manifest that could not be written.
type ManifestWriteError struct {
	LabName string
	Path    string
	Err     error
}

func (e *ManifestWriteError) Error() string {
	return fmt.Sprintf("writing manifest for %s at %s: %v", e.LabName, e.Path, e.Err)
}

func (e *ManifestWriteError) Unwrap() error { return e.Err }
