package safety

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is matched by every PathError.
var ErrUnsafePath = errors.New("unsafe path")

// PathError reports a lab name or dataset destination that would place
// files outside its lab directory.
type PathError struct {
	Path   string
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s: %q", e.Reason, e.Path)
}

func (e *PathError) Is(target error) bool { return target == ErrUnsafePath }

// LabDirName checks that name is usable as a single directory under the
// workspace base dir.
func LabDirName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return &PathError{Path: name, Reason: "lab name is empty"}
	case name == "." || name == "..":
		return &PathError{Path: name, Reason: "lab name is not a directory name"}
	case strings.ContainsAny(name, `/\`):
		return &PathError{Path: name, Reason: "lab name contains a path separator"}
	}
	return nil
}

// Destination normalizes a dataset destination, which is relative to the
// lab root. Empty, absolute and parent-traversing destinations are rejected.
func Destination(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", &PathError{Path: p, Reason: "destination is empty"}
	}

	clean := filepath.Clean(filepath.FromSlash(p))
	if clean == "." {
		return "", &PathError{Path: p, Reason: "destination is the lab root"}
	}
	if filepath.IsAbs(clean) || strings.HasPrefix(filepath.ToSlash(p), "/") {
		return "", &PathError{Path: p, Reason: "destination is absolute"}
	}
	if escapes(clean) {
		return "", &PathError{Path: p, Reason: "destination leaves the lab root"}
	}
	return clean, nil
}

// DatasetDir resolves destination under labRoot. The returned path is
// absolute.
func DatasetDir(labRoot, destination string) (string, error) {
	rel, err := Destination(destination)
	if err != nil {
		return "", err
	}
	rootAbs, err := filepath.Abs(labRoot)
	if err != nil {
		return "", fmt.Errorf("resolving lab root: %w", err)
	}

	dir := filepath.Join(rootAbs, rel)
	back, err := filepath.Rel(rootAbs, dir)
	if err != nil || escapes(back) {
		return "", &PathError{Path: destination, Reason: "destination leaves the lab root"}
	}
	return dir, nil
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
