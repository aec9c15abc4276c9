package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

const bytesPerMB = 1024 * 1024

// downloadDateLayout is fixed width so manifests sort by date as text.
const downloadDateLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Manifest is the JSON document written under a lab's raw-data directory.
// It is derived from a directory scan, never from the registry.
type Manifest struct {
	LabName      string            `json:"lab_name"`
	DownloadDate string            `json:"download_date"`
	Datasets     []ManifestDataset `json:"datasets"`

	// TotalBytes sums every listed file. Not serialized.
	TotalBytes int64 `json:"-"`
}

// ManifestDataset is one immediate subdirectory of the raw-data root.
type ManifestDataset struct {
	Directory string         `json:"directory"`
	Files     []ManifestFile `json:"files"`
}

// ManifestFile is one regular file directly inside a dataset directory.
type ManifestFile struct {
	Name   string  `json:"name"`
	SizeMB float64 `json:"size_mb"`
}

// FileCount returns the number of files across all datasets.
func (m *Manifest) FileCount() int {
	n := 0
	for _, ds := range m.Datasets {
		n += len(ds.Files)
	}
	return n
}

// SizeMB converts a byte count to megabytes rounded half-up to two decimals.
func SizeMB(size int64) float64 {
	return math.Floor(float64(size)/bytesPerMB*100+0.5) / 100
}

// ManifestWriter scans raw-data directories and writes manifests.
type ManifestWriter struct {
	fs       afero.Fs
	fileName string
	exclude  map[string]bool
	now      func() time.Time
}

// NewManifestWriter creates a writer. Directories named in exclude are
// never listed.
func NewManifestWriter(fs afero.Fs, fileName string, exclude []string) *ManifestWriter {
	if fileName == "" {
		fileName = "dataset_manifest.json"
	}
	ex := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		ex[name] = true
	}
	return &ManifestWriter{
		fs:       fs,
		fileName: fileName,
		exclude:  ex,
		now:      time.Now,
	}
}

// Path returns where the manifest for rawRoot is written.
func (w *ManifestWriter) Path(rawRoot string) string {
	return filepath.Join(rawRoot, w.fileName)
}

// Build scans rawRoot and returns the manifest without writing it.
// A missing rawRoot yields a manifest with no datasets.
func (w *ManifestWriter) Build(labName, rawRoot string) (*Manifest, error) {
	m := &Manifest{
		LabName:      labName,
		DownloadDate: w.now().UTC().Format(downloadDateLayout),
		Datasets:     []ManifestDataset{},
	}

	// afero.ReadDir returns entries sorted by name
	entries, err := afero.ReadDir(w.fs, rawRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("reading %s: %w", rawRoot, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || w.exclude[entry.Name()] {
			continue
		}

		dir := filepath.Join(rawRoot, entry.Name())
		files, err := afero.ReadDir(w.fs, dir)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", dir, err)
		}

		ds := ManifestDataset{Directory: entry.Name(), Files: []ManifestFile{}}
		for _, f := range files {
			if !f.Mode().IsRegular() {
				continue
			}
			ds.Files = append(ds.Files, ManifestFile{Name: f.Name(), SizeMB: SizeMB(f.Size())})
			m.TotalBytes += f.Size()
		}
		m.Datasets = append(m.Datasets, ds)
	}

	return m, nil
}

// Write scans rawRoot and overwrites its manifest file. rawRoot is created
// when missing. Errors are returned as *ManifestWriteError.
func (w *ManifestWriter) Write(labName, rawRoot string) (string, *Manifest, error) {
	path := w.Path(rawRoot)
	fail := func(err error) (string, *Manifest, error) {
		return path, nil, &ManifestWriteError{LabName: labName, Path: path, Err: err}
	}

	if err := w.fs.MkdirAll(rawRoot, 0o755); err != nil {
		return fail(fmt.Errorf("creating %s: %w", rawRoot, err))
	}

	m, err := w.Build(labName, rawRoot)
	if err != nil {
		return fail(err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fail(fmt.Errorf("encoding manifest: %w", err))
	}
	data = append(data, '\n')

	if err := afero.WriteFile(w.fs, path, data, 0o644); err != nil {
		return fail(err)
	}

	return path, m, nil
}
