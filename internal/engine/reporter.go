package engine

import "github.com/BadgerOps/labdata/internal/registry"

// Reporter receives progress events from the Acquirer as they happen.
type Reporter interface {
	LabStarted(lab registry.Lab, root string)
	DatasetStarted(lab registry.Lab, ds registry.Dataset, destination string)
	DatasetFinished(o Outcome)
	ManifestWritten(lab registry.Lab, path string, m *Manifest, err error)
	LabFinished(lr *LabReport)
}

type nopReporter struct{}

func (nopReporter) LabStarted(registry.Lab, string)                        {}
func (nopReporter) DatasetStarted(registry.Lab, registry.Dataset, string)  {}
func (nopReporter) DatasetFinished(Outcome)                                {}
func (nopReporter) ManifestWritten(registry.Lab, string, *Manifest, error) {}
func (nopReporter) LabFinished(*LabReport)                                 {}
