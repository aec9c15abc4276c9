package registry

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/BadgerOps/labdata/internal/config"
	"github.com/BadgerOps/labdata/internal/safety"
)

// ErrUnknownLab is matched by every UnknownLabError.
var ErrUnknownLab = errors.New("unknown lab")

// UnknownLabError reports lab identifiers that are not in the registry.
type UnknownLabError struct {
	IDs   []int
	Valid []int
}

func (e *UnknownLabError) Error() string {
	return fmt.Sprintf("lab %s not found, valid labs: %s", joinInts(e.IDs), joinInts(e.Valid))
}

func (e *UnknownLabError) Is(target error) bool { return target == ErrUnknownLab }

// Dataset describes one external dataset and where it lands inside a lab.
type Dataset struct {
	Reference   string // opaque id understood by the downloader
	Destination string // relative to the lab root
	Description string
}

// Lab is a course project and the datasets it needs, in download order.
type Lab struct {
	ID       int
	Name     string
	Datasets []Dataset
}

// Registry is an immutable table of labs keyed by identifier.
type Registry struct {
	labs map[int]Lab
	ids  []int
}

// New builds a registry, validating identifiers, names and destinations.
func New(labs ...Lab) (*Registry, error) {
	r := &Registry{labs: make(map[int]Lab, len(labs))}
	for _, lab := range labs {
		if lab.ID <= 0 {
			return nil, fmt.Errorf("lab %q: identifier must be positive, got %d", lab.Name, lab.ID)
		}
		if strings.TrimSpace(lab.Name) == "" {
			return nil, fmt.Errorf("lab %d: name is empty", lab.ID)
		}
		if _, dup := r.labs[lab.ID]; dup {
			return nil, fmt.Errorf("lab %d: duplicate identifier", lab.ID)
		}
		if err := safety.LabDirName(lab.Name); err != nil {
			return nil, fmt.Errorf("lab %d: invalid name: %w", lab.ID, err)
		}

		datasets := make([]Dataset, 0, len(lab.Datasets))
		for i, ds := range lab.Datasets {
			if strings.TrimSpace(ds.Reference) == "" {
				return nil, fmt.Errorf("lab %d dataset %d: reference is empty", lab.ID, i)
			}
			dest, err := safety.Destination(ds.Destination)
			if err != nil {
				return nil, fmt.Errorf("lab %d dataset %s: invalid destination: %w", lab.ID, ds.Reference, err)
			}
			ds.Destination = dest
			datasets = append(datasets, ds)
		}
		lab.Datasets = datasets

		r.labs[lab.ID] = lab
		r.ids = append(r.ids, lab.ID)
	}
	sort.Ints(r.ids)
	return r, nil
}

// FromConfig builds a registry from config overrides, falling back to the
// built-in table when none are configured.
func FromConfig(labs []config.LabConfig) (*Registry, error) {
	if len(labs) == 0 {
		return Default(), nil
	}
	converted := make([]Lab, 0, len(labs))
	for _, lc := range labs {
		lab := Lab{ID: lc.ID, Name: lc.Name}
		for _, dc := range lc.Datasets {
			lab.Datasets = append(lab.Datasets, Dataset{
				Reference:   dc.Reference,
				Destination: dc.Destination,
				Description: dc.Description,
			})
		}
		converted = append(converted, lab)
	}
	return New(converted...)
}

// Get returns a copy of the lab with the given identifier.
func (r *Registry) Get(id int) (Lab, error) {
	lab, ok := r.labs[id]
	if !ok {
		return Lab{}, &UnknownLabError{IDs: []int{id}, Valid: r.IDs()}
	}
	return copyLab(lab), nil
}

// Resolve looks up every identifier before returning anything. Unknown
// identifiers are reported together; no partial result is returned.
func (r *Registry) Resolve(ids []int) ([]Lab, error) {
	var unknown []int
	labs := make([]Lab, 0, len(ids))
	for _, id := range ids {
		lab, ok := r.labs[id]
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		labs = append(labs, copyLab(lab))
	}
	if len(unknown) > 0 {
		return nil, &UnknownLabError{IDs: unknown, Valid: r.IDs()}
	}
	return labs, nil
}

// IDs returns the registered identifiers in ascending order.
func (r *Registry) IDs() []int {
	out := make([]int, len(r.ids))
	copy(out, r.ids)
	return out
}

// All returns every lab in identifier order.
func (r *Registry) All() []Lab {
	labs := make([]Lab, 0, len(r.ids))
	for _, id := range r.ids {
		labs = append(labs, copyLab(r.labs[id]))
	}
	return labs
}

// Len returns the number of labs.
func (r *Registry) Len() int { return len(r.ids) }

func copyLab(l Lab) Lab {
	ds := make([]Dataset, len(l.Datasets))
	copy(ds, l.Datasets)
	l.Datasets = ds
	return l
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ", ")
}
