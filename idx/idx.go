// Package idx provides the read-only package and data indices consumed by
// the compiler: lookups from package name and version to the task functions
// it declares, and from dataset name to its registered location.
package idx

import (
	"fmt"
	"sort"

	"github.com/blang/semver/v4"

	"github.com/marinoandrea/brane/dsl"
)

// A Function describes one callable task declared by a package.
type Function struct {
	Name     string         `json:"name"`
	Args     []dsl.DataType `json:"args"`
	ArgNames []string       `json:"arg_names"`
	Ret      dsl.DataType   `json:"ret"`
}

// A Package is one version of a published package and its task functions.
type Package struct {
	Name      string              `json:"name"`
	Version   string              `json:"version"`
	Functions map[string]Function `json:"functions"`
}

// A PackageIndex maps package names to their published versions.
// It is populated once and then read-only; concurrent lookups are safe.
type PackageIndex struct {
	pkgs map[string][]Package // sorted by ascending version
}

// NewPackageIndex returns an empty package index.
func NewPackageIndex() *PackageIndex {
	return &PackageIndex{pkgs: make(map[string][]Package)}
}

// Insert registers a package version. The version must be valid semver.
func (x *PackageIndex) Insert(p Package) error {
	if _, err := semver.Parse(p.Version); err != nil {
		return fmt.Errorf("package %s: invalid version %q: %w", p.Name, p.Version, err)
	}
	versions := append(x.pkgs[p.Name], p)
	sort.Slice(versions, func(i, j int) bool {
		vi := semver.MustParse(versions[i].Version)
		vj := semver.MustParse(versions[j].Version)
		return vi.LT(vj)
	})
	x.pkgs[p.Name] = versions
	return nil
}

// Get returns the requested version of a package, or the newest published
// version if version is empty or "latest".
func (x *PackageIndex) Get(name, version string) (Package, bool) {
	versions := x.pkgs[name]
	if len(versions) == 0 {
		return Package{}, false
	}
	if version == "" || version == "latest" {
		return versions[len(versions)-1], true
	}
	for _, p := range versions {
		if p.Version == version {
			return p, true
		}
	}
	return Package{}, false
}

// A Dataset is one registered dataset and where it lives.
type Dataset struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

// A DataIndex maps dataset names to their registered locations.
// It is populated once and then read-only; concurrent lookups are safe.
type DataIndex struct {
	sets map[string]Dataset
}

// NewDataIndex returns an empty data index.
func NewDataIndex() *DataIndex {
	return &DataIndex{sets: make(map[string]Dataset)}
}

// Insert registers a dataset.
func (x *DataIndex) Insert(d Dataset) { x.sets[d.Name] = d }

// Get returns the dataset with the given name.
func (x *DataIndex) Get(name string) (Dataset, bool) {
	d, ok := x.sets[name]
	return d, ok
}

// Has reports whether a dataset with the given name is registered.
func (x *DataIndex) Has(name string) bool {
	_, ok := x.sets[name]
	return ok
}
