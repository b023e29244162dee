package metrics

import (
	"sort"
	"sync"
)

// Source is anything the inspection console can read. Implementations must
// be safe to read concurrently with writers and must be comparable, since
// ownership is checked by identity.
type Source interface {
	Attributes() []Attribute
}

// Directory is the exported metrics directory: a name-keyed table that an
// inspection console (or an exporter such as Prometheus) discovers metrics
// through.
type Directory interface {
	// Register installs src under name. If another source already owns name,
	// the existing source is returned and src is not installed.
	Register(name string, src Source) (Source, error)

	// Unregister removes name only if it is currently owned by src.
	Unregister(name string, src Source) error

	// Lookup returns the source registered under name.
	Lookup(name string) (Source, bool)

	// Names returns all registered names in ascending order.
	Names() []string
}

// MemoryDirectory is an in-process Directory. Lookups are lock-free.
type MemoryDirectory struct {
	sources sync.Map // string -> Source
}

// NewMemoryDirectory creates an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{}
}

// Register implements Directory with first-writer-wins semantics.
func (d *MemoryDirectory) Register(name string, src Source) (Source, error) {
	actual, _ := d.sources.LoadOrStore(name, src)
	return actual.(Source), nil
}

// Unregister implements Directory.
func (d *MemoryDirectory) Unregister(name string, src Source) error {
	d.sources.CompareAndDelete(name, src)
	return nil
}

// Lookup implements Directory.
func (d *MemoryDirectory) Lookup(name string) (Source, bool) {
	v, ok := d.sources.Load(name)
	if !ok {
		return nil, false
	}
	return v.(Source), true
}

// Names implements Directory.
func (d *MemoryDirectory) Names() []string {
	var names []string
	d.sources.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	sort.Strings(names)
	return names
}

// Len returns the number of registered names.
func (d *MemoryDirectory) Len() int {
	n := 0
	d.sources.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
