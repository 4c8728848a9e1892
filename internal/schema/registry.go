package schema

import (
	"fmt"

	"github.com/feichai0017/intake-processor/internal/models"
)

// Registry is an immutable set of field descriptors keyed by path. It is
// built once at startup and safe for concurrent reads.
type Registry struct {
	name   string
	order  []string
	fields map[string]FieldDescriptor
}

// NewRegistry validates fields and builds a registry. Paths must be unique.
func NewRegistry(name string, fields []FieldDescriptor) (*Registry, error) {
	r := &Registry{
		name:   name,
		order:  make([]string, 0, len(fields)),
		fields: make(map[string]FieldDescriptor, len(fields)),
	}
	for _, f := range fields {
		if err := f.validate(); err != nil {
			return nil, fmt.Errorf("profile %s: %w", name, err)
		}
		if _, dup := r.fields[f.Path]; dup {
			return nil, fmt.Errorf("profile %s: duplicate field path %s", name, f.Path)
		}
		if f.Range != nil && f.Range.Step == 0 {
			rng := *f.Range
			rng.Step = 1
			f.Range = &rng
		}
		r.order = append(r.order, f.Path)
		r.fields[f.Path] = f
	}
	if len(r.order) == 0 {
		return nil, fmt.Errorf("profile %s has no fields", name)
	}
	return r, nil
}

func (r *Registry) Name() string { return r.name }

func (r *Registry) Len() int { return len(r.order) }

// Paths returns the field paths in declaration order.
func (r *Registry) Paths() []string {
	return append([]string(nil), r.order...)
}

// Fields returns the descriptors in declaration order.
func (r *Registry) Fields() []FieldDescriptor {
	out := make([]FieldDescriptor, len(r.order))
	for i, p := range r.order {
		out[i] = r.fields[p]
	}
	return out
}

func (r *Registry) Lookup(path string) (FieldDescriptor, bool) {
	f, ok := r.fields[path]
	return f, ok
}

// Sections returns the distinct first path segments in declaration order.
func (r *Registry) Sections() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range r.order {
		s := r.fields[p].Section()
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Subset returns a registry restricted to paths, keeping declaration order.
func (r *Registry) Subset(name string, paths ...string) (*Registry, error) {
	want := make(map[string]bool, len(paths))
	for _, p := range paths {
		if _, ok := r.fields[p]; !ok {
			return nil, fmt.Errorf("profile %s has no field %s", r.name, p)
		}
		want[p] = true
	}
	var fields []FieldDescriptor
	for _, p := range r.order {
		if want[p] {
			fields = append(fields, r.fields[p])
		}
	}
	return NewRegistry(name, fields)
}

// Section returns the registry restricted to one section.
func (r *Registry) Section(section string) (*Registry, error) {
	var paths []string
	for _, p := range r.order {
		if r.fields[p].Section() == section {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("profile %s has no section %s", r.name, section)
	}
	return r.Subset(r.name+"."+section, paths...)
}

// Defaults returns a record with every field set to Unknown.
func (r *Registry) Defaults() models.RawRecord {
	out := make(models.RawRecord, len(r.order))
	for _, p := range r.order {
		out[p] = models.Unknown
	}
	return out
}
