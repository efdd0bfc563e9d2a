// Package schemaregistry holds the field schema of every (product, country)
// wizard. Schemas are YAML documents; the shipped set is embedded and a
// deployment may add or replace documents from a directory.
package schemaregistry

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"quote-wizard/internal/mapper"
	"quote-wizard/internal/model"
)

//go:embed schemas/*.yaml
var embedded embed.FS

// Registry is safe for concurrent reads. Returned schemas are shared and
// must not be mutated.
type Registry struct {
	mu      sync.RWMutex
	schemas map[model.SchemaKey]*model.FieldSchema
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the registry of embedded schemas. An invalid embedded
// schema is a build defect, so it panics.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := New()
		if err != nil {
			panic(fmt.Sprintf("schemaregistry: %v", err))
		}
		defaultReg = r
	})
	return defaultReg
}

// New loads the embedded schemas.
func New() (*Registry, error) {
	r := &Registry{schemas: make(map[model.SchemaKey]*model.FieldSchema)}
	if err := r.loadFS(embedded, "schemas"); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadDir adds every *.yaml document in dir, replacing schemas with the
// same (product, country).
func (r *Registry) LoadDir(dir string) error {
	return r.loadFS(os.DirFS(dir), ".")
}

func (r *Registry) loadFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read schemas: %w", err)
	}
	loaded := make(map[model.SchemaKey]*model.FieldSchema)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		data, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(dir, e.Name())))
		if err != nil {
			return fmt.Errorf("read %s: %w", e.Name(), err)
		}
		s, err := Parse(data)
		if err != nil {
			return fmt.Errorf("%s: %w", e.Name(), err)
		}
		if _, dup := loaded[s.Key()]; dup {
			return fmt.Errorf("%s: duplicate schema for %s", e.Name(), s.Key())
		}
		loaded[s.Key()] = s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for k, s := range loaded {
		r.schemas[k] = s
	}
	return nil
}

// Register adds a schema after checking it.
func (r *Registry) Register(s *model.FieldSchema) error {
	if err := Validate(s); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[s.Key()] = s
	return nil
}

// SchemaFor looks up the schema of a product in a country.
func (r *Registry) SchemaFor(p model.ProductType, c model.Country) (*model.FieldSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[model.SchemaKey{Product: p, Country: c}]
	if !ok {
		return nil, &model.ConfigurationError{Kind: model.UnknownProduct, Value: fmt.Sprintf("%s/%s", c, p)}
	}
	return s, nil
}

// Products lists the products registered for a country in display order.
func (r *Registry) Products(c model.Country) []model.ProductType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order := make(map[model.ProductType]int, len(model.Products))
	for i, p := range model.Products {
		order[p] = i
	}
	var out []model.ProductType
	for k := range r.schemas {
		if k.Country == c {
			out = append(out, k.Product)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		oi, iok := order[out[i]]
		oj, jok := order[out[j]]
		if iok && jok {
			return oi < oj
		}
		if iok != jok {
			return iok
		}
		return out[i] < out[j]
	})
	return out
}

// Parse decodes and validates one schema document.
func Parse(data []byte) (*model.FieldSchema, error) {
	var s model.FieldSchema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	p, err := model.ParseProduct(string(s.Product))
	if err != nil {
		return nil, err
	}
	c, err := model.ParseCountry(string(s.Country))
	if err != nil {
		return nil, err
	}
	s.Product, s.Country = p, c
	if err := Validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the structural invariants of a schema.
func Validate(s *model.FieldSchema) error {
	var errs []error
	if len(s.Steps) == 0 {
		errs = append(errs, errors.New("schema has no steps"))
	}
	keys := make(map[string]bool)
	backendKeys := map[string]bool{"country": true, "policy_type": true}
	for i, st := range s.Steps {
		if len(st.Fields) == 0 {
			errs = append(errs, fmt.Errorf("step %d has no fields", i))
		}
		for _, f := range st.Fields {
			if f.Key == "" || f.BackendKey == "" {
				errs = append(errs, fmt.Errorf("step %d: field needs key and backend_key", i))
				continue
			}
			if keys[f.Key] {
				errs = append(errs, fmt.Errorf("duplicate key %q", f.Key))
			}
			if backendKeys[f.BackendKey] {
				errs = append(errs, fmt.Errorf("duplicate backend key %q", f.BackendKey))
			}
			keys[f.Key] = true
			backendKeys[f.BackendKey] = true
			errs = append(errs, validateField(f)...)
		}
	}
	for _, d := range s.Derived {
		if !keys[d.Source] {
			errs = append(errs, fmt.Errorf("derived %q: unknown source %q", d.BackendKey, d.Source))
		}
		if backendKeys[d.BackendKey] {
			errs = append(errs, fmt.Errorf("duplicate backend key %q", d.BackendKey))
		}
		backendKeys[d.BackendKey] = true
		if _, ok := mapper.Rule(d.Rule); !ok {
			errs = append(errs, fmt.Errorf("derived %q: unknown rule %q", d.BackendKey, d.Rule))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid schema %s: %w", s.Key(), errors.Join(errs...))
	}
	return nil
}

func validateField(f model.FieldDefinition) []error {
	var errs []error
	switch f.Kind {
	case model.KindInteger, model.KindDecimal, model.KindText, model.KindBoolean:
	case model.KindSingleChoice, model.KindMultiChoice:
		if len(f.Options) == 0 {
			errs = append(errs, fmt.Errorf("field %q: choice kind needs options", f.Key))
		}
	default:
		errs = append(errs, fmt.Errorf("field %q: unknown kind %q", f.Key, f.Kind))
	}
	if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
		errs = append(errs, fmt.Errorf("field %q: min > max", f.Key))
	}
	if (f.Min != nil || f.Max != nil) && !f.Kind.IsNumeric() {
		errs = append(errs, fmt.Errorf("field %q: min/max on non-numeric kind", f.Key))
	}
	if f.Lookup != "" {
		if _, ok := mapper.Lookup(f.Lookup); !ok {
			errs = append(errs, fmt.Errorf("field %q: unknown lookup %q", f.Key, f.Lookup))
		}
	}
	if f.ExclusiveOption != "" && f.Kind != model.KindMultiChoice {
		errs = append(errs, fmt.Errorf("field %q: exclusive_option needs multiChoice", f.Key))
	}
	return errs
}
