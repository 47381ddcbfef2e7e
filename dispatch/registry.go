// Package dispatch plans and renders the trait implementations that forward
// from an enum to the fields of its variants.
//
// A Registry maps trait names to their declarations. Blueprints are built
// from the dispatchable predicates of a where clause, collect one VariantSig
// per forwarding target while the engine walks the variants, and finally
// render one impl block each.
package dispatch

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/viktorlott/enum-shape/syntax"
)

//go:embed std.rs
var stdTraits string

// Registry is a concurrency-safe, append-only set of trait declarations keyed
// by trait name. The first declaration registered under a name wins.
type Registry struct {
	mu     sync.RWMutex
	traits map[string]*syntax.ItemTrait
	logger *slog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{traits: make(map[string]*syntax.ItemTrait)}
}

// NewStdRegistry returns a registry preloaded with the standard traits.
func NewStdRegistry() *Registry {
	r := NewRegistry()
	if _, err := r.RegisterSource("std.rs", stdTraits); err != nil {
		panic(fmt.Sprintf("dispatch: parse std traits: %v", err))
	}
	return r
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry, preloaded with the standard
// traits on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewStdRegistry()
	})
	return defaultRegistry
}

// WithLogger sets the logger used for registration records.
// If not set, slog.Default() will be used.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
	return r
}

func (r *Registry) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}

// Register adds t under its name. It reports false, leaving the registry
// unchanged, when a trait of that name already exists.
func (r *Registry) Register(t *syntax.ItemTrait) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := t.Name()
	if _, exists := r.traits[name]; exists {
		r.log().Debug("trait already registered", slog.String("trait", name))
		return false
	}
	r.traits[name] = t
	r.log().Debug("trait registered",
		slog.String("trait", name),
		slog.Int("methods", len(t.Methods)),
		slog.Int("assoc_types", len(t.AssocTypes)))
	return true
}

// RegisterSource parses every trait declared in src and registers each one.
// It returns the names that were newly added.
func (r *Registry) RegisterSource(file, src string) ([]string, error) {
	traits, err := syntax.ParseTraits(file, src)
	if err != nil {
		return nil, fmt.Errorf("parse traits: %w", err)
	}
	var added []string
	for _, t := range traits {
		if r.Register(t) {
			added = append(added, t.Name())
		}
	}
	return added, nil
}

// Lookup finds a trait by name. Qualified names such as
// std::convert::AsRef are looked up by their last segment.
func (r *Registry) Lookup(name string) (*syntax.ItemTrait, bool) {
	if i := strings.LastIndex(name, "::"); i >= 0 {
		name = name[i+2:]
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.traits[name]
	return t, ok
}

// LookupBound finds the trait a bound refers to.
func (r *Registry) LookupBound(b syntax.TypeBound) (*syntax.ItemTrait, bool) {
	if b.IsLifetime() {
		return nil, false
	}
	return r.Lookup(b.Name())
}

// Names returns the registered trait names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.traits))
	for name := range r.traits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered traits.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.traits)
}
