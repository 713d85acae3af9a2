package module

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
)

var (
	// ErrModuleNotFound indicates no factory is registered under a path.
	ErrModuleNotFound = errors.New("module not found")

	// ErrDuplicateModule indicates a path is registered twice.
	ErrDuplicateModule = errors.New("module already registered")
)

// Factory builds a fresh entity instance.
type Factory func() Entity

// Registry maps full paths to entity factories. Instances it builds can be
// cloned and resolve payload paths through it.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	infos     map[string]Info
	types     map[string]EntityType
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		infos:     make(map[string]Info),
		types:     make(map[string]EntityType),
	}
}

// Register adds factory under the full path of the entity it builds.
// The entity's version, when present, must be a semantic version.
func (r *Registry) Register(factory Factory) error {
	probe := factory()
	b := probe.Core()
	info := b.Info()
	key := strings.ToLower(info.FullPath())
	if info.Name == "" {
		return fmt.Errorf("module: entity %T has no name", probe)
	}
	if info.Version != "" {
		if _, err := semver.NewVersion(info.Version); err != nil {
			return fmt.Errorf("module: %s: invalid version %q: %w", key, info.Version, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateModule, key)
	}
	r.factories[key] = factory
	r.infos[key] = info
	r.types[key] = b.Type()
	return nil
}

// MustRegister is Register that panics on error, for init-time wiring.
func (r *Registry) MustRegister(factory Factory) {
	if err := r.Register(factory); err != nil {
		panic(err)
	}
}

// New builds the entity registered under fullPath.
func (r *Registry) New(fullPath string) (Entity, error) {
	key := strings.ToLower(strings.Trim(strings.TrimSpace(fullPath), "/"))
	r.mu.RLock()
	f, ok := r.factories[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, fullPath)
	}

	e := f()
	b := e.Core()
	b.factory = f
	b.resolver = r
	return e, nil
}

// NewModule builds a runnable module.
func (r *Registry) NewModule(fullPath string) (Entity, error) {
	e, err := r.New(fullPath)
	if err != nil {
		return nil, err
	}
	if e.Core().IsPayload() {
		return nil, fmt.Errorf("%w: %s is a payload", ErrModuleNotFound, fullPath)
	}
	return e, nil
}

// NewPayload builds a payload. It implements PayloadResolver.
func (r *Registry) NewPayload(fullPath string) (Entity, error) {
	e, err := r.New(fullPath)
	if err != nil {
		return nil, err
	}
	if !e.Core().IsPayload() {
		return nil, fmt.Errorf("%w: %s is not a payload", ErrModuleNotFound, fullPath)
	}
	return e, nil
}

// Modules lists registered module infos sorted by full path.
func (r *Registry) Modules() []Info { return r.list(TypeModule) }

// Payloads lists registered payload infos sorted by full path.
func (r *Registry) Payloads() []Info { return r.list(TypePayload) }

func (r *Registry) list(t EntityType) []Info {
	r.mu.RLock()
	out := make([]Info, 0, len(r.infos))
	for key, info := range r.infos {
		if r.types[key] == t {
			out = append(out, info)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].FullPath() < out[j].FullPath() })
	return out
}

// CompatiblePayloads lists the payloads module accepts for its selected target.
func (r *Registry) CompatiblePayloads(module Entity) []Info {
	b := module.Core()
	reqs := b.PayloadRequirements()
	if reqs == nil {
		return nil
	}
	var target *Target
	if t, ok := b.Target(); ok {
		target = &t
	}

	var out []Info
	for _, info := range r.Payloads() {
		p, err := r.NewPayload(info.FullPath())
		if err != nil {
			continue
		}
		if reqs.IsAllowed(target, p) {
			out = append(out, info)
		}
	}
	return out
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}
