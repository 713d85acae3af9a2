// Package module implements configurable security modules and payloads:
// a per-entity property schema, target selection, payload compatibility
// rules and pre-execution validation.
package module

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cast"

	"github.com/vulntor/xploit/pkg/config"
	"github.com/vulntor/xploit/pkg/console"
	"github.com/vulntor/xploit/pkg/event"
	"github.com/vulntor/xploit/pkg/jobs"
)

// EntityType separates runnable modules from attachable payloads.
type EntityType string

const (
	TypeModule  EntityType = "module"
	TypePayload EntityType = "payload"
)

// Info is the descriptive metadata of an entity, supplied at construction.
type Info struct {
	Name           string
	Path           string // category, e.g. "auxiliary" or "payload/inspect"
	Author         string
	Description    string
	Version        string
	DisclosureDate time.Time
	References     []string
}

// FullPath returns Path/Name, the key used by the Registry.
func (i Info) FullPath() string {
	return path.Join(i.Path, i.Name)
}

// Target is one addressable objective of a module.
type Target struct {
	ID          int
	Name        string
	Description string
}

// Entity is anything with a Base: modules and payloads.
type Entity interface {
	Core() *Base
}

// Runner is implemented by modules that can be executed.
type Runner interface {
	Run(ctx context.Context, rt *Runtime) error
}

// Runtime is what a running module may use.
type Runtime struct {
	Jobs   *jobs.Registry
	IO     *console.Layer
	Events event.EventBus
	Config *config.Config
	Logger zerolog.Logger
}

// Publish sends an event when a bus is attached.
func (rt *Runtime) Publish(ctx context.Context, name string, data any) {
	if rt.Events != nil {
		rt.Events.Publish(ctx, name, data)
	}
}

// CreateJob tracks owner as a new pending job.
func (rt *Runtime) CreateJob(owner jobs.Jobable) (*jobs.Job, error) {
	return rt.Jobs.Create(owner)
}

// PayloadResolver builds payload instances by full path.
type PayloadResolver interface {
	NewPayload(fullPath string) (Entity, error)
}

// Base holds the state shared by every module and payload. Concrete
// entities embed *Base and declare their schema in their constructor.
//
// Configuration state is mutated from the single command-processing
// context only; Base is not safe for concurrent mutation.
type Base struct {
	info        Info
	typ         EntityType
	payloadKind string

	schema       *Schema
	targets      []Target
	target       *Target
	payload      Entity
	requirements PayloadRequirements

	io       *console.Layer
	factory  func() Entity
	resolver PayloadResolver
}

// BaseOption configures a Base.
type BaseOption func(*Base)

// WithTargets declares the module's targets. IDs are assigned by position.
func WithTargets(targets ...Target) BaseOption {
	return func(b *Base) {
		b.targets = make([]Target, len(targets))
		for i, t := range targets {
			t.ID = i
			b.targets[i] = t
		}
	}
}

// WithRequirements sets the payload compatibility rule.
func WithRequirements(r PayloadRequirements) BaseOption {
	return func(b *Base) { b.requirements = r }
}

// WithDefaultTarget preselects the target at index.
func WithDefaultTarget(index int) BaseOption {
	return func(b *Base) {
		if index >= 0 && index < len(b.targets) {
			t := b.targets[index]
			b.target = &t
		}
	}
}

// NewModuleBase returns the Base of a runnable module.
func NewModuleBase(info Info, schema *Schema, opts ...BaseOption) *Base {
	b := &Base{info: info, typ: TypeModule, schema: schema}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewPayloadBase returns the Base of a payload of the given kind.
func NewPayloadBase(info Info, kind string, schema *Schema) *Base {
	return &Base{info: info, typ: TypePayload, payloadKind: kind, schema: schema}
}

// Core returns b; it lets *Base satisfy Entity when embedded.
func (b *Base) Core() *Base { return b }

func (b *Base) Info() Info                               { return b.info }
func (b *Base) Type() EntityType                         { return b.typ }
func (b *Base) IsPayload() bool                          { return b.typ == TypePayload }
func (b *Base) PayloadKind() string                      { return b.payloadKind }
func (b *Base) Schema() *Schema                          { return b.schema }
func (b *Base) PayloadRequirements() PayloadRequirements { return b.requirements }
func (b *Base) String() string                           { return b.info.FullPath() }

// Targets returns a copy of the declared targets.
func (b *Base) Targets() []Target {
	out := make([]Target, len(b.targets))
	copy(out, b.targets)
	return out
}

// Target returns the selected target.
func (b *Base) Target() (Target, bool) {
	if b.target == nil {
		return Target{}, false
	}
	return *b.target, true
}

// Payload returns the attached payload, or nil.
func (b *Base) Payload() Entity { return b.payload }

// IO returns the bound console layer (possibly nil).
func (b *Base) IO() *console.Layer { return b.io }

// SetIO binds the console layer, propagating it to the payload.
func (b *Base) SetIO(io *console.Layer) {
	b.io = io
	if b.payload != nil {
		b.payload.Core().SetIO(io)
	}
}

// SetTarget selects the target at index. On failure the selection is
// unchanged. A payload no longer allowed for the new target is detached.
func (b *Base) SetTarget(index int) error {
	if index < 0 || index >= len(b.targets) {
		return &ConfigurationError{
			Property: "target",
			Err:      fmt.Errorf("%w: %d (have %d)", ErrTargetOutOfRange, index, len(b.targets)),
		}
	}
	t := b.targets[index]
	b.target = &t

	if b.payload != nil && b.requirements != nil && !b.requirements.IsAllowed(b.target, b.payload) {
		b.payload = nil
	}
	return nil
}

// targetIndex reads a target index. Strings are decimal only, so "010"
// is ten and "0x2" is rejected.
func targetIndex(value any) (int, error) {
	if s, ok := value.(string); ok {
		return strconv.Atoi(strings.TrimSpace(s))
	}
	return cast.ToIntE(value)
}

// SetPayload attaches p after checking it against the requirements for the
// selected target. A nil p detaches the current payload.
func (b *Base) SetPayload(p Entity) error {
	if p == nil {
		b.payload = nil
		return nil
	}
	if !p.Core().IsPayload() {
		return &ConfigurationError{Property: "payload", Err: fmt.Errorf("%w: %s is not a payload", ErrInvalidValue, p.Core())}
	}
	reqs := b.requirements
	if reqs == nil {
		reqs = NoPayload{}
	}
	if !reqs.IsAllowed(b.target, p) {
		return &ConfigurationError{Property: "payload", Err: fmt.Errorf("%w: %s", ErrIncompatiblePayload, p.Core())}
	}
	b.payload = p
	p.Core().SetIO(b.io)
	return nil
}

// SetProperty assigns a property by case-insensitive name.
//
// "target" takes a target index. On a module, "payload" takes a payload
// entity or its full path. Any other name is applied to the module and to
// its payload when both declare it; the call succeeds if either accepted.
func (b *Base) SetProperty(name string, value any) error {
	if name == "" {
		return &ConfigurationError{Err: ErrUnknownProperty}
	}

	if b.typ == TypeModule {
		switch strings.ToLower(name) {
		case "target":
			idx, err := targetIndex(value)
			if err != nil {
				return &ConfigurationError{Property: "target", Err: fmt.Errorf("%w: %v", ErrInvalidValue, value)}
			}
			return b.SetTarget(idx)
		case "payload":
			return b.setPayloadValue(value)
		}
	}

	var (
		found bool
		ok    bool
		first error
	)
	if b.payload != nil {
		if p, has := b.payload.Core().schema.Lookup(name); has {
			found = true
			if err := p.Set(value); err != nil {
				first = err
			} else {
				ok = true
			}
		}
	}
	if p, has := b.schema.Lookup(name); has {
		found = true
		if err := p.Set(value); err != nil {
			if first == nil {
				first = err
			}
		} else {
			ok = true
		}
	}

	switch {
	case !found:
		return &ConfigurationError{Property: name, Err: ErrUnknownProperty}
	case !ok:
		return first
	}
	return nil
}

func (b *Base) setPayloadValue(value any) error {
	switch v := value.(type) {
	case nil:
		return b.SetPayload(nil)
	case Entity:
		return b.SetPayload(v)
	}

	fullPath := strings.TrimSpace(cast.ToString(value))
	if fullPath == "" || strings.EqualFold(fullPath, "none") {
		return b.SetPayload(nil)
	}
	if b.resolver == nil {
		return &ConfigurationError{Property: "payload", Err: fmt.Errorf("%w: no payload resolver for %q", ErrInvalidValue, fullPath)}
	}
	p, err := b.resolver.NewPayload(fullPath)
	if err != nil {
		return &ConfigurationError{Property: "payload", Err: fmt.Errorf("%w: %v", ErrInvalidValue, err)}
	}
	return b.SetPayload(p)
}

// GetProperty returns the value of a property declared by the entity, or
// by its payload when the entity does not declare it.
func (b *Base) GetProperty(name string) (any, bool) {
	if b.typ == TypeModule {
		switch strings.ToLower(name) {
		case "target":
			if b.target == nil {
				return nil, true
			}
			return b.target.ID, true
		case "payload":
			if b.payload == nil {
				return nil, true
			}
			return b.payload.Core().info.FullPath(), true
		}
	}
	if p, ok := b.schema.Lookup(name); ok {
		return p.Value(), true
	}
	if b.payload != nil {
		if p, ok := b.payload.Core().schema.Lookup(name); ok {
			return p.Value(), true
		}
	}
	return nil, false
}

// Check validates the entity before execution: its own properties, then
// the target selection, then the payload and its properties.
func (b *Base) Check(io *console.Layer) error {
	if err := CheckRequiredProperties(b, io); err != nil {
		return err
	}
	if b.typ != TypeModule {
		return nil
	}

	if b.target == nil && len(b.targets) > 0 {
		return &ConfigurationError{Property: "target", Err: ErrMissingTarget}
	}

	if b.payload == nil {
		if b.requirements != nil && b.requirements.IsRequired(b.target) {
			return &ConfigurationError{Property: "payload", Err: ErrMissingPayload}
		}
		return nil
	}
	return CheckRequiredProperties(b.payload, io)
}

func (b *Base) WriteInfo(text string)       { b.io.WriteInfo(text) }
func (b *Base) WriteError(text string)      { b.io.WriteError(text) }
func (b *Base) StartProgress(max float64)   { b.io.StartProgress(max) }
func (b *Base) WriteProgress(value float64) { b.io.WriteProgress(value) }
func (b *Base) EndProgress()                { b.io.EndProgress() }
func (b *Base) IsInProgress() bool          { return b.io.IsInProgress() }
func (b *Base) Beep()                       { b.io.Beep() }
func (b *Base) WriteInfoColored(text, colorText string, c console.Color) {
	b.io.WriteInfoColored(text, colorText, c)
}
