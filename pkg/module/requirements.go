package module

import "slices"

// PayloadRequirements decides which payloads fit the selected target.
// target is nil when the module has no target selected.
type PayloadRequirements interface {
	// IsAllowed reports whether payload may be attached.
	IsAllowed(target *Target, payload Entity) bool
	// IsRequired reports whether a payload must be attached before running.
	IsRequired(target *Target) bool
}

// NoPayload accepts no payload at all.
type NoPayload struct{}

func (NoPayload) IsAllowed(*Target, Entity) bool { return false }
func (NoPayload) IsRequired(*Target) bool        { return false }

// KindRequirement allows payloads whose kind is listed. An empty list
// allows every payload.
type KindRequirement struct {
	Kinds    []string
	Required bool
}

func (k KindRequirement) IsAllowed(_ *Target, payload Entity) bool {
	if payload == nil {
		return false
	}
	b := payload.Core()
	if !b.IsPayload() {
		return false
	}
	return len(k.Kinds) == 0 || slices.Contains(k.Kinds, b.PayloadKind())
}

func (k KindRequirement) IsRequired(*Target) bool { return k.Required }

// PerTarget dispatches to the requirements of the selected target index,
// falling back to Default (NoPayload when nil).
type PerTarget struct {
	ByTarget map[int]PayloadRequirements
	Default  PayloadRequirements
}

func (p PerTarget) pick(target *Target) PayloadRequirements {
	if target != nil {
		if r, ok := p.ByTarget[target.ID]; ok {
			return r
		}
	}
	if p.Default != nil {
		return p.Default
	}
	return NoPayload{}
}

func (p PerTarget) IsAllowed(target *Target, payload Entity) bool {
	return p.pick(target).IsAllowed(target, payload)
}

func (p PerTarget) IsRequired(target *Target) bool {
	return p.pick(target).IsRequired(target)
}
