package module

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Kind tells the validator how to treat a property's value.
type Kind int

const (
	// KindPlain is a value without filesystem semantics.
	KindPlain Kind = iota
	// KindFile is a path that must exist when set.
	KindFile
	// KindDirectory is a path that is created on demand after confirmation.
	KindDirectory
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return "plain"
	}
}

// Property is one configurable value of an entity: a typed accessor pair
// plus the metadata used by CheckRequiredProperties.
type Property struct {
	Name        string
	Description string
	Required    bool
	Kind        Kind

	get func() any
	set func(value any) error
}

// PropertyOption customises a Property at declaration time.
type PropertyOption func(*Property)

// Required marks the property as mandatory.
func Required() PropertyOption {
	return func(p *Property) { p.Required = true }
}

// Describe sets the property description.
func Describe(desc string) PropertyOption {
	return func(p *Property) { p.Description = desc }
}

// Value returns the current value, or nil when unset.
func (p *Property) Value() any {
	return p.get()
}

// IsSet reports whether the property holds a value.
func (p *Property) IsSet() bool {
	return isSet(p.get())
}

// Set coerces value to the property's type and stores it. A nil value
// clears the property.
func (p *Property) Set(value any) error {
	if err := p.set(value); err != nil {
		return &ConfigurationError{Property: p.Name, Err: fmt.Errorf("%w: %v", ErrInvalidValue, err)}
	}
	return nil
}

// Display renders the current value for listings.
func (p *Property) Display() string {
	v := p.get()
	if !isSet(v) {
		return ""
	}
	return cast.ToString(v)
}

func isSet(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	return true
}

func newProperty(name string, kind Kind, get func() any, set func(any) error, opts []PropertyOption) *Property {
	p := &Property{Name: name, Kind: kind, get: get, set: set}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func stringProperty(name string, kind Kind, dst *string, opts []PropertyOption) *Property {
	return newProperty(name, kind,
		func() any { return *dst },
		func(v any) error {
			if v == nil {
				*dst = ""
				return nil
			}
			s, err := cast.ToStringE(v)
			if err != nil {
				return err
			}
			*dst = strings.TrimSpace(s)
			return nil
		}, opts)
}

// String declares a plain string property bound to dst.
func String(name string, dst *string, opts ...PropertyOption) *Property {
	return stringProperty(name, KindPlain, dst, opts)
}

// File declares a path property that must point at an existing file.
func File(name string, dst *string, opts ...PropertyOption) *Property {
	return stringProperty(name, KindFile, dst, opts)
}

// Directory declares a path property whose directory is created on demand.
func Directory(name string, dst *string, opts ...PropertyOption) *Property {
	return stringProperty(name, KindDirectory, dst, opts)
}

// Int declares an integer property bound to dst. The property stays unset
// until a value is assigned, even when *dst holds a default.
func Int(name string, dst *int, opts ...PropertyOption) *Property {
	set := false
	return newProperty(name, KindPlain,
		func() any {
			if !set {
				return nil
			}
			return *dst
		},
		func(v any) error {
			if v == nil {
				set = false
				*dst = 0
				return nil
			}
			n, err := cast.ToIntE(v)
			if err != nil {
				return err
			}
			*dst, set = n, true
			return nil
		}, opts)
}

// Bool declares a boolean property bound to dst. Booleans always count as set.
func Bool(name string, dst *bool, opts ...PropertyOption) *Property {
	return newProperty(name, KindPlain,
		func() any { return *dst },
		func(v any) error {
			if v == nil {
				*dst = false
				return nil
			}
			b, err := cast.ToBoolE(v)
			if err != nil {
				return err
			}
			*dst = b
			return nil
		}, opts)
}

// Duration declares a time.Duration property bound to dst.
func Duration(name string, dst *time.Duration, opts ...PropertyOption) *Property {
	return newProperty(name, KindPlain,
		func() any {
			if *dst == 0 {
				return nil
			}
			return *dst
		},
		func(v any) error {
			if v == nil {
				*dst = 0
				return nil
			}
			d, err := cast.ToDurationE(v)
			if err != nil {
				return err
			}
			*dst = d
			return nil
		}, opts)
}

// Schema is the ordered set of properties an entity exposes. Names are
// matched case-insensitively.
type Schema struct {
	props []*Property
	index map[string]*Property
}

// NewSchema builds a schema. Declaring two properties with the same
// case-insensitive name panics.
func NewSchema(props ...*Property) *Schema {
	s := &Schema{index: make(map[string]*Property, len(props))}
	for _, p := range props {
		key := strings.ToLower(p.Name)
		if _, dup := s.index[key]; dup {
			panic(fmt.Sprintf("module: duplicate property %q", p.Name))
		}
		s.index[key] = p
		s.props = append(s.props, p)
	}
	return s
}

// Lookup finds a property by case-insensitive name.
func (s *Schema) Lookup(name string) (*Property, bool) {
	if s == nil {
		return nil, false
	}
	p, ok := s.index[strings.ToLower(name)]
	return p, ok
}

// Properties returns the properties in declaration order.
func (s *Schema) Properties() []*Property {
	if s == nil {
		return nil
	}
	out := make([]*Property, len(s.props))
	copy(out, s.props)
	return out
}

// Len returns the number of declared properties.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.props)
}
