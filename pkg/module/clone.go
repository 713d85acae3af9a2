package module

import "fmt"

// Clone returns an independent copy of e built by its Registry factory:
// set properties, the selected target and a clone of the payload are
// carried over. The copy shares the console layer.
func Clone(e Entity) (Entity, error) {
	src := e.Core()
	if src.factory == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotCloneable, src)
	}

	dst := src.factory()
	db := dst.Core()
	db.factory = src.factory
	db.resolver = src.resolver
	db.io = src.io

	if err := copyProperties(src.schema, db.schema); err != nil {
		return nil, err
	}
	if src.target != nil {
		if err := db.SetTarget(src.target.ID); err != nil {
			return nil, err
		}
	}
	if src.payload != nil {
		p, err := Clone(src.payload)
		if err != nil {
			return nil, err
		}
		if err := db.SetPayload(p); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func copyProperties(from, to *Schema) error {
	for _, p := range from.Properties() {
		if !p.IsSet() {
			continue
		}
		q, ok := to.Lookup(p.Name)
		if !ok {
			continue
		}
		if err := q.Set(p.Value()); err != nil {
			return err
		}
	}
	return nil
}
