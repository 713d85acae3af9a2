// Package modules wires the built-in modules and payloads into a registry.
package modules

import (
	"github.com/vulntor/xploit/pkg/module"
	"github.com/vulntor/xploit/pkg/modules/auxiliary"
	"github.com/vulntor/xploit/pkg/modules/payload"
)

// Factories lists every built-in entity.
var Factories = []module.Factory{
	auxiliary.NewTCPForward,
	payload.NewTrafficCapture,
	payload.NewBannerMatch,
}

// Register adds the built-in entities to r.
func Register(r *module.Registry) error {
	for _, f := range Factories {
		if err := r.Register(f); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding the built-in entities.
func NewRegistry() (*module.Registry, error) {
	r := module.NewRegistry()
	if err := Register(r); err != nil {
		return nil, err
	}
	return r, nil
}
