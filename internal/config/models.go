package config

import (
	"fmt"
	"slices"
	"time"
)

// Registry is the saved-gateway file.
type Registry struct {
	Version  int                 `yaml:"version"`
	Default  string              `yaml:"default,omitempty"`  // Name of the gateway used when none is given
	Gateways map[string]*Gateway `yaml:"gateways,omitempty"` // Keyed by user-chosen name
}

// Gateway is one saved gateway.
type Gateway struct {
	Host          string    `yaml:"host"`
	Port          int       `yaml:"port,omitempty"`       // Zero means the generation's standard port
	Generation    string    `yaml:"generation,omitempty"` // plus or legacy
	Notes         string    `yaml:"notes,omitempty"`
	LastConnected time.Time `yaml:"last_connected,omitempty"`
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		Version:  1,
		Gateways: make(map[string]*Gateway),
	}
}

// Names returns the saved gateway names in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Gateways))
	for name := range r.Gateways {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// GetGateway returns the gateway saved under name, or nil.
func (r *Registry) GetGateway(name string) *Gateway {
	return r.Gateways[name]
}

// SetGateway saves g under name, replacing any previous entry. The first
// gateway saved becomes the default.
func (r *Registry) SetGateway(name string, g Gateway) error {
	if name == "" {
		return fmt.Errorf("gateway name must not be empty")
	}
	if g.Host == "" {
		return fmt.Errorf("gateway %q: host must not be empty", name)
	}
	if r.Gateways == nil {
		r.Gateways = make(map[string]*Gateway)
	}
	r.Gateways[name] = &g
	if r.Default == "" {
		r.Default = name
	}
	return nil
}

// RemoveGateway deletes the gateway saved under name. It reports whether
// there was one. Removing the default clears it.
func (r *Registry) RemoveGateway(name string) bool {
	if _, ok := r.Gateways[name]; !ok {
		return false
	}
	delete(r.Gateways, name)
	if r.Default == name {
		r.Default = ""
	}
	return true
}

// Resolve returns the gateway saved under name, or the default one when
// name is empty.
func (r *Registry) Resolve(name string) (*Gateway, error) {
	if name == "" {
		name = r.Default
	}
	if name == "" {
		return nil, fmt.Errorf("no gateway given and no default saved")
	}
	g, ok := r.Gateways[name]
	if !ok {
		return nil, fmt.Errorf("no saved gateway named %q", name)
	}
	return g, nil
}

// MarkConnected records a successful connection to the gateway saved under
// name.
func (r *Registry) MarkConnected(name string, at time.Time) {
	if g, ok := r.Gateways[name]; ok {
		g.LastConnected = at
	}
}
