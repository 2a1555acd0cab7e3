package models

// CapabilitySchemaVersion is the capability document version this server understands
const CapabilitySchemaVersion = 1

// Component is one controllable or observable part of a device
type Component struct {
	Name           string   `json:"name"`
	Actions        []string `json:"actions"`
	IsOutput       bool     `json:"is_output"`        // emits unsolicited events
	HasInputAction bool     `json:"has_input_action"` // an action may carry a free-form payload
}

// CapabilitySchema is the ordered list of components a device declares
type CapabilitySchema struct {
	Version    int         `json:"version,omitempty"`
	Components []Component `json:"components"`
}

// Component looks up a component by name
func (s CapabilitySchema) Component(name string) (*Component, bool) {
	for i := range s.Components {
		if s.Components[i].Name == name {
			return &s.Components[i], true
		}
	}
	return nil, false
}

// Supports reports whether the schema declares action on the named component.
// Components with has_input_action accept any action string.
func (s CapabilitySchema) Supports(p CommandPayload) bool {
	c, ok := s.Component(p.Name)
	if !ok {
		return false
	}
	if c.HasInputAction {
		return true
	}
	for _, a := range c.Actions {
		if a == p.Action {
			return true
		}
	}
	return false
}
