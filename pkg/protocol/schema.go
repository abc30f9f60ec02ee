package protocol

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Property describes a single declared parameter.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// InputSchema is an object schema whose properties keep their declaration
// order across the wire. Elicitation walks properties in that order.
type InputSchema struct {
	Type       string                                   `json:"type"`
	Properties *orderedmap.OrderedMap[string, Property] `json:"properties,omitempty"`
	Required   []string                                 `json:"required,omitempty"`
}

// NewInputSchema returns an empty object schema.
func NewInputSchema() InputSchema {
	return InputSchema{
		Type:       "object",
		Properties: orderedmap.New[string, Property](),
	}
}

// Add appends a property. Adding an existing name replaces its definition
// but keeps its original position.
func (s *InputSchema) Add(name string, prop Property, required bool) *InputSchema {
	if s.Properties == nil {
		s.Properties = orderedmap.New[string, Property]()
	}
	if s.Type == "" {
		s.Type = "object"
	}
	s.Properties.Set(name, prop)
	if required && !s.IsRequired(name) {
		s.Required = append(s.Required, name)
	}
	return s
}

// IsRequired reports whether name is listed as required.
func (s InputSchema) IsRequired(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// Param is the flattened view of one declared parameter. The same
// descriptor drives elicitation on the host and validation on the provider.
type Param struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// Params returns the declared parameters in declaration order.
func (s InputSchema) Params() []Param {
	if s.Properties == nil {
		return nil
	}
	params := make([]Param, 0, s.Properties.Len())
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		params = append(params, Param{
			Name:        pair.Key,
			Type:        pair.Value.Type,
			Description: pair.Value.Description,
			Required:    s.IsRequired(pair.Key),
		})
	}
	return params
}

// MissingRequired lists required parameters absent from args.
func (s InputSchema) MissingRequired(args map[string]interface{}) []string {
	var missing []string
	for _, name := range s.Required {
		if _, ok := args[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
