package params

// Type enumerates the value kinds a parameter definition may declare.
type Type string

const (
	TypeNumber  Type = "number"
	TypeString  Type = "string"
	TypeBoolean Type = "boolean"
	TypeSelect  Type = "select"
)

// Definition describes one tunable request parameter. Definitions are owned
// by a provider's client and are immutable after registration.
type Definition struct {
	Key         string   `json:"key"`
	Type        Type     `json:"type"`
	Default     any      `json:"default,omitempty"`
	Min         *float64 `json:"min,omitempty"` // numeric bound, or min length for strings
	Max         *float64 `json:"max,omitempty"` // numeric bound, or max length for strings
	Options     []string `json:"options,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Float is a convenience for building Min/Max bounds inline.
func Float(v float64) *float64 { return &v }

// NumberDef builds a number definition with inclusive bounds.
func NumberDef(key string, def, min, max float64, desc string) Definition {
	return Definition{Key: key, Type: TypeNumber, Default: def, Min: Float(min), Max: Float(max), Description: desc}
}

// StringDef builds a string definition with length bounds. A nil bound is
// unbounded.
func StringDef(key string, def string, min, max *float64, desc string) Definition {
	d := Definition{Key: key, Type: TypeString, Min: min, Max: max, Description: desc}
	if def != "" {
		d.Default = def
	}
	return d
}

// BoolDef builds a boolean definition.
func BoolDef(key string, def bool, desc string) Definition {
	return Definition{Key: key, Type: TypeBoolean, Default: def, Description: desc}
}

// SelectDef builds a select definition constrained to options.
func SelectDef(key string, def string, options []string, desc string) Definition {
	d := Definition{Key: key, Type: TypeSelect, Options: options, Description: desc}
	if def != "" {
		d.Default = def
	}
	return d
}

// index maps definitions by key for lookup.
func index(defs []Definition) map[string]Definition {
	m := make(map[string]Definition, len(defs))
	for _, d := range defs {
		m[d.Key] = d
	}
	return m
}
