package task

import (
	"fmt"
	"strings"

	"github.com/vinayprograms/agentcore/errors"
)

// FieldType names the accepted JSON shape of a parameter.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
	TypeNumber FieldType = "number"
	TypeBool   FieldType = "bool"
	TypeObject FieldType = "object"
	TypeArray  FieldType = "array"
	TypeAny    FieldType = "any"
)

// Field describes a single parameter.
type Field struct {
	Name        string
	Type        FieldType
	Required    bool
	Default     any
	Description string
}

// Schema describes the parameters a task type accepts.
// A nil Schema accepts anything.
type Schema struct {
	Fields []Field

	// AllowUnknown keeps parameters that no field declares.
	// When false they are rejected.
	AllowUnknown bool
}

// NewSchema creates a strict schema from fields.
func NewSchema(fields ...Field) *Schema {
	return &Schema{Fields: fields}
}

// Validate checks p against the schema and returns a copy with defaults
// applied. Violations are reported as a single INVALID_INPUT error listing
// every problem.
func (s *Schema) Validate(p Params) (Params, error) {
	out := p.Clone()
	if s == nil {
		return out, nil
	}

	var problems []string
	declared := make(map[string]bool, len(s.Fields))

	for _, f := range s.Fields {
		declared[f.Name] = true
		v, ok := out[f.Name]
		if !ok || v == nil {
			if f.Default != nil {
				out[f.Name] = cloneValue(f.Default)
				continue
			}
			if f.Required {
				problems = append(problems, fmt.Sprintf("missing required parameter %q", f.Name))
			}
			continue
		}
		if !matches(f.Type, out, f.Name) {
			problems = append(problems, fmt.Sprintf("parameter %q must be %s, got %T", f.Name, f.Type, v))
		}
	}

	if !s.AllowUnknown {
		for k := range out {
			if !declared[k] {
				problems = append(problems, fmt.Sprintf("unknown parameter %q", k))
			}
		}
	}

	if len(problems) > 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, strings.Join(problems, "; "))
	}
	return out, nil
}

func matches(t FieldType, p Params, key string) bool {
	v := p[key]
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeInt:
		_, ok := p.Int(key)
		return ok
	case TypeNumber:
		_, ok := p.Float(key)
		return ok
	case TypeBool:
		_, ok := v.(bool)
		return ok
	case TypeObject:
		_, ok := p.Map(key)
		return ok
	case TypeArray:
		switch v.(type) {
		case []any, []string:
			return true
		}
		return false
	case TypeAny, "":
		return true
	}
	return false
}
