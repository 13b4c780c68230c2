package automation

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Condition types as written in rule definitions
const (
	ConditionFieldEquals = "field_equals"
	ConditionUserInRoles = "user_in_roles"
	ConditionAnyOf       = "anyOf"
	ConditionAllOf       = "allOf"
)

// Condition is a compiled predicate over an event
type Condition interface {
	Evaluate(env *Env) bool
}

// ConditionSpec is the declarative form of a condition in JSON or YAML
type ConditionSpec struct {
	Type       string          `json:"type" yaml:"type"`
	Field      string          `json:"field,omitempty" yaml:"field,omitempty"`
	Value      interface{}     `json:"value,omitempty" yaml:"value,omitempty"`
	Roles      []string        `json:"roles,omitempty" yaml:"roles,omitempty"`
	Conditions []ConditionSpec `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// Compile turns the spec into a Condition tree
func (s ConditionSpec) Compile() (Condition, error) {
	switch s.Type {
	case ConditionFieldEquals:
		if strings.TrimSpace(s.Field) == "" {
			return nil, fmt.Errorf("%s: field required", s.Type)
		}
		return FieldEquals{Field: s.Field, Value: s.Value}, nil
	case ConditionUserInRoles:
		return UserInRoles{Roles: s.Roles}, nil
	case ConditionAnyOf, ConditionAllOf:
		children, err := compileAll(s.Conditions)
		if err != nil {
			return nil, err
		}
		if s.Type == ConditionAnyOf {
			return AnyOf{Conditions: children}, nil
		}
		return AllOf{Conditions: children}, nil
	default:
		return nil, fmt.Errorf("unknown condition type %q", s.Type)
	}
}

func compileAll(specs []ConditionSpec) ([]Condition, error) {
	out := make([]Condition, 0, len(specs))
	for _, spec := range specs {
		c, err := spec.Compile()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// FieldEquals compares a dotted-path field with a literal
type FieldEquals struct {
	Field string
	Value interface{}
}

// Evaluate looks the field up in event data, then the event, then the context
func (c FieldEquals) Evaluate(env *Env) bool {
	v, ok := env.Lookup(c.Field)
	if !ok {
		return false
	}
	return valuesEqual(v, c.Value)
}

// UserInRoles is true when the actor holds at least one of Roles
type UserInRoles struct {
	Roles []string
}

// Evaluate checks the actor's roles
func (c UserInRoles) Evaluate(env *Env) bool {
	if env.Event.Actor == nil {
		return false
	}
	for _, want := range c.Roles {
		for _, have := range env.Event.Actor.Roles {
			if want == have {
				return true
			}
		}
	}
	return false
}

// AnyOf is true when any child is true. An empty AnyOf is false.
type AnyOf struct {
	Conditions []Condition
}

// Evaluate short-circuits on the first true child
func (c AnyOf) Evaluate(env *Env) bool {
	for _, child := range c.Conditions {
		if child.Evaluate(env) {
			return true
		}
	}
	return false
}

// AllOf is true when every child is true. An empty AllOf is true.
type AllOf struct {
	Conditions []Condition
}

// Evaluate short-circuits on the first false child
func (c AllOf) Evaluate(env *Env) bool {
	for _, child := range c.Conditions {
		if !child.Evaluate(env) {
			return false
		}
	}
	return true
}

// getByPath walks a dotted path through nested maps and slices
func getByPath(root interface{}, path string) (interface{}, bool) {
	if root == nil || path == "" {
		return nil, false
	}
	cur := root
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]interface{}:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = next
		case []interface{}:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

// valuesEqual compares scalars strictly, treating every numeric kind alike
func valuesEqual(a, b interface{}) bool {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum || bNum {
		return aNum && bNum && af == bf
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v interface{}) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}
