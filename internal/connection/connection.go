// Package connection implements the uniform action dispatch layer. Every
// external integration registers as a named Connection declaring its actions
// and their typed parameters; callers go through Manager.Perform, which
// validates arguments before the handler ever runs.
package connection

import (
	"context"
	"fmt"
	"sort"
)

// ParamType is the declared type of an action parameter.
type ParamType string

const (
	TypeString ParamType = "string"
	TypeInt    ParamType = "int"
	TypeBool   ParamType = "bool"
)

// Parameter declares one argument of an action.
type Parameter struct {
	Name        string
	Required    bool
	Type        ParamType
	Description string
}

// Params carries the call-site arguments for one Perform call.
type Params map[string]any

// String returns the named string parameter, or def when absent.
func (p Params) String(name, def string) string {
	if v, ok := p[name].(string); ok {
		return v
	}
	return def
}

// Int returns the named integer parameter, or def when absent.
func (p Params) Int(name string, def int) int {
	switch v := p[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// HandlerFunc executes one validated action call.
type HandlerFunc func(ctx context.Context, params Params) (any, error)

// Action binds a declared parameter list to its handler.
type Action struct {
	Name        string
	Description string
	Parameters  []Parameter
	Handler     HandlerFunc
}

// Connection is a named integration with a fixed set of declared actions.
type Connection struct {
	name    string
	actions map[string]Action
}

// New validates the action declarations and builds a Connection. Declaration
// problems (duplicate action, nil handler, unknown parameter type) are
// programming errors and reported at registration, not at call time.
func New(name string, actions ...Action) (*Connection, error) {
	if name == "" {
		return nil, fmt.Errorf("connection name is required")
	}
	c := &Connection{name: name, actions: make(map[string]Action, len(actions))}
	for _, a := range actions {
		if a.Name == "" {
			return nil, fmt.Errorf("connection %q: action with empty name", name)
		}
		if a.Handler == nil {
			return nil, fmt.Errorf("connection %q: action %q has no handler", name, a.Name)
		}
		if _, dup := c.actions[a.Name]; dup {
			return nil, fmt.Errorf("connection %q: duplicate action %q", name, a.Name)
		}
		for _, p := range a.Parameters {
			switch p.Type {
			case TypeString, TypeInt, TypeBool:
			default:
				return nil, fmt.Errorf("connection %q: action %q: parameter %q has unknown type %q",
					name, a.Name, p.Name, p.Type)
			}
		}
		c.actions[a.Name] = a
	}
	return c, nil
}

// Name returns the connection's registered name.
func (c *Connection) Name() string { return c.name }

// Actions returns the declared actions sorted by name.
func (c *Connection) Actions() []Action {
	out := make([]Action, 0, len(c.actions))
	for _, a := range c.actions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// validate checks params against the declaration and collects every
// violation found, so callers can fix all of them at once.
func (a Action) validate(params Params) []string {
	var violations []string

	declared := make(map[string]Parameter, len(a.Parameters))
	for _, p := range a.Parameters {
		declared[p.Name] = p
		v, present := params[p.Name]
		if !present {
			if p.Required {
				violations = append(violations, fmt.Sprintf("missing required parameter %q", p.Name))
			}
			continue
		}
		if !typeMatches(p.Type, v) {
			violations = append(violations, fmt.Sprintf("parameter %q must be of type %s", p.Name, p.Type))
		}
	}

	for name := range params {
		if _, ok := declared[name]; !ok {
			violations = append(violations, fmt.Sprintf("undeclared parameter %q", name))
		}
	}

	sort.Strings(violations)
	return violations
}

func typeMatches(t ParamType, v any) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeInt:
		switch v.(type) {
		case int, int64:
			return true
		case float64:
			// JSON decoding yields float64 for numbers.
			f := v.(float64)
			return f == float64(int64(f))
		}
		return false
	case TypeBool:
		_, ok := v.(bool)
		return ok
	}
	return false
}
