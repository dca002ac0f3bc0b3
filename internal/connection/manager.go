package connection

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Manager routes Perform calls to registered connections. Dispatch has no
// side effects of its own beyond the underlying handler.
type Manager struct {
	conns map[string]*Connection
	log   zerolog.Logger
}

func NewManager(log zerolog.Logger) *Manager {
	return &Manager{conns: make(map[string]*Connection), log: log}
}

// Register adds a connection. Re-registering a name is an error.
func (m *Manager) Register(c *Connection) error {
	if _, dup := m.conns[c.name]; dup {
		return fmt.Errorf("connection %q already registered", c.name)
	}
	m.conns[c.name] = c
	return nil
}

// Connections returns the registered connections sorted by name.
func (m *Manager) Connections() []*Connection {
	out := make([]*Connection, 0, len(m.conns))
	for _, c := range m.conns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Perform validates params against the declared action and invokes its
// handler, returning the handler result unchanged.
func (m *Manager) Perform(ctx context.Context, connName, actionName string, params Params) (any, error) {
	conn, ok := m.conns[connName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConnection, connName)
	}
	action, ok := conn.actions[actionName]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownAction, connName, actionName)
	}
	if violations := action.validate(params); len(violations) > 0 {
		return nil, &ValidationError{Connection: connName, Action: actionName, Violations: violations}
	}

	start := time.Now()
	result, err := action.Handler(ctx, params)
	ev := m.log.Debug()
	if err != nil {
		ev = m.log.Error().Err(err)
	}
	ev.Str("connection", connName).
		Str("action", actionName).
		Dur("duration", time.Since(start)).
		Msg("action performed")
	return result, err
}
