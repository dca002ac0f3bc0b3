package connection

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(_ context.Context, params Params) (any, error) {
	return params, nil
}

func TestNewRejectsBadDeclarations(t *testing.T) {
	tests := []struct {
		name    string
		conn    string
		actions []Action
		wantErr string
	}{
		{
			name:    "empty connection name",
			conn:    "",
			wantErr: "connection name",
		},
		{
			name: "empty action name",
			conn: "svc",
			actions: []Action{
				{Name: "", Handler: echoHandler},
			},
			wantErr: "action name",
		},
		{
			name: "nil handler",
			conn: "svc",
			actions: []Action{
				{Name: "do-thing"},
			},
			wantErr: "handler",
		},
		{
			name: "duplicate action",
			conn: "svc",
			actions: []Action{
				{Name: "do-thing", Handler: echoHandler},
				{Name: "do-thing", Handler: echoHandler},
			},
			wantErr: "duplicate",
		},
		{
			name: "unknown parameter type",
			conn: "svc",
			actions: []Action{
				{
					Name:    "do-thing",
					Handler: echoHandler,
					Parameters: []Parameter{
						{Name: "x", Type: ParamType("float")},
					},
				},
			},
			wantErr: "type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.conn, tt.actions...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func testManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(zerolog.Nop())
	conn, err := New("safe",
		Action{
			Name:        "check-status",
			Description: "check a transaction",
			Parameters: []Parameter{
				{Name: "safe_tx_hash", Required: true, Type: TypeString},
				{Name: "verbose", Required: false, Type: TypeBool},
			},
			Handler: echoHandler,
		},
	)
	require.NoError(t, err)
	require.NoError(t, m.Register(conn))
	return m
}

func TestPerformUnknownTargets(t *testing.T) {
	m := testManager(t)

	_, err := m.Perform(context.Background(), "nope", "check-status", Params{})
	assert.True(t, errors.Is(err, ErrUnknownConnection))

	_, err = m.Perform(context.Background(), "safe", "nope", Params{})
	assert.True(t, errors.Is(err, ErrUnknownAction))
}

func TestPerformValidation(t *testing.T) {
	m := testManager(t)

	t.Run("missing required parameter", func(t *testing.T) {
		_, err := m.Perform(context.Background(), "safe", "check-status", Params{})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "safe", verr.Connection)
		assert.Equal(t, "check-status", verr.Action)
		require.Len(t, verr.Violations, 1)
		assert.Contains(t, verr.Violations[0], "safe_tx_hash")
	})

	t.Run("all violations reported at once", func(t *testing.T) {
		_, err := m.Perform(context.Background(), "safe", "check-status", Params{
			"verbose": "yes",
			"extra":   1,
		})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Len(t, verr.Violations, 3)
	})

	t.Run("valid call reaches the handler", func(t *testing.T) {
		out, err := m.Perform(context.Background(), "safe", "check-status", Params{
			"safe_tx_hash": "0xabc",
			"verbose":      true,
		})
		require.NoError(t, err)
		params, ok := out.(Params)
		require.True(t, ok)
		assert.Equal(t, "0xabc", params.String("safe_tx_hash", ""))
	})
}

func TestParamsAccessors(t *testing.T) {
	p := Params{"s": "x", "n": float64(7)}
	assert.Equal(t, "x", p.String("s", "def"))
	assert.Equal(t, "def", p.String("missing", "def"))
	assert.Equal(t, 7, p.Int("n", 0))
	assert.Equal(t, 3, p.Int("missing", 3))
}

func TestRegisterDuplicateConnection(t *testing.T) {
	m := NewManager(zerolog.Nop())
	conn, err := New("svc", Action{Name: "a", Handler: echoHandler})
	require.NoError(t, err)
	require.NoError(t, m.Register(conn))
	assert.Error(t, m.Register(conn))
}
