package connection

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownConnection is returned when the connection name is not registered.
	ErrUnknownConnection = errors.New("unknown connection")
	// ErrUnknownAction is returned when the action is not declared on the connection.
	ErrUnknownAction = errors.New("unknown action")
)

// ValidationError reports every parameter violation found for one call.
type ValidationError struct {
	Connection string
	Action     string
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameters for %s/%s: %s",
		e.Connection, e.Action, strings.Join(e.Violations, "; "))
}
