package lifecycle

import (
	"fmt"

	"expediter/internal/models"
)

// Command names an operation attempted against an order's lifecycle
type Command string

const (
	CommandStart    Command = "start"
	CommandCancel   Command = "cancel"
	CommandExpire   Command = "expire"
	CommandExtend   Command = "extend"
	CommandComplete Command = "complete"
	CommandDestroy  Command = "destroy"
	CommandStatus   Command = "status"
)

// InvalidTransitionError reports a command that is not legal from the order's
// current status.
type InvalidTransitionError struct {
	Current   models.OrderStatus
	Attempted Command
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s an order in status %q", e.Attempted, e.Current)
}

// ValidationError reports a malformed command parameter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
