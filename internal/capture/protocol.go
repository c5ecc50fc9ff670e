package capture

import (
	"context"

	usecaseErrors "github.com/johnquangdev/meetscribe/internal/usecase/errors"
)

// Control command names
const (
	CmdStart = "START"
	CmdStop  = "STOP"
)

// ControlRequest is a control surface command
type ControlRequest struct {
	Cmd      string `json:"cmd" validate:"required"`
	Endpoint string `json:"endpoint,omitempty"`
}

// Reply answers a control or worker command
type Reply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ReplyFor builds a reply from an operation result
func ReplyFor(err error) Reply {
	if err != nil {
		return Reply{OK: false, Error: usecaseErrors.Wire(err)}
	}
	return Reply{OK: true}
}

// Err converts the reply back into an error, nil when OK
func (r Reply) Err() error {
	if r.OK {
		return nil
	}
	if r.Error == "" {
		return usecaseErrors.ErrInternalError
	}
	return usecaseErrors.ParseWire(r.Error)
}

// WorkerCommand is a coordinator to worker command
type WorkerCommand struct {
	Type     string `json:"type"`
	Endpoint string `json:"endpoint,omitempty"`
	Handle   string `json:"handle,omitempty"`
}

// WorkerState is the capture worker session state
type WorkerState string

const (
	WorkerIdle         WorkerState = "idle"
	WorkerInitializing WorkerState = "initializing"
	WorkerCapturing    WorkerState = "capturing"
	WorkerDraining     WorkerState = "draining"
)

// CoordinatorState is the background coordinator state
type CoordinatorState string

const (
	CoordinatorIdle         CoordinatorState = "idle"
	CoordinatorInitializing CoordinatorState = "initializing"
	CoordinatorActive       CoordinatorState = "active"
	CoordinatorStopping     CoordinatorState = "stopping"
)

// Status reports coordinator and worker state
type Status struct {
	Coordinator CoordinatorState `json:"coordinator"`
	Worker      WorkerState      `json:"worker"`
	Endpoint    string           `json:"endpoint,omitempty"`
	TabURL      string           `json:"tab_url,omitempty"`
}

// WorkerPort is how the coordinator talks to a provisioned worker
type WorkerPort interface {
	Dispatch(ctx context.Context, cmd WorkerCommand) Reply
	State() WorkerState
}

// WorkerHost provisions the capture worker's execution context.
// Ensure is idempotent and returns the same worker on every call.
type WorkerHost interface {
	Ensure(ctx context.Context) (WorkerPort, error)
}
