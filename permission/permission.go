// Package permission decides whether a panel operation may proceed. All
// policy lives in a single user-supplied decision function; the gate adds
// no caching and no default-allow.
package permission

import (
	"errors"
	"fmt"

	"github.com/gopanel/gopanel/web"
)

// Action identifies what an operation wants to do.
type Action string

const (
	ActionRead    Action = "read"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionLogView Action = "log_view"
)

var (
	// ErrEvaluation wraps a failure of the decision function itself.
	ErrEvaluation = errors.New("permission evaluation failed")
	// ErrNilFunc is returned when a gate is constructed without a
	// decision function.
	ErrNilFunc = errors.New("permission decision function is required")
)

// Request describes one operation to the decision function. Action is
// always set; the other fields are empty when not applicable (the
// dashboard has no app, a list view has no instance).
type Request struct {
	App        string
	Model      string
	InstanceID string
	Action     Action
}

// Func is the user-supplied decision function. It may be called any
// number of times per logical user action (once per row in a list view,
// for example) and must tolerate that.
type Func func(req Request, c web.Context) (bool, error)

// Gate evaluates the decision function for every operation.
type Gate struct {
	fn Func
}

// NewGate builds a gate around fn. fn is mandatory.
func NewGate(fn Func) (*Gate, error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	return &Gate{fn: fn}, nil
}

// Check calls the decision function exactly once. Anything other than an
// explicit (true, nil) is a denial for the caller; evaluation failures
// come back wrapped in ErrEvaluation.
func (g *Gate) Check(req Request, c web.Context) (bool, error) {
	if req.Action == "" {
		return false, fmt.Errorf("%w: request has no action", ErrEvaluation)
	}
	allowed, err := g.fn(req, c)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrEvaluation, err)
	}
	return allowed, nil
}

// AllowAll is a decision function that permits everything. Meant for
// development setups and examples.
func AllowAll(Request, web.Context) (bool, error) { return true, nil }
