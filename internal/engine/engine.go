package engine

import "context"

// DispatchRequest carries the fields the execution engine needs to start
// generating for an admitted session.
type DispatchRequest struct {
	SessionID     string
	ContextTokens int
	Priority      int
}

// Engine is the external inference runtime the controller schedules work
// onto. The controller never calls it while holding its admission lock.
type Engine interface {
	// Dispatch starts generation for an admitted session.
	Dispatch(ctx context.Context, req DispatchRequest) error
	// Abort tells the engine to stop an in-flight session, used when the
	// scheduler evicts it or the client disconnects.
	Abort(sessionID string) error
}
