package httpapi

import "context"

// serverBaseCtx is canceled by main on shutdown so admission work started by
// a handler stops with the server, not just with its request.
var serverBaseCtx = context.Background()

// SetBaseContext installs the process-level context that handlers join with
// each request context. Nil resets to Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts derives from a a context that is additionally canceled when b
// is done. The returned cancel releases the watcher on b and must be called
// when the handler returns.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
