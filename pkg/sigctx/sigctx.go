package sigctx

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

var stopSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
	syscall.SIGQUIT,
}

// NotifyContext returns a context that is canceled on the first stop
// signal. A second signal falls back to the default behavior once the
// returned stop func is called.
func NotifyContext() (context.Context, context.CancelFunc) {
	return WithParent(context.Background())
}

func WithParent(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, stopSignals...)
}
