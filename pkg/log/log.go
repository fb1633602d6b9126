// Package log carries the process-default controller and its context
// propagation, so call sites without an explicit logger reference still
// route to the right controller.
//
// The original design kept a per-thread "current logger" slot; Go has no
// goroutine-local storage, so the scope is explicit instead: a controller
// travels in a context.Context for the duration of a logging scope, with a
// process-wide default as the fallback. Install the default once during
// startup and clear it during teardown:
//
//	ctrl := controller.New(logcore.DefaultConfig())
//	log.SetDefault(ctrl)
//	defer log.SetDefault(nil)
//
//	ctx := log.WithController(ctx, requestCtrl) // narrower scope
//	log.Dispatch(ctx, handle, 0, logcore.InfoLevel)
package log

import (
	"context"
	"sync/atomic"

	"github.com/hyp3rd/logcore"
	"github.com/hyp3rd/logcore/pkg/controller"
)

//nolint:gochecknoglobals // the process-default controller is the point
var defaultController atomic.Pointer[controller.Controller]

type contextKey struct{}

// SetDefault installs c as the process-wide default controller. Passing
// nil clears it.
func SetDefault(c *controller.Controller) {
	defaultController.Store(c)
}

// Default returns the process-wide default controller, nil when unset.
func Default() *controller.Controller {
	return defaultController.Load()
}

// WithController returns a context carrying c for the duration of a
// logging scope.
func WithController(ctx context.Context, c *controller.Controller) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the controller carried by ctx, falling back to the
// process default. Returns nil when neither is set.
func FromContext(ctx context.Context) *controller.Controller {
	if ctx != nil {
		if c, ok := ctx.Value(contextKey{}).(*controller.Controller); ok && c != nil {
			return c
		}
	}

	return Default()
}

// Dispatch routes a message through the context's controller. Returns
// false when no controller is installed or the message was dropped;
// callers treat both as "drop", never as an error.
func Dispatch(ctx context.Context, h logcore.PayloadHandle, stacktraceID int64, level logcore.Level) bool {
	c := FromContext(ctx)
	if c == nil {
		return false
	}

	return c.DispatchMessage(h, stacktraceID, level)
}
