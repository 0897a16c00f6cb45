// Package shutdown derives the root context for the api, watermarker,
// and reconcile binaries. Canceling on SIGINT/SIGTERM lets the HTTP
// server drain and the worker finish its in-flight batch.
package shutdown

import (
	"context"
	"os/signal"
	"syscall"
)

func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
