// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Release orchestrators
// embedding npmship can register hooks at startup to receive events about
// lifecycle steps and registry calls.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define a hook interface for lifecycle events
//   - Provide a no-op default implementation
//   - Allow registration of a custom implementation at startup
//
// Hooks are registered by main, not by libraries, which avoids import
// cycles and keeps the core free of observability framework imports.
//
// # Usage
//
//	func main() {
//	    observability.SetReleaseHooks(&myHooks{})
//	    // ... run release steps
//	}
package observability

import (
	"context"
	"sync"
	"time"
)

// ReleaseHooks receives events from the release lifecycle.
type ReleaseHooks interface {
	// OnStepStart fires when a lifecycle step (verify, prepare, publish)
	// begins.
	OnStepStart(ctx context.Context, step string)

	// OnStepComplete fires when a lifecycle step finishes, with its
	// duration and terminal error (nil on success).
	OnStepComplete(ctx context.Context, step string, duration time.Duration, err error)

	// OnRegistryCall fires after each outbound registry HTTP call.
	OnRegistryCall(ctx context.Context, registryURL, operation string, err error)
}

// NoopReleaseHooks is a ReleaseHooks implementation that does nothing.
type NoopReleaseHooks struct{}

func (NoopReleaseHooks) OnStepStart(context.Context, string)                              {}
func (NoopReleaseHooks) OnStepComplete(context.Context, string, time.Duration, error)     {}
func (NoopReleaseHooks) OnRegistryCall(ctx context.Context, registry, op string, e error) {}

var (
	mu           sync.RWMutex
	releaseHooks ReleaseHooks = NoopReleaseHooks{}
)

// SetReleaseHooks registers the hooks implementation. Call once at
// startup, before any lifecycle step runs.
func SetReleaseHooks(h ReleaseHooks) {
	mu.Lock()
	defer mu.Unlock()
	if h == nil {
		h = NoopReleaseHooks{}
	}
	releaseHooks = h
}

// Release returns the registered hooks, never nil.
func Release() ReleaseHooks {
	mu.RLock()
	defer mu.RUnlock()
	return releaseHooks
}
