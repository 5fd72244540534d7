// Package errors - reporting activation and hooks
package errors

import (
	"sync"
	"sync/atomic"
)

// ErrorHook is called for every error built while reporting is active.
// Hooks must be fast and must not call back into the errors package.
type ErrorHook func(ee *EnhancedError)

var (
	errorHooks   []ErrorHook
	errorHooksMu sync.RWMutex

	// hasActiveReporting gates the expensive Build path. It is true when at
	// least one hook is registered or an event publisher is attached.
	hasActiveReporting atomic.Bool
)

// AddErrorHook registers a hook invoked for every built error.
func AddErrorHook(hook ErrorHook) {
	errorHooksMu.Lock()
	defer errorHooksMu.Unlock()
	errorHooks = append(errorHooks, hook)
	hasActiveReporting.Store(true)
}

// ClearErrorHooks removes all registered hooks.
func ClearErrorHooks() {
	errorHooksMu.Lock()
	defer errorHooksMu.Unlock()
	errorHooks = nil
	updateActiveReporting()
}

// notifyHooks calls all registered hooks with the error.
func notifyHooks(ee *EnhancedError) {
	errorHooksMu.RLock()
	hooks := errorHooks
	errorHooksMu.RUnlock()

	for _, hook := range hooks {
		hook(ee)
	}
}

// updateActiveReporting recomputes the fast-path gate. Callers must hold
// errorHooksMu when invoked from hook mutation paths.
func updateActiveReporting() {
	active := len(errorHooks) > 0 || eventSink.Load() != nil
	hasActiveReporting.Store(active)
}
