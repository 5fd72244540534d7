package errors

import (
	"runtime"
	"strings"
	"sync"
)

// selfPkg marks this package's frames so detection skips them.
const selfPkg = "github.com/tkoskin/headsup/internal/errors"

var (
	componentRegistry  = make(map[string]string)
	componentRegistryM sync.RWMutex
)

// RegisterComponent maps a package path fragment to a component name
// for stack-based detection.
func RegisterComponent(packagePattern, componentName string) {
	componentRegistryM.Lock()
	defer componentRegistryM.Unlock()
	componentRegistry[packagePattern] = componentName
}

func init() {
	RegisterComponent("notification", "notification")
	RegisterComponent("alertcenter", "alertcenter")
	RegisterComponent("alertcenter/delivery", "alertcenter.delivery")
	RegisterComponent("account", "account")
	RegisterComponent("events", "events")
	RegisterComponent("conf", "configuration")
	RegisterComponent("telemetry", "telemetry")
	RegisterComponent("api", "api")
	RegisterComponent("daemon", "daemon")
}

// detectComponent walks the calling stack until a frame outside this
// package resolves against the registry.
func detectComponent() string {
	pcs := make([]uintptr, 24)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if name := frame.Function; name != "" && !strings.Contains(name, selfPkg) {
			if component := lookupComponent(name); component != ComponentUnknown {
				return component
			}
		}
		if !more {
			return ComponentUnknown
		}
	}
}

// lookupComponent resolves a fully qualified function name through the
// registry, falling back to the function's package name.
func lookupComponent(funcName string) string {
	componentRegistryM.RLock()
	defer componentRegistryM.RUnlock()

	for pattern, component := range componentRegistry {
		if strings.Contains(funcName, pattern) {
			return component
		}
	}

	if slash := strings.LastIndex(funcName, "/"); slash >= 0 {
		tail := funcName[slash+1:]
		if dot := strings.Index(tail, "."); dot > 0 {
			return tail[:dot]
		}
	}
	return ComponentUnknown
}

// detectCategory classifies an error by its message, then by the
// component it came from. Wrapped EnhancedErrors keep their category.
func detectCategory(err error, component string) ErrorCategory {
	var e *EnhancedError
	if As(err, &e) && e.Category != "" {
		return e.Category
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "authoriz"), strings.Contains(msg, "permission"):
		return CategoryAuthorization
	case strings.Contains(msg, "deliver"), strings.Contains(msg, "push"):
		return CategoryDelivery
	case strings.Contains(msg, "trigger"), strings.Contains(msg, "schedule"), strings.Contains(msg, "cron"):
		return CategoryScheduling
	case strings.Contains(msg, "database"), strings.Contains(msg, "sql"), strings.Contains(msg, "migrat"):
		return CategoryDatabase
	case strings.Contains(msg, "not found"), strings.Contains(msg, "unknown key"):
		return CategoryNotFound
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return CategoryTimeout
	case strings.Contains(msg, "connection"), strings.Contains(msg, "dial"):
		return CategoryNetwork
	case strings.Contains(msg, "validation"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return CategoryValidation
	}

	switch component {
	case "alertcenter":
		return CategoryAlertStore
	case "alertcenter.delivery":
		return CategoryDelivery
	case "account":
		return CategoryState
	case "configuration":
		return CategoryConfiguration
	case "api":
		return CategoryBroadcast
	}
	return CategoryGeneric
}
