package errors

import (
	"fmt"
	"testing"
)

// BenchmarkErrorCreationNoReporting tests error creation performance when reporting is disabled
func BenchmarkErrorCreationNoReporting(b *testing.B) {
	ClearErrorHooks()
	SetEventPublisher(nil)

	b.ReportAllocs()

	for b.Loop() {
		err := fmt.Errorf("test error")
		_ = New(err).
			Component("test").
			Category(CategoryGeneric).
			Build()
	}
}

// BenchmarkErrorCreationNoReportingAutoDetect tests error creation with auto-detection when reporting is disabled
func BenchmarkErrorCreationNoReportingAutoDetect(b *testing.B) {
	ClearErrorHooks()
	SetEventPublisher(nil)

	b.ReportAllocs()

	for b.Loop() {
		err := fmt.Errorf("test error")
		_ = New(err).Build() // Let it auto-detect component and category
	}
}

// BenchmarkErrorCreationWithContext tests error creation with context when reporting is disabled
func BenchmarkErrorCreationWithContext(b *testing.B) {
	ClearErrorHooks()
	SetEventPublisher(nil)

	b.ReportAllocs()

	for b.Loop() {
		err := fmt.Errorf("test error")
		_ = New(err).
			Component("test").
			Category(CategoryGeneric).
			Context("operation", "test_op").
			Context("count", 42).
			Build()
	}
}

// BenchmarkErrorCreationWithHook tests error creation when a reporting hook is active
func BenchmarkErrorCreationWithHook(b *testing.B) {
	ClearErrorHooks()
	AddErrorHook(func(ee *EnhancedError) {})
	b.Cleanup(ClearErrorHooks)

	b.ReportAllocs()

	for b.Loop() {
		err := fmt.Errorf("add failed for key account-expiry")
		_ = New(err).
			Component("notification").
			Category(CategoryAlertStore).
			Context("key", "account-expiry").
			Build()
	}
}
