//go:build ruleguard

// Package gorules holds custom ruleguard lints for this repository.
// The engine is mostly time arithmetic, so the rules lean on the
// patterns that have bitten reminder scheduling before.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// TimeUntilSince rewrites manual Sub arithmetic against time.Now()
// to the named helpers.
//
// Old pattern:
//
//	remaining := fireAt.Sub(time.Now())
//	age := time.Now().Sub(firedAt)
//
// New pattern:
//
//	remaining := time.Until(fireAt)
//	age := time.Since(firedAt)
//
// See: https://pkg.go.dev/time#Until
func TimeUntilSince(m dsl.Matcher) {
	m.Match(
		`$t.Sub(time.Now())`,
	).
		Report(`use time.Until($t) instead of $t.Sub(time.Now())`).
		Suggest(`time.Until($t)`)

	m.Match(
		`time.Now().Sub($t)`,
	).
		Report(`use time.Since($t) instead of time.Now().Sub($t)`).
		Suggest(`time.Since($t)`)
}

// DeferredTimeSince detects deferred calls that pass time.Since as an
// argument. The duration is computed when the defer statement runs,
// not when the function returns, so the measurement is always ~0.
//
// Broken pattern:
//
//	start := time.Now()
//	defer logger.Info("reconcile done", "took", time.Since(start))
//
// Correct pattern:
//
//	start := time.Now()
//	defer func() { logger.Info("reconcile done", "took", time.Since(start)) }()
//
// See: https://pkg.go.dev/time#Since
func DeferredTimeSince(m dsl.Matcher) {
	m.Match(
		`defer $fn(time.Since($start))`,
		`defer $fn($*_, time.Since($start))`,
		`defer $fn(time.Since($start), $*_)`,
	).
		Report("time.Since($start) is evaluated at defer time, not function exit; wrap the call in func() { ... }")
}

// NaiveDateCompare detects date equality built from Format strings.
// Two instants can share a wall-clock date in one location and not in
// another, and formatting allocates. Trigger normalization compares
// year/month/day in an explicit location instead.
//
// Old pattern:
//
//	a.Format("2006-01-02") == b.Format("2006-01-02")
//
// New pattern:
//
//	ay, am, ad := a.In(loc).Date()
//	by, bm, bd := b.In(loc).Date()
//	same := ay == by && am == bm && ad == bd
//
// See: https://pkg.go.dev/time#Time.Date
func NaiveDateCompare(m dsl.Matcher) {
	m.Match(
		`$a.Format("2006-01-02") == $b.Format("2006-01-02")`,
		`$a.Format("2006-01-02") != $b.Format("2006-01-02")`,
	).
		Report("comparing formatted dates ignores location; compare $a.Date() and $b.Date() in an explicit *time.Location")
}
