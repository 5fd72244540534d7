//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// WaitGroupGo detects the manual Add/Done pattern that Go 1.25's
// wg.Go replaces. The store worker, dispatcher and stream handlers
// all track goroutines this way.
//
// Old pattern:
//
//	wg.Add(1)
//	go func() {
//	    defer wg.Done()
//	    deliver(alert)
//	}()
//
// New pattern (Go 1.25+):
//
//	wg.Go(func() {
//	    deliver(alert)
//	})
//
// See: https://pkg.go.dev/sync#WaitGroup.Go
func WaitGroupGo(m dsl.Matcher) {
	m.Match(
		`$wg.Add(1); go func() { defer $wg.Done(); $*body }()`,
	).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("use $wg.Go(func() { $body }) instead of manual Add/Done (Go 1.25+)").
		Suggest("$wg.Go(func() { $body })")

	m.Match(
		`go func() { defer $wg.Done(); $*_ }()`,
	).
		Where(m["wg"].Type.Is("*sync.WaitGroup")).
		Report("use $wg.Go(func() { ... }) instead of go func with defer $wg.Done() (Go 1.25+)")
}

// TimeAfterInLoop detects time.After inside a select loop. Every
// iteration allocates a timer that is not reclaimed until it fires,
// which matters in long-lived loops like the heartbeat and delivery
// retry paths.
//
// Old pattern:
//
//	for {
//	    select {
//	    case u := <-updates:
//	        send(u)
//	    case <-time.After(heartbeatInterval):
//	        heartbeat()
//	    }
//	}
//
// New pattern:
//
//	ticker := time.NewTicker(heartbeatInterval)
//	defer ticker.Stop()
//	for {
//	    select {
//	    case u := <-updates:
//	        send(u)
//	    case <-ticker.C:
//	        heartbeat()
//	    }
//	}
//
// See: https://pkg.go.dev/time#After
func TimeAfterInLoop(m dsl.Matcher) {
	m.Match(
		`for { select { case <-time.After($d): $*_; $*_ } }`,
		`for { select { case $*_; case <-time.After($d): $*_ } }`,
		`for $cond { select { case $*_; case <-time.After($d): $*_ } }`,
	).
		Report("time.After in a loop allocates a timer per iteration; hoist a time.NewTicker or time.NewTimer out of the loop")
}
