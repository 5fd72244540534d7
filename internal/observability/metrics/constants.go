// Package metrics provides constants used across metric definitions.
package metrics

// Operation label values shared across metric definitions. These
// constants name the alert store and journal operations that can be
// recorded.
const (
	// OpAdd represents alert scheduling writes.
	OpAdd = "add"
	// OpRemovePending represents removal of not-yet-fired alerts.
	OpRemovePending = "remove_pending"
	// OpRemoveDelivered represents removal of already-fired alerts.
	OpRemoveDelivered = "remove_delivered"
	// OpPendingList represents pending alert queries.
	OpPendingList = "pending_list"
	// OpAuthorization represents authorization status checks and prompts.
	OpAuthorization = "authorization"
	// OpJournalWrite represents journal persistence writes.
	OpJournalWrite = "journal_write"
	// OpJournalPrune represents retention pruning of journal rows.
	OpJournalPrune = "journal_prune"
)

// Status label values.
const (
	// StatusSuccess marks an operation that completed normally.
	StatusSuccess = "success"
	// StatusError marks an operation that failed.
	StatusError = "error"
	// StatusScheduled marks an alert request accepted by the store.
	StatusScheduled = "scheduled"
	// StatusDuplicate marks an alert request suppressed by deduplication.
	StatusDuplicate = "duplicate"
	// StatusUnauthorized marks an alert request skipped for lack of permission.
	StatusUnauthorized = "unauthorized"
)
