package history

import "time"

// Deploy statuses recorded for each code-pipeline run.
const (
	StatusSuccess       = "success"
	StatusCheckoutError = "checkout_failed"
	StatusRestartError  = "restart_failed"
	StatusRejected      = "rejected"
)

// Record is one code deploy as stored in the database.
type Record struct {
	ID              int64
	Project         string
	Status          string
	StartedAt       time.Time
	DurationSeconds float64
	CheckoutExit    *int    // nil if checkout never ran to completion
	RestartExit     *int    // nil if restart was skipped
	ErrorMessage    *string // nil on success
}
