package models

import "time"

// SyncOutcome is the per-run tally returned by the sync engine. Running the
// same direction twice with no intervening changes yields all-zero counts
// except Skipped.
type SyncOutcome struct {
	Added         int `json:"added"`
	Updated       int `json:"updated"`
	MarkedDeleted int `json:"markedDeleted"`
	Removed       int `json:"removed"`
	Skipped       int `json:"skipped"`
}

// HealthSummary aggregates one token health sweep.
type HealthSummary struct {
	RunID        string    `json:"runId"`
	Total        int       `json:"total"`
	Success      int       `json:"success"`
	Failures     int       `json:"failures"`
	NewlyExpired int       `json:"newlyExpired"`
	StartedAt    time.Time `json:"startedAt"`
	CompletedAt  time.Time `json:"completedAt"`
}
