package usage

import "time"

// UnlimitedAllowance is the plan sentinel for no monthly cap.
const UnlimitedAllowance = -1

// Snapshot is a user's plan consumption for the current calendar month.
// It is derived from analysis rows, never persisted.
type Snapshot struct {
	Plan      string    `json:"plan"`
	Limit     int       `json:"limit"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	Unlimited bool      `json:"unlimited"`
	ResetsAt  time.Time `json:"resetsAt"`
}

// Admission is the QuotaGate verdict for one analysis request.
type Admission struct {
	Allowed bool `json:"allowed"`
	Snapshot
}
