package domain

import "time"

// User is a stable identity keyed by machine id. Created at most once per
// machine id; lookups are idempotent.
type User struct {
	ID        int64     `json:"id"`
	MachineID string    `json:"machine_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// ObservedActivity pairs a persisted activity snapshot with the time the
// containing state snapshot was recorded.
type ObservedActivity struct {
	Activity Activity
	At       time.Time
}
