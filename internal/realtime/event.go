package realtime

import "time"

const (
	KindProblem  = "problem"
	KindSolution = "solution"
)

// StatusEvent announces that a Problem or Solution changed status.
type StatusEvent struct {
	Kind    string    `json:"kind"`
	ID      string    `json:"id"`
	Status  string    `json:"status"`
	OwnerID string    `json:"owner_id"`
	At      time.Time `json:"at"`
}
