package domain

import "time"

type PunchKind string

const (
	PunchEntry      PunchKind = "entry"
	PunchBreakStart PunchKind = "break_start"
	PunchBreakEnd   PunchKind = "break_end"
	PunchExit       PunchKind = "exit"
)

// PunchSource records how a punch reached the server.
type PunchSource string

const (
	// PunchSourceOnline is a punch submitted directly by a live portal.
	PunchSourceOnline PunchSource = "online"
	// PunchSourceOfflineSync is a punch replayed from an agent's offline queue.
	PunchSourceOfflineSync PunchSource = "offline_sync"
)

type Punch struct {
	ID         string
	EmployeeID string
	Kind       PunchKind
	At         time.Time
	Source     PunchSource
	CreatedAt  time.Time
}

// DaySummary aggregates one employee's punches for a single day.
type DaySummary struct {
	Date          string
	Punches       []Punch
	WorkedMinutes int64
	Complete      bool
}
