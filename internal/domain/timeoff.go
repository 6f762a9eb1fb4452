package domain

import "time"

type Absence struct {
	ID         string
	EmployeeID string
	Date       time.Time
	Reason     string
	Justified  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type VacationStatus string

const (
	VacationPending  VacationStatus = "pending"
	VacationApproved VacationStatus = "approved"
	VacationRejected VacationStatus = "rejected"
)

type Vacation struct {
	ID         string
	EmployeeID string
	StartDate  time.Time
	EndDate    time.Time
	Status     VacationStatus
	DecidedBy  string
	DecidedAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
