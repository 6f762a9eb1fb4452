package domain

import "time"

type Notification struct {
	ID         string
	EmployeeID string
	Title      string
	Body       string
	IsRead     bool
	CreatedAt  time.Time
}
