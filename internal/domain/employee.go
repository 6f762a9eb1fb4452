package domain

import "time"

type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// HasPermission reports whether the role grants at least the given role.
func (r Role) HasPermission(min Role) bool {
	return roleRank(r) >= roleRank(min)
}

func roleRank(r Role) int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleManager:
		return 2
	case RoleEmployee:
		return 1
	default:
		return 0
	}
}

type Employee struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Department   string
	Position     string
	IsActive     bool
	HiredAt      *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type RefreshToken struct {
	ID         string
	EmployeeID string
	TokenHash  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}
