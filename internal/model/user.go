package model

import "time"

// User represents an account that can authenticate against the portal.
// Guards are seeded at first run; students self-register.
type User struct {
	ID             int64      `json:"id"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	Role           string     `json:"role"`
	Name           string     `json:"name,omitempty"`
	RegistrationID string     `json:"registration_id,omitempty"`
	MobileNumber   string     `json:"mobile_number,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// Roles.
const (
	RoleGuard   = "guard"
	RoleStudent = "student"
)

// RoleAtLeast checks if role meets or exceeds the minimum required role.
func RoleAtLeast(role, minimum string) bool {
	levels := map[string]int{
		RoleGuard:   2,
		RoleStudent: 1,
	}
	return levels[role] >= levels[minimum]
}
