package auth

import "time"

type Role string

const (
	RoleManager    Role = "manager"
	RoleContractor Role = "contractor"
	RoleLandlord   Role = "landlord"
	RoleTenant     Role = "tenant"
)

// User is the domain representation of an authenticated user.
// It mirrors the users table and carries no JSON annotations so it can be
// reused by different presentation layers.
type User struct {
	ID             string
	OrganizationID *string
	Email          string
	FullName       string
	PasswordHash   string
	Phone          *string
	Role           Role
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Claims is what a verified token says about its bearer.
type Claims struct {
	UserID         string
	Role           Role
	OrganizationID string
}

// RegisterRequest contains user registration data supplied by callers.
// A manager may found a new organization by naming it; everyone else joins
// an existing one.
type RegisterRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	FullName         string `json:"full_name"`
	Role             Role   `json:"role"`
	OrganizationID   string `json:"organization_id"`
	OrganizationName string `json:"organization_name"`
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
