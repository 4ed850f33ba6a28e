package models

import "time"

type UserRole string

const (
	RoleSurveyor UserRole = "surveyor"
	RoleAdmin    UserRole = "admin"
	RoleAnalyst  UserRole = "analyst"
)

func (r UserRole) IsValid() bool {
	switch r {
	case RoleSurveyor, RoleAdmin, RoleAnalyst:
		return true
	}
	return false
}

// User owns surveys. Admins and superusers see every survey.
type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Email          string    `gorm:"uniqueIndex;not null" json:"email"`
	FullName       string    `json:"full_name"`
	HashedPassword string    `gorm:"not null" json:"-"`
	IsActive       bool      `json:"is_active"`
	IsSuperuser    bool      `json:"is_superuser"`
	Role           UserRole  `gorm:"index;not null" json:"role"`
	Organization   string    `json:"organization"`
	PhoneNumber    string    `json:"phone_number"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsAdmin() bool {
	return u.IsSuperuser || u.Role == RoleAdmin
}

// CanAccess reports whether u may read or modify anything scoped to s
func (u *User) CanAccess(s *Survey) bool {
	return u.IsAdmin() || s.CreatedBy == u.ID
}
