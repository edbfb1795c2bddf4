package models

import "time"

// Role names stored on User.Role and checked by middleware.RequireRole.
// The first registered account always becomes RoleSuperAdmin (see
// API.Register's bootstrap rule); everyone after that defaults to
// RoleUser unless a second admin is requested while exactly one account
// exists.
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// User is a dashboard login, distinct from an AllStarLink node: it grants
// HTTP API access (read-only stats for RoleUser, node-control and
// /api/admin/* for RoleAdmin/RoleSuperAdmin), not anything over the link
// protocol itself.
type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string    `gorm:"unique;not null;size:255" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         string    `gorm:"not null;default:user;size:50" json:"role"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName overrides the default table name
func (User) TableName() string {
	return "users"
}

// IsPrivileged reports whether this account holds admin or superadmin,
// the same check RequireRole("admin", "superadmin") performs against the
// JWT-derived role on every /api/admin/* request.
func (u User) IsPrivileged() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}
