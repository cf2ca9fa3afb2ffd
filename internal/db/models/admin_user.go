// Package models - admin_user.go defines the AdminUser model for back-office accounts.
package models

import "time"

// Admin roles.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// AdminUser represents a back-office account that can review and approve members.
type AdminUser struct {
	ID           string     `db:"id"`
	Email        string     `db:"email"`
	Name         string     `db:"name"`
	PasswordHash string     `db:"password_hash"`
	Role         string     `db:"role"`
	LastLoginAt  *time.Time `db:"last_login_at"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}
