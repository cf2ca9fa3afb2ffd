// admin_repository.go implements AdminRepository, providing database queries for
// back-office accounts used by login and the admin auth middleware.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sindikatncr/membership-backend/internal/db/models"
)

const adminColumns = `
	id, email, name, password_hash, role, last_login_at, created_at, updated_at`

// AdminRepository handles admin user database operations
type AdminRepository struct {
	db *sqlx.DB
}

// NewAdminRepository creates a new AdminRepository
func NewAdminRepository(db *sqlx.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// CreateAdmin inserts a new admin account.
func (r *AdminRepository) CreateAdmin(ctx context.Context, a *models.AdminUser) error {
	a.ID = uuid.New().String()
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Role == "" {
		a.Role = models.RoleOperator
	}

	query := `
		INSERT INTO admin_users (id, email, name, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Email, a.Name, a.PasswordHash, a.Role, a.CreatedAt, a.UpdatedAt)
	return err
}

// GetAdminByID retrieves an admin by UUID. Returns (nil, nil) when not found.
func (r *AdminRepository) GetAdminByID(ctx context.Context, id string) (*models.AdminUser, error) {
	query := `SELECT ` + adminColumns + ` FROM admin_users WHERE id = $1`

	var a models.AdminUser
	err := r.db.GetContext(ctx, &a, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAdminByEmail retrieves an admin by email. Returns (nil, nil) when not found.
func (r *AdminRepository) GetAdminByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	query := `SELECT ` + adminColumns + ` FROM admin_users WHERE email = $1`

	var a models.AdminUser
	err := r.db.GetContext(ctx, &a, query, email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// TouchLastLogin stamps last_login_at after a successful login.
func (r *AdminRepository) TouchLastLogin(ctx context.Context, id string, now time.Time) error {
	query := `UPDATE admin_users SET last_login_at = $2, updated_at = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, now)
	return err
}
