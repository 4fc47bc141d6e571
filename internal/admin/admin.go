package admin

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/playmatatu/poolsim/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrAccountNotFound = errors.New("admin account not found")
	ErrInvalidToken    = errors.New("invalid token")
)

// GetAdminAccount retrieves an admin account by phone
func GetAdminAccount(db *sqlx.DB, phone string) (*models.AdminAccount, error) {
	var admin models.AdminAccount
	err := db.Get(&admin, `SELECT phone, display_name, token_hash, roles, created_at, updated_at FROM admin_accounts WHERE phone=$1`, phone)
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

// HashAdminToken bcrypt-hashes a plain admin token.
func HashAdminToken(plainToken string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plainToken), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	return string(hashed), nil
}

// VerifyAdminToken checks if the provided token matches the stored hash
func VerifyAdminToken(hashedToken, plainToken string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedToken), []byte(plainToken)) == nil
}

// CreateAdminAccount creates or updates an admin account (used by cmd/seed-admin)
func CreateAdminAccount(db *sqlx.DB, phone, displayName, plainToken string, roles []string) error {
	hashedToken, err := HashAdminToken(plainToken)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT INTO admin_accounts (phone, display_name, token_hash, roles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (phone) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			token_hash = EXCLUDED.token_hash,
			roles = EXCLUDED.roles,
			updated_at = NOW()
	`, phone, displayName, hashedToken, pq.Array(roles))

	return err
}

// ValidateAdminPhoneAndToken validates phone + token combination
func ValidateAdminPhoneAndToken(db *sqlx.DB, phone, token string) (*models.AdminAccount, error) {
	admin, err := GetAdminAccount(db, phone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Printf("[ADMIN] No admin account found for phone: %s", phone)
			return nil, ErrAccountNotFound
		}
		log.Printf("[ADMIN] Database error: %v", err)
		return nil, fmt.Errorf("database error: %w", err)
	}

	if !VerifyAdminToken(admin.TokenHash, token) {
		log.Printf("[ADMIN] Token verification failed for phone: %s", phone)
		return nil, ErrInvalidToken
	}

	return admin, nil
}

// LogAdminAction records an admin action in the audit log
func LogAdminAction(db *sqlx.DB, adminPhone, ip, route, action string, details map[string]interface{}, success bool) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		log.Printf("[ADMIN] Failed to marshal audit details: %v", err)
		detailsJSON = []byte("{}")
	}

	_, err = db.Exec(`
		INSERT INTO admin_audit (admin_phone, ip, route, action, details, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, adminPhone, ip, route, action, detailsJSON, success)

	if err != nil {
		log.Printf("[ADMIN] Failed to log admin action: %v", err)
	}

	return err
}

// ListRuns returns recent simulation runs, newest first.
func ListRuns(db *sqlx.DB, limit, offset int) ([]models.SimulationRun, error) {
	var runs []models.SimulationRun
	err := db.Select(&runs, `
		SELECT id, session_token, table_width, table_height, restitution, ball_count,
			ball_collisions, created_at, ended_at, final_tick, final_sim_time
		FROM simulation_runs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	return runs, err
}

// ListRunSteps returns the logged steps of one run in tick order.
func ListRunSteps(db *sqlx.DB, runID, limit int) ([]models.SimulationStep, error) {
	var steps []models.SimulationStep
	err := db.Select(&steps, `
		SELECT id, run_id, tick, dt, events, created_at
		FROM simulation_steps
		WHERE run_id = $1
		ORDER BY tick
		LIMIT $2
	`, runID, limit)
	return steps, err
}
