package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// SimulationRun is one session's lifetime record.
type SimulationRun struct {
	ID             int             `db:"id" json:"id"`
	SessionToken   string          `db:"session_token" json:"session_token"`
	TableWidth     float64         `db:"table_width" json:"table_width"`
	TableHeight    float64         `db:"table_height" json:"table_height"`
	Restitution    float64         `db:"restitution" json:"restitution"`
	BallCount      int             `db:"ball_count" json:"ball_count"`
	BallCollisions bool            `db:"ball_collisions" json:"ball_collisions"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	EndedAt        sql.NullTime    `db:"ended_at" json:"ended_at,omitempty"`
	FinalTick      sql.NullInt64   `db:"final_tick" json:"final_tick,omitempty"`
	FinalSimTime   sql.NullFloat64 `db:"final_sim_time" json:"final_sim_time,omitempty"`
}

// SimulationStep is a manually requested tick and the contacts it produced.
type SimulationStep struct {
	ID        int64           `db:"id" json:"id"`
	RunID     int             `db:"run_id" json:"run_id"`
	Tick      int64           `db:"tick" json:"tick"`
	Dt        float64         `db:"dt" json:"dt"`
	Events    json.RawMessage `db:"events" json:"events"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// AdminAccount is an operator allowed to read run logs.
type AdminAccount struct {
	Phone       string         `db:"phone" json:"phone"`
	DisplayName string         `db:"display_name" json:"display_name"`
	TokenHash   string         `db:"token_hash" json:"-"`
	Roles       pq.StringArray `db:"roles" json:"roles"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// AdminAudit records an admin request.
type AdminAudit struct {
	ID         int             `db:"id" json:"id"`
	AdminPhone string          `db:"admin_phone" json:"admin_phone"`
	IP         string          `db:"ip" json:"ip"`
	Route      string          `db:"route" json:"route"`
	Action     string          `db:"action" json:"action"`
	Details    json.RawMessage `db:"details" json:"details"`
	Success    bool            `db:"success" json:"success"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}
