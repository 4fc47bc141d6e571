package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/playmatatu/poolsim/internal/game"
	"github.com/redis/go-redis/v9"
)

// EventsChannel is the Redis pub/sub channel carrying collision messages.
const EventsChannel = "sim_events"

func snapshotKey(token string) string {
	return "sim:" + token + ":snapshot"
}

// CollisionMessage is published for every step that produced contacts.
type CollisionMessage struct {
	Type    string                `json:"type"`
	Session string                `json:"session"`
	Tick    uint64                `json:"tick"`
	Events  []game.CollisionEvent `json:"events"`
}

// storedSession is the Redis form of a session.
type storedSession struct {
	ID             string        `json:"id"`
	Token          string        `json:"token"`
	RunID          int           `json:"run_id"`
	BallCollisions bool          `json:"ball_collisions"`
	CreatedAt      time.Time     `json:"created_at"`
	LastActivity   time.Time     `json:"last_activity"`
	State          game.Snapshot `json:"state"`
}

// SaveSnapshot writes the session's state to Redis with the configured TTL.
// Stopped sessions are never written back.
func (m *Manager) SaveSnapshot(ctx context.Context, s *Session) error {
	if m.rdb == nil {
		return nil
	}

	s.mu.Lock()
	if s.status == StatusStopped {
		s.mu.Unlock()
		return nil
	}
	record := storedSession{
		ID:             s.ID,
		Token:          s.Token,
		RunID:          s.RunID,
		BallCollisions: s.BallCollisions,
		CreatedAt:      s.CreatedAt,
		LastActivity:   s.lastActivity,
		State:          s.world.Snapshot(),
	}
	s.mu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return m.rdb.SetEx(ctx, snapshotKey(s.Token), data, m.config.SnapshotTTL()).Err()
}

// LoadSnapshot rebuilds an idle session from Redis.
func (m *Manager) LoadSnapshot(ctx context.Context, token string) (*Session, error) {
	if m.rdb == nil {
		return nil, ErrSessionNotFound
	}

	data, err := m.rdb.Get(ctx, snapshotKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	var record storedSession
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}

	var opts []game.Option
	if record.BallCollisions {
		opts = append(opts, game.WithBallCollisions())
	}
	world, err := game.RestoreWorld(record.State, opts...)
	if err != nil {
		return nil, err
	}

	s := newSession(record.ID, record.Token, world, record.BallCollisions)
	s.RunID = record.RunID
	s.CreatedAt = record.CreatedAt
	s.lastActivity = time.Now()
	return s, nil
}

// DeleteSnapshot removes the session's Redis state.
func (m *Manager) DeleteSnapshot(ctx context.Context, token string) {
	if m.rdb == nil {
		return
	}
	if err := m.rdb.Del(ctx, snapshotKey(token)).Err(); err != nil {
		log.Printf("[REDIS] Failed to delete snapshot for %s: %v", token, err)
	}
}

// PublishEvents sends a collision message on EventsChannel.
func (m *Manager) PublishEvents(ctx context.Context, msg CollisionMessage) error {
	if m.rdb == nil {
		return nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return m.rdb.Publish(ctx, EventsChannel, data).Err()
}

// RecordRun inserts the session's run row and returns its id, or 0 when the
// database is not configured or the insert fails.
func (m *Manager) RecordRun(ctx context.Context, s *Session) int {
	if m.db == nil {
		return 0
	}

	snap := s.Snapshot()
	var runID int
	err := m.db.GetContext(ctx, &runID, `
		INSERT INTO simulation_runs (session_token, table_width, table_height, restitution, ball_count, ball_collisions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id
	`, s.Token, snap.Table.Width, snap.Table.Height, snap.Restitution, len(snap.Balls), s.BallCollisions)
	if err != nil {
		log.Printf("[DB] Failed to record run for %s: %v", s.Token, err)
		return 0
	}
	return runID
}

// RecordStep logs a requested tick and its contacts against the session's run.
func (m *Manager) RecordStep(ctx context.Context, s *Session, tick uint64, dt float64, events []game.CollisionEvent) {
	if m.db == nil || s.RunID == 0 {
		return
	}

	if events == nil {
		events = []game.CollisionEvent{}
	}
	eventData, err := json.Marshal(events)
	if err != nil {
		log.Printf("[DB] Failed to marshal events for run %d: %v", s.RunID, err)
		return
	}

	_, err = m.db.ExecContext(ctx,
		`INSERT INTO simulation_steps (run_id, tick, dt, events, created_at) VALUES ($1,$2,$3,$4::jsonb,NOW())`,
		s.RunID, int64(tick), dt, string(eventData),
	)
	if err != nil {
		log.Printf("[DB] Failed to record step for run %d: %v", s.RunID, err)
	}
}

// FinishRun stamps the run's end with the final tick and simulated time.
func (m *Manager) FinishRun(ctx context.Context, s *Session) {
	if m.db == nil || s.RunID == 0 {
		return
	}

	snap := s.Snapshot()
	_, err := m.db.ExecContext(ctx, `
		UPDATE simulation_runs
		SET ended_at = NOW(), final_tick = $2, final_sim_time = $3
		WHERE id = $1 AND ended_at IS NULL
	`, s.RunID, int64(snap.Tick), snap.SimTime)
	if err != nil {
		log.Printf("[DB] Failed to finish run %d: %v", s.RunID, err)
	}
}
