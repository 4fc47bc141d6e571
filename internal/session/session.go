package session

import (
	"context"
	"sync"
	"time"

	"github.com/playmatatu/poolsim/internal/game"
)

// Status represents where a session's host loop is.
type Status string

const (
	StatusIdle    Status = "IDLE"    // stepped only on request
	StatusRunning Status = "RUNNING" // host loop active
	StatusStopped Status = "STOPPED" // loop ended, session removed or expiring
)

// Session owns one World and serialises every access to it. The World
// itself is never touched outside s.mu.
type Session struct {
	ID             string    `json:"id"`
	Token          string    `json:"token"`
	RunID          int       `json:"run_id,omitempty"`
	BallCollisions bool      `json:"ball_collisions"`
	CreatedAt      time.Time `json:"created_at"`

	world        *game.World
	status       Status
	lastActivity time.Time
	cancel       context.CancelFunc
	done         chan struct{}
	mu           sync.Mutex
}

func newSession(id, token string, world *game.World, ballCollisions bool) *Session {
	now := time.Now()
	return &Session{
		ID:             id,
		Token:          token,
		BallCollisions: ballCollisions,
		CreatedAt:      now,
		world:          world,
		status:         StatusIdle,
		lastActivity:   now,
	}
}

// Step ticks the world by dt and returns the new state. It satisfies host.Stepper.
func (s *Session) Step(dt float64) (game.Snapshot, []game.CollisionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.world.Tick(dt)
	if err != nil {
		return game.Snapshot{}, nil, err
	}
	s.lastActivity = time.Now()
	return s.world.Snapshot(), events, nil
}

// StepN ticks steps times. On error the events of completed steps are returned
// together with the snapshot at the failure point.
func (s *Session) StepN(dt float64, steps int) (game.Snapshot, []game.CollisionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.world.Run(dt, steps)
	s.lastActivity = time.Now()
	return s.world.Snapshot(), events, err
}

func (s *Session) Snapshot() game.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Snapshot()
}

func (s *Session) BallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.BallCount()
}

func (s *Session) Ball(index int) (game.Ball, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Ball(index)
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Info is the JSON view of a session for the API.
type Info struct {
	ID             string        `json:"id"`
	Token          string        `json:"token"`
	Status         Status        `json:"status"`
	BallCollisions bool          `json:"ball_collisions"`
	CreatedAt      time.Time     `json:"created_at"`
	LastActivity   time.Time     `json:"last_activity"`
	State          game.Snapshot `json:"state"`
}

func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:             s.ID,
		Token:          s.Token,
		Status:         s.status,
		BallCollisions: s.BallCollisions,
		CreatedAt:      s.CreatedAt,
		LastActivity:   s.lastActivity,
		State:          s.world.Snapshot(),
	}
}
