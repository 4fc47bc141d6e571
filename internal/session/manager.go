package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/poolsim/internal/config"
	"github.com/playmatatu/poolsim/internal/game"
	"github.com/playmatatu/poolsim/internal/host"
	"github.com/redis/go-redis/v9"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManyBalls    = errors.New("too many balls")
	ErrAlreadyRunning  = errors.New("session loop already running")
	ErrNotRunning      = errors.New("session loop not running")
	ErrInvalidSteps    = errors.New("steps must be between 1 and 10000")
)

// MaxStepsPerRequest bounds a single Tick call.
const MaxStepsPerRequest = 10000

// Broadcaster fans session messages out to connected clients.
type Broadcaster interface {
	BroadcastToSession(token string, message interface{})
}

// Manager holds every live session. The stores are optional: a nil db or
// rdb disables that persistence path.
type Manager struct {
	sessions    map[string]*Session // keyed by token
	rdb         *redis.Client
	db          *sqlx.DB
	config      *config.Config
	broadcaster Broadcaster
	mu          sync.RWMutex
}

func NewManager(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) *Manager {
	if cfg == nil {
		cfg = config.Load()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		rdb:      rdb,
		db:       db,
		config:   cfg,
	}
}

// SetBroadcaster wires the websocket hub after both sides exist.
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.mu.Lock()
	m.broadcaster = b
	m.mu.Unlock()
}

func (m *Manager) Config() *config.Config {
	return m.config
}

func generateToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

func generateSessionID() (string, error) {
	id, err := generateToken(8)
	if err != nil {
		return "", err
	}
	return "sim_" + id, nil
}

// BallSpec describes one ball in a create request. Zero radius or mass takes
// the configured default.
type BallSpec struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	VX     float64 `json:"vx"`
	VY     float64 `json:"vy"`
	Radius float64 `json:"radius"`
	Mass   float64 `json:"mass"`
}

// CreateRequest configures a new session. The zero value yields the
// single-ball world at rest on the configured table.
type CreateRequest struct {
	Width          float64    `json:"width"`
	Height         float64    `json:"height"`
	Restitution    *float64   `json:"restitution"`
	BallCollisions bool       `json:"ball_collisions"`
	Balls          []BallSpec `json:"balls"`
}

// BuildWorld turns a request into a validated World.
func (m *Manager) BuildWorld(req CreateRequest) (*game.World, error) {
	width, height := req.Width, req.Height
	if width == 0 && height == 0 {
		width, height = m.config.TableWidth, m.config.TableHeight
	}
	table, err := game.NewTable(width, height)
	if err != nil {
		return nil, err
	}

	if m.config.MaxBalls > 0 && len(req.Balls) > m.config.MaxBalls {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyBalls, len(req.Balls), m.config.MaxBalls)
	}

	specs := req.Balls
	if len(specs) == 0 {
		specs = []BallSpec{{X: table.Width / 2, Y: table.Height / 2}}
	}
	balls := make([]game.Ball, 0, len(specs))
	for _, spec := range specs {
		radius := spec.Radius
		if radius == 0 {
			radius = m.config.BallRadius
		}
		b := game.NewBall(spec.X, spec.Y, spec.VX, spec.VY, radius)
		if spec.Mass != 0 {
			b.Mass = spec.Mass
		}
		balls = append(balls, b)
	}

	restitution := m.config.Restitution
	if req.Restitution != nil {
		restitution = *req.Restitution
	}
	opts := []game.Option{game.WithRestitution(restitution)}
	if req.BallCollisions {
		opts = append(opts, game.WithBallCollisions())
	}
	return game.NewWorld(table, balls, opts...)
}

// CreateSession builds a world and registers it under a fresh token.
func (m *Manager) CreateSession(ctx context.Context, req CreateRequest) (*Session, error) {
	world, err := m.BuildWorld(req)
	if err != nil {
		return nil, err
	}

	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}
	token, err := generateToken(16)
	if err != nil {
		return nil, err
	}

	s := newSession(id, token, world, req.BallCollisions)
	s.RunID = m.RecordRun(ctx, s)

	m.mu.Lock()
	m.sessions[s.Token] = s
	m.mu.Unlock()

	if err := m.SaveSnapshot(ctx, s); err != nil {
		log.Printf("[REDIS] Failed to save snapshot for %s: %v", s.Token, err)
	}

	log.Printf("[SESSION] Created %s (token=%s balls=%d run=%d)", s.ID, s.Token, world.BallCount(), s.RunID)
	return s, nil
}

// Get returns a live session, rehydrating it from its Redis snapshot when
// this process does not hold it.
func (m *Manager) Get(ctx context.Context, token string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[token]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}

	s, err := m.LoadSnapshot(ctx, token)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[token]; ok {
		return existing, nil
	}
	m.sessions[token] = s
	log.Printf("[SESSION] Rehydrated %s from Redis at tick %d", token, s.Snapshot().Tick)
	return s, nil
}

// List returns the sessions held in memory.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Delete stops a session's loop, closes its run and forgets it. A session
// known only from its Redis snapshot is deleted too.
func (m *Manager) Delete(ctx context.Context, token string) error {
	m.mu.Lock()
	s, ok := m.sessions[token]
	if ok {
		delete(m.sessions, token)
	}
	m.mu.Unlock()
	if !ok {
		stored, err := m.LoadSnapshot(ctx, token)
		if err != nil {
			return err
		}
		s = stored
	}

	// Stopped before waiting so a concurrent StartLoop cannot launch.
	s.mu.Lock()
	s.status = StatusStopped
	s.mu.Unlock()

	m.stopAndWait(s)
	m.FinishRun(ctx, s)
	m.DeleteSnapshot(ctx, token)
	log.Printf("[SESSION] Deleted %s", token)
	return nil
}

// Tick advances a session steps times by dt, records the step and
// publishes any contacts.
func (m *Manager) Tick(ctx context.Context, token string, dt float64, steps int) (game.Snapshot, []game.CollisionEvent, error) {
	if steps == 0 {
		steps = 1
	}
	if steps < 0 || steps > MaxStepsPerRequest {
		return game.Snapshot{}, nil, ErrInvalidSteps
	}
	s, err := m.Get(ctx, token)
	if err != nil {
		return game.Snapshot{}, nil, err
	}

	snap, events, err := s.StepN(dt, steps)
	if err != nil {
		return snap, events, err
	}

	m.RecordStep(ctx, s, snap.Tick, dt*float64(steps), events)
	if err := m.SaveSnapshot(ctx, s); err != nil {
		log.Printf("[REDIS] Failed to save snapshot for %s: %v", token, err)
	}
	m.emitFrame(ctx, s, snap.Tick, snap, events)
	return snap, events, nil
}

// StartLoop drives the session from a host loop at the configured frame rate.
func (m *Manager) StartLoop(ctx context.Context, token string) error {
	s, err := m.Get(ctx, token)
	if err != nil {
		return err
	}
	return m.startLoop(s)
}

func (m *Manager) startLoop(s *Session) error {
	s.mu.Lock()
	switch s.status {
	case StatusRunning:
		s.mu.Unlock()
		return ErrAlreadyRunning
	case StatusStopped:
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.status = StatusRunning
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	loop := &host.Loop{
		Name:     s.ID,
		Stepper:  s,
		Interval: m.config.FrameInterval(),
		MaxDelta: m.config.MaxFrameDelta(),
		OnFrame:  m.frameHandler(s),
	}

	go func() {
		defer close(done)
		err := loop.Run(loopCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[LOOP] %s ended with error: %v", s.ID, err)
		}
		s.mu.Lock()
		stopped := s.status == StatusStopped
		if s.status == StatusRunning {
			s.status = StatusIdle
		}
		s.cancel = nil
		s.mu.Unlock()
		if stopped {
			return
		}
		if err := m.SaveSnapshot(context.Background(), s); err != nil {
			log.Printf("[REDIS] Failed to save snapshot for %s: %v", s.Token, err)
		}
	}()
	return nil
}

// StopLoop cancels a running loop and waits for its last frame.
func (m *Manager) StopLoop(ctx context.Context, token string) error {
	s, err := m.Get(ctx, token)
	if err != nil {
		return err
	}
	if s.Status() != StatusRunning {
		return ErrNotRunning
	}
	m.stopAndWait(s)
	return nil
}

func (m *Manager) stopAndWait(s *Session) {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if done != nil {
		<-done
	}
}

func (m *Manager) frameHandler(s *Session) host.FrameFunc {
	every := uint64(m.config.SnapshotEvery)
	return func(frame uint64, snap game.Snapshot, events []game.CollisionEvent) {
		ctx := context.Background()
		if every > 0 && frame%every == 0 {
			if err := m.SaveSnapshot(ctx, s); err != nil {
				log.Printf("[REDIS] Failed to save snapshot for %s: %v", s.Token, err)
			}
		}
		m.emitFrame(ctx, s, frame, snap, events)
	}
}

// emitFrame sends the snapshot to local clients. Contacts go through Redis
// when configured so every instance sees them; otherwise they are broadcast
// directly.
func (m *Manager) emitFrame(ctx context.Context, s *Session, frame uint64, snap game.Snapshot, events []game.CollisionEvent) {
	m.mu.RLock()
	b := m.broadcaster
	m.mu.RUnlock()

	if b != nil {
		b.BroadcastToSession(s.Token, map[string]interface{}{
			"type":  "snapshot",
			"frame": frame,
			"state": snap,
		})
	}
	if len(events) == 0 {
		return
	}

	msg := CollisionMessage{Type: "collision", Session: s.Token, Tick: snap.Tick, Events: events}
	if m.rdb != nil {
		if err := m.PublishEvents(ctx, msg); err != nil {
			log.Printf("[REDIS] Failed to publish events for %s: %v", s.Token, err)
		}
		return
	}
	if b != nil {
		b.BroadcastToSession(s.Token, msg)
	}
}

// StartExpiryChecker removes idle sessions until ctx is done.
func (m *Manager) StartExpiryChecker(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	log.Println("[EXPIRY] Session expiry checker started")
	for {
		select {
		case <-ctx.Done():
			log.Println("[EXPIRY] Session expiry checker stopping")
			return
		case now := <-ticker.C:
			m.checkExpiredSessions(ctx, now)
		}
	}
}

// checkExpiredSessions drops sessions idle longer than the configured expiry.
// Running sessions are never expired.
func (m *Manager) checkExpiredSessions(ctx context.Context, now time.Time) int {
	ttl := m.config.SessionExpiry()
	if ttl <= 0 {
		return 0
	}

	m.mu.RLock()
	var candidates []*Session
	for _, s := range m.sessions {
		if s.Status() != StatusRunning && now.Sub(s.LastActivity()) > ttl {
			candidates = append(candidates, s)
		}
	}
	m.mu.RUnlock()

	removed := 0
	for _, s := range candidates {
		// Re-check under lock; a request may have touched it since.
		if s.Status() == StatusRunning || now.Sub(s.LastActivity()) <= ttl {
			continue
		}
		m.mu.Lock()
		owned := m.sessions[s.Token] == s
		if owned {
			delete(m.sessions, s.Token)
			removed++
		}
		m.mu.Unlock()
		if !owned {
			continue
		}

		s.mu.Lock()
		s.status = StatusStopped
		s.mu.Unlock()
		m.stopAndWait(s)
		m.FinishRun(ctx, s)
		m.DeleteSnapshot(ctx, s.Token)
		log.Printf("[EXPIRY] Session %s expired after %s idle", s.ID, now.Sub(s.LastActivity()).Round(time.Second))
	}
	return removed
}

// Shutdown stops every running loop and closes open runs.
func (m *Manager) Shutdown(ctx context.Context) {
	for _, s := range m.List() {
		m.stopAndWait(s)
		if err := m.SaveSnapshot(ctx, s); err != nil {
			log.Printf("[REDIS] Failed to save snapshot for %s: %v", s.Token, err)
		}
		m.FinishRun(ctx, s)
	}
}
