// Package registry tracks the process's active sessions: each session id maps
// to exactly one live agent runtime session for the lifetime of one
// connection. Session metadata is mirrored to Redis when available.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ChanakaDev/ai-provider-example-websocket/agent"
	"github.com/ChanakaDev/ai-provider-example-websocket/config"
)

var (
	// ErrMaxSessions is returned when the connect-time session cap is hit.
	ErrMaxSessions = errors.New("maximum sessions reached")
	// ErrDuplicateSession is returned when a live session already owns the id.
	ErrDuplicateSession = errors.New("session id already active")
)

// Active is one registered session: the runtime handle plus the stream/sink
// pair its relays share.
type Active struct {
	ID        string
	Modality  agent.Modality
	Session   agent.Session
	Stream    agent.EventStream
	Sink      agent.CommandSink
	CreatedAt time.Time

	mu           sync.Mutex
	lastActivity time.Time
	cancel       context.CancelFunc
}

// Touch records transport activity; the idle-timeout cleanup keys off it.
func (a *Active) Touch() {
	a.mu.Lock()
	a.lastActivity = time.Now()
	a.mu.Unlock()
}

// LastActivity returns the time of the most recent transport activity.
func (a *Active) LastActivity() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastActivity
}

// BindCancel hands the registry the coordinator's cancellation token so the
// cleanup routine can end an idle session.
func (a *Active) BindCancel(cancel context.CancelFunc) {
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()
}

func (a *Active) cancelSession() {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Registry manages all active sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Active
	runtime  agent.Runtime
	redis    *redis.Client
	cfg      *config.Config
}

// New creates a registry backed by the given runtime. Redis is optional: when
// unreachable the registry runs from memory only, exactly like a cold cache.
func New(cfg *config.Config, runtime agent.Runtime) *Registry {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("⚠️ Redis unavailable (%v), session metadata will not be mirrored", err)
		redisClient.Close()
		redisClient = nil
	}

	return &Registry{
		sessions: make(map[string]*Active),
		runtime:  runtime,
		redis:    redisClient,
		cfg:      cfg,
	}
}

// StartSession creates the runtime session for one connection and opens its
// live run. A failure here is fatal for the connection attempt: the caller
// must not start any relays.
func (r *Registry) StartSession(ctx context.Context, sessionID string, modality agent.Modality) (*Active, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= r.cfg.MaxSessions {
		return nil, ErrMaxSessions
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	if _, exists := r.sessions[sessionID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSession, sessionID)
	}

	session, err := r.runtime.CreateSession(ctx, r.cfg.AppName, sessionID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent session: %w", err)
	}

	stream, sink, err := session.OpenLiveRun(ctx, agent.NewRunConfig(modality, r.cfg.Voice))
	if err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("failed to start agent session: %w", err)
	}

	active := &Active{
		ID:           sessionID,
		Modality:     modality,
		Session:      session,
		Stream:       stream,
		Sink:         sink,
		CreatedAt:    time.Now(),
		lastActivity: time.Now(),
	}
	r.sessions[sessionID] = active
	r.mirrorStore(ctx, active)
	return active, nil
}

func (r *Registry) mirrorStore(ctx context.Context, active *Active) {
	if r.redis == nil {
		return
	}
	r.redis.HSet(ctx, "session:"+active.ID, map[string]interface{}{
		"created_at":    active.CreatedAt.Format(time.RFC3339),
		"last_activity": active.LastActivity().Format(time.RFC3339),
		"modality":      string(active.Modality),
		"status":        "active",
	})
	r.redis.SAdd(ctx, "active_sessions", active.ID)
	if r.cfg.SessionTimeout > 0 {
		r.redis.Expire(ctx, "session:"+active.ID, r.cfg.SessionTimeout)
	}
}

// Get retrieves a session by id.
func (r *Registry) Get(sessionID string) (*Active, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	active, exists := r.sessions[sessionID]
	return active, exists
}

// Remove tears down a session: closes the runtime handle and clears the
// mapping and the Redis mirror. Removing an unknown id is a no-op.
func (r *Registry) Remove(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	active, exists := r.sessions[sessionID]
	if !exists {
		return nil
	}

	err := active.Session.Close()
	delete(r.sessions, sessionID)
	r.mirrorDelete(ctx, sessionID)
	return err
}

func (r *Registry) mirrorDelete(ctx context.Context, sessionID string) {
	if r.redis == nil {
		return
	}
	r.redis.Del(ctx, "session:"+sessionID)
	r.redis.SRem(ctx, "active_sessions", sessionID)
}

// Count returns the number of active sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CleanupIdleSessions cancels every session whose transport has been silent
// longer than the configured timeout. The coordinator notices the cancelled
// context and drives the normal teardown; removal happens on its way out.
func (r *Registry) CleanupIdleSessions() {
	if r.cfg.SessionTimeout <= 0 {
		return
	}

	r.mu.RLock()
	var idle []*Active
	now := time.Now()
	for _, active := range r.sessions {
		if now.Sub(active.LastActivity()) > r.cfg.SessionTimeout {
			idle = append(idle, active)
		}
	}
	r.mu.RUnlock()

	for _, active := range idle {
		log.Printf("🧹 [%s] cancelling idle session (last activity %s)", active.ID, active.LastActivity().Format(time.RFC3339))
		active.cancelSession()
	}
}

// StartCleanupRoutine runs periodic idle cleanup until ctx is done. A zero
// session timeout disables the routine entirely.
func (r *Registry) StartCleanupRoutine(ctx context.Context) {
	if r.cfg.SessionTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.CleanupIdleSessions()
		}
	}
}

// Shutdown closes every session and the Redis client.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx := context.Background()
	for id, active := range r.sessions {
		active.cancelSession()
		_ = active.Session.Close()
		delete(r.sessions, id)
		r.mirrorDelete(ctx, id)
	}

	if r.redis != nil {
		r.redis.Close()
	}
}
