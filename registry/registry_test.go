package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChanakaDev/ai-provider-example-websocket/agent"
	"github.com/ChanakaDev/ai-provider-example-websocket/config"
)

type fakeStream struct{}

func (fakeStream) Next(ctx context.Context) (agent.Event, error) {
	<-ctx.Done()
	return agent.Event{}, ctx.Err()
}

type fakeSink struct{}

func (fakeSink) SendContent(agent.TextContent) error   { return nil }
func (fakeSink) SendRealtime(agent.RealtimeBlob) error { return nil }

type fakeSession struct {
	mu      sync.Mutex
	id      string
	opened  *agent.RunConfig
	closed  bool
	openErr error
}

func (s *fakeSession) OpenLiveRun(_ context.Context, cfg agent.RunConfig) (agent.EventStream, agent.CommandSink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return nil, nil, s.openErr
	}
	s.opened = &cfg
	return fakeStream{}, fakeSink{}, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeRuntime struct {
	mu        sync.Mutex
	sessions  []*fakeSession
	createErr error
	openErr   error
}

func (rt *fakeRuntime) CreateSession(_ context.Context, _, _, sessionID string) (agent.Session, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.createErr != nil {
		return nil, rt.createErr
	}
	s := &fakeSession{id: sessionID, openErr: rt.openErr}
	rt.sessions = append(rt.sessions, s)
	return s, nil
}

func newTestRegistry(cfg *config.Config, rt *fakeRuntime) *Registry {
	// Redis intentionally nil: the mirror is best-effort.
	return &Registry{
		sessions: make(map[string]*Active),
		runtime:  rt,
		cfg:      cfg,
	}
}

func testConfig() *config.Config {
	return &config.Config{
		AppName:     "test-app",
		Voice:       "Zephyr",
		MaxSessions: 10,
	}
}

func TestStartSession_StoresActiveSession(t *testing.T) {
	rt := &fakeRuntime{}
	reg := newTestRegistry(testConfig(), rt)

	active, err := reg.StartSession(context.Background(), "abc", agent.ModalityText)
	require.NoError(t, err)
	assert.Equal(t, "abc", active.ID)
	assert.NotNil(t, active.Stream)
	assert.NotNil(t, active.Sink)
	assert.Equal(t, 1, reg.Count())

	got, ok := reg.Get("abc")
	require.True(t, ok)
	assert.Same(t, active, got)
}

func TestStartSession_RunConfigPerModality(t *testing.T) {
	tests := []struct {
		modality   agent.Modality
		wantInput  bool
		wantOutput bool
	}{
		{agent.ModalityAudio, true, true},
		{agent.ModalityText, true, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.modality), func(t *testing.T) {
			rt := &fakeRuntime{}
			reg := newTestRegistry(testConfig(), rt)

			_, err := reg.StartSession(context.Background(), "s", tc.modality)
			require.NoError(t, err)

			require.Len(t, rt.sessions, 1)
			opened := rt.sessions[0].opened
			require.NotNil(t, opened)
			assert.Equal(t, tc.modality, opened.ResponseModality)
			assert.Equal(t, tc.wantInput, opened.InputTranscription)
			assert.Equal(t, tc.wantOutput, opened.OutputTranscription)
			assert.Equal(t, "Zephyr", opened.Voice)
		})
	}
}

func TestStartSession_BlankIDGetsGenerated(t *testing.T) {
	reg := newTestRegistry(testConfig(), &fakeRuntime{})

	active, err := reg.StartSession(context.Background(), "", agent.ModalityText)
	require.NoError(t, err)
	assert.NotEmpty(t, active.ID)
}

func TestStartSession_DuplicateIDRejected(t *testing.T) {
	reg := newTestRegistry(testConfig(), &fakeRuntime{})

	_, err := reg.StartSession(context.Background(), "dup", agent.ModalityText)
	require.NoError(t, err)

	_, err = reg.StartSession(context.Background(), "dup", agent.ModalityText)
	assert.ErrorIs(t, err, ErrDuplicateSession)
	assert.Equal(t, 1, reg.Count())
}

func TestStartSession_MaxSessionsEnforced(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSessions = 1
	reg := newTestRegistry(cfg, &fakeRuntime{})

	_, err := reg.StartSession(context.Background(), "one", agent.ModalityText)
	require.NoError(t, err)

	_, err = reg.StartSession(context.Background(), "two", agent.ModalityText)
	assert.ErrorIs(t, err, ErrMaxSessions)
}

func TestStartSession_OpenFailureClosesSessionAndStoresNothing(t *testing.T) {
	rt := &fakeRuntime{openErr: assert.AnError}
	reg := newTestRegistry(testConfig(), rt)

	_, err := reg.StartSession(context.Background(), "s", agent.ModalityAudio)
	require.Error(t, err)
	assert.Equal(t, 0, reg.Count())

	require.Len(t, rt.sessions, 1)
	assert.True(t, rt.sessions[0].isClosed())
}

func TestRemove_ClosesRuntimeSession(t *testing.T) {
	rt := &fakeRuntime{}
	reg := newTestRegistry(testConfig(), rt)

	_, err := reg.StartSession(context.Background(), "s", agent.ModalityText)
	require.NoError(t, err)

	require.NoError(t, reg.Remove(context.Background(), "s"))
	assert.Equal(t, 0, reg.Count())
	assert.True(t, rt.sessions[0].isClosed())

	// Removing again is a no-op.
	require.NoError(t, reg.Remove(context.Background(), "s"))
}

func TestCleanupIdleSessions_CancelsOnlyIdle(t *testing.T) {
	cfg := testConfig()
	cfg.SessionTimeout = time.Minute
	reg := newTestRegistry(cfg, &fakeRuntime{})

	idle, err := reg.StartSession(context.Background(), "idle", agent.ModalityText)
	require.NoError(t, err)
	fresh, err := reg.StartSession(context.Background(), "fresh", agent.ModalityText)
	require.NoError(t, err)

	var idleCancelled, freshCancelled bool
	idle.BindCancel(func() { idleCancelled = true })
	fresh.BindCancel(func() { freshCancelled = true })

	// Backdate the idle session past the timeout.
	idle.mu.Lock()
	idle.lastActivity = time.Now().Add(-2 * time.Minute)
	idle.mu.Unlock()

	reg.CleanupIdleSessions()

	assert.True(t, idleCancelled)
	assert.False(t, freshCancelled)
}

func TestCleanupIdleSessions_DisabledByDefault(t *testing.T) {
	reg := newTestRegistry(testConfig(), &fakeRuntime{})

	active, err := reg.StartSession(context.Background(), "s", agent.ModalityText)
	require.NoError(t, err)

	var cancelled bool
	active.BindCancel(func() { cancelled = true })

	active.mu.Lock()
	active.lastActivity = time.Now().Add(-24 * time.Hour)
	active.mu.Unlock()

	reg.CleanupIdleSessions()
	assert.False(t, cancelled)
}

func TestShutdown_ClosesEverySession(t *testing.T) {
	rt := &fakeRuntime{}
	reg := newTestRegistry(testConfig(), rt)

	_, err := reg.StartSession(context.Background(), "a", agent.ModalityText)
	require.NoError(t, err)
	_, err = reg.StartSession(context.Background(), "b", agent.ModalityAudio)
	require.NoError(t, err)

	reg.Shutdown()
	assert.Equal(t, 0, reg.Count())
	for _, s := range rt.sessions {
		assert.True(t, s.isClosed())
	}
}

func TestTouch_UpdatesLastActivity(t *testing.T) {
	reg := newTestRegistry(testConfig(), &fakeRuntime{})

	active, err := reg.StartSession(context.Background(), "s", agent.ModalityText)
	require.NoError(t, err)

	before := active.LastActivity()
	time.Sleep(5 * time.Millisecond)
	active.Touch()
	assert.True(t, active.LastActivity().After(before))
}
