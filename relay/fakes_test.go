package relay

import (
	"context"
	"errors"
	"sync"

	"github.com/ChanakaDev/ai-provider-example-websocket/agent"
)

var errTransportClosed = errors.New("transport closed")

// fakeTransport implements Transport over channels. The peer side of the
// connection is simulated with push/peerClose.
type fakeTransport struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	written [][]byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:     make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (t *fakeTransport) push(frame []byte) { t.in <- frame }

// peerClose simulates the client hanging up: the pending read fails.
func (t *fakeTransport) peerClose() { close(t.in) }

func (t *fakeTransport) ReadMessage() ([]byte, error) {
	select {
	case data, ok := <-t.in:
		if !ok {
			return nil, errTransportClosed
		}
		return data, nil
	case <-t.closed:
		return nil, errTransportClosed
	}
}

func (t *fakeTransport) WriteMessage(data []byte) error {
	select {
	case <-t.closed:
		return errTransportClosed
	default:
	}
	t.mu.Lock()
	t.written = append(t.written, data)
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

func (t *fakeTransport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

func (t *fakeTransport) writtenFrames() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.written))
	copy(out, t.written)
	return out
}

// fakeSink records enqueued commands.
type fakeSink struct {
	mu       sync.Mutex
	contents []agent.TextContent
	blobs    []agent.RealtimeBlob
	err      error // returned from every send when set
}

func (s *fakeSink) SendContent(content agent.TextContent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.contents = append(s.contents, content)
	return nil
}

func (s *fakeSink) SendRealtime(blob agent.RealtimeBlob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.blobs = append(s.blobs, blob)
	return nil
}

func (s *fakeSink) sentContents() []agent.TextContent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]agent.TextContent(nil), s.contents...)
}

func (s *fakeSink) sentBlobs() []agent.RealtimeBlob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]agent.RealtimeBlob(nil), s.blobs...)
}

// fakeStream serves queued events, then either returns endErr or blocks until
// the consumer is cancelled (endErr nil).
type fakeStream struct {
	mu     sync.Mutex
	queue  []agent.Event
	endErr error
}

func (s *fakeStream) Next(ctx context.Context) (agent.Event, error) {
	s.mu.Lock()
	if len(s.queue) > 0 {
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		return ev, nil
	}
	endErr := s.endErr
	s.mu.Unlock()

	if endErr != nil {
		return agent.Event{}, endErr
	}
	<-ctx.Done()
	return agent.Event{}, ctx.Err()
}
