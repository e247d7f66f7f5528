package relay

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/ChanakaDev/ai-provider-example-websocket/agent"
)

// State of one connection's lifecycle.
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Coordinator owns the two relay tasks of one connection. Either relay ending
// means the session is over, so the coordinator cancels the sibling, waits for
// its acknowledged exit, and releases the transport in a deterministic order.
type Coordinator struct {
	sessionID string
	transport Transport
	stream    agent.EventStream
	sink      agent.CommandSink
	state     atomic.Int32
}

func NewCoordinator(sessionID string, transport Transport, stream agent.EventStream, sink agent.CommandSink) *Coordinator {
	c := &Coordinator{
		sessionID: sessionID,
		transport: transport,
		stream:    stream,
		sink:      sink,
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

func (c *Coordinator) setState(s State) {
	c.state.Store(int32(s))
}

// Run drives the connection from ACTIVE to CLOSED and blocks until both relay
// tasks have exited. The returned completion is the one that ended the
// session first; the sibling's cancellation is absorbed, never reported.
func (c *Coordinator) Run(ctx context.Context) Completion {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.setState(StateActive)
	log.Printf("✅ Client #%s connected", c.sessionID)

	inboundDone := make(chan Completion, 1)
	outboundDone := make(chan Completion, 1)

	go func() {
		inboundDone <- runInbound(ctx, c.sessionID, c.transport, c.sink)
	}()
	go func() {
		outboundDone <- runOutbound(ctx, c.sessionID, c.transport, c.stream)
	}()

	// First-completion race: either relay ending ends the session.
	var first Completion
	var sibling chan Completion
	select {
	case first = <-inboundDone:
		sibling = outboundDone
	case first = <-outboundDone:
		sibling = inboundDone
	}

	c.setState(StateDraining)
	cancel()
	// Closing the transport unblocks a reader parked in ReadMessage.
	_ = c.transport.Close()

	// The cancelled task's exit must be observed before proceeding, so no
	// writer can be left dangling against a half-closed peer.
	second := <-sibling
	if second.Reason == ReasonError {
		log.Printf("⚠️ [%s] sibling relay ended with error during drain: %v", c.sessionID, second.Err)
	}

	c.setState(StateClosed)
	log.Printf("🔌 Client #%s disconnected (%s)", c.sessionID, first.Reason)
	return first
}
