package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/websocket"

	"github.com/ChanakaDev/ai-provider-example-websocket/agent"
	"github.com/ChanakaDev/ai-provider-example-websocket/config"
	"github.com/ChanakaDev/ai-provider-example-websocket/registry"
	"github.com/ChanakaDev/ai-provider-example-websocket/relay"
)

type Server struct {
	httpServer *http.Server
	upgrader   websocket.Upgrader
	registry   *registry.Registry
	config     *config.Config
}

func NewServer(cfg *config.Config, reg *registry.Registry) *Server {
	s := &Server{
		registry: reg,
		config:   cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    64 * 1024, // 64KB for audio chunks
			WriteBufferSize:   64 * 1024, // 64KB for audio chunks
			EnableCompression: true,
			CheckOrigin: func(r *http.Request) bool {
				// Check allowed origins
				origin := r.Header.Get("Origin")
				for _, allowed := range cfg.AllowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/{session_id}", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/{$}", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
		// No ReadTimeout/WriteTimeout — these interfere with long-lived WebSocket
		// connections. The WebSocket layer handles its own write deadlines.
	}

	return s
}

// Start begins listening for connections
func (s *Server) Start() error {
	scheme := "ws"
	if s.config.TLSEnabled() {
		scheme = "wss"
		tlsConfig, err := s.buildTLSConfig()
		if err != nil {
			return err
		}
		s.httpServer.TLSConfig = tlsConfig
	}
	log.Printf("🚀 Agent streaming server starting on port %d", s.config.Port)
	log.Printf("📡 WebSocket endpoint: %s://localhost:%d/ws/{session_id}?is_audio=<bool>", scheme, s.config.Port)

	if s.config.TLSEnabled() {
		return s.httpServer.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
	}
	return s.httpServer.ListenAndServe()
}

// buildTLSConfig loads the optional CA bundle for verifying client certificates.
func (s *Server) buildTLSConfig() (*tls.Config, error) {
	if s.config.TLSCAFile == "" {
		return nil, nil
	}
	caPEM, err := os.ReadFile(s.config.TLSCAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSL_CA_CERTS: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("no certificates found in %s", s.config.TLSCAFile)
	}
	return &tls.Config{
		ClientCAs:  pool,
		ClientAuth: tls.VerifyClientCertIfGiven,
	}, nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("🛑 Shutting down server...")
	s.registry.Shutdown()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	// The modality flag is required at connect time.
	if !r.URL.Query().Has("is_audio") {
		log.Printf("⚠️ Rejecting connection for #%s: missing is_audio query parameter", sessionID)
		http.Error(w, "missing required query parameter: is_audio", http.StatusBadRequest)
		return
	}
	modality := agent.ModalityFromQuery(r.URL.Query().Get("is_audio"))

	// Upgrade HTTP to WebSocket
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	// Configure WebSocket for better performance
	conn.SetReadLimit(512 * 1024) // 512KB max message
	conn.EnableWriteCompression(true)

	// The session outlives the HTTP handshake; its lifetime is the
	// coordinator's context, not the request context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	active, err := s.registry.StartSession(ctx, sessionID, modality)
	if err != nil {
		// Fatal for this connection attempt: no relays are started.
		log.Printf("❌ Failed to start session #%s: %v", sessionID, err)
		conn.Close()
		return
	}
	active.BindCancel(cancel)

	transport := newWSTransport(conn, active.Touch)
	coordinator := relay.NewCoordinator(active.ID, transport, active.Stream, active.Sink)
	coordinator.Run(ctx)

	_ = s.registry.Remove(context.Background(), active.ID)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","version":"1.0","sessions":%d}`, s.registry.Count())
}
