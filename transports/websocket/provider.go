package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/google/uuid"

	"pocketsocrates/core"
)

type Config struct {
	Addr            string `json:"addr"`
	Path            string `json:"path"`
	ReadBufferSize  int    `json:"read_buffer_size"`
	WriteBufferSize int    `json:"write_buffer_size"`
}

func DefaultConfig() *Config {
	return &Config{
		Addr:            ":8080",
		Path:            "/ws",
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// SessionFunc runs one client session over an accepted connection. It blocks
// until the session ends.
type SessionFunc func(service *Service, ctx context.Context) error

// Provider accepts WebSocket connections and runs one session per client.
type Provider struct {
	config   *Config
	logger   *core.Logger
	server   *http.Server
	upgrader websocket.Upgrader

	mu          sync.RWMutex
	isRunning   bool
	sessionFunc SessionFunc

	connectionsMu sync.Mutex
	connections   map[string]*Service
}

func NewProvider(config *Config, logger *core.Logger) *Provider {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Provider{
		config: config,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		connections: make(map[string]*Service),
	}
}

// RegisterSessionHandler sets the function run for each accepted connection.
func (p *Provider) RegisterSessionHandler(fn SessionFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessionFunc = fn
}

func (p *Provider) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning {
		return fmt.Errorf("websocket provider already running")
	}
	if p.sessionFunc == nil {
		return fmt.Errorf("websocket provider has no session handler")
	}

	mux := http.NewServeMux()
	mux.HandleFunc(p.config.Path, p.handleWebSocket)
	p.server = &http.Server{Addr: p.config.Addr, Handler: mux}

	go func() {
		if err := p.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			p.logger.Errorf("websocket server: %v", err)
		}
	}()

	p.isRunning = true
	p.logger.Infof("websocket provider listening on %s%s", p.config.Addr, p.config.Path)
	return nil
}

func (p *Provider) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isRunning {
		return nil
	}

	p.connectionsMu.Lock()
	for _, svc := range p.connections {
		svc.Cleanup()
	}
	p.connections = make(map[string]*Service)
	p.connectionsMu.Unlock()

	if p.server != nil {
		if err := p.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutting down websocket server: %w", err)
		}
	}
	p.isRunning = false
	return nil
}

func (p *Provider) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.logger.Errorf("websocket upgrade: %v", err)
		return
	}

	id := uuid.NewString()
	service := NewService(conn)

	p.connectionsMu.Lock()
	p.connections[id] = service
	p.connectionsMu.Unlock()

	p.mu.RLock()
	sessionFunc := p.sessionFunc
	p.mu.RUnlock()

	go func() {
		defer func() {
			p.connectionsMu.Lock()
			delete(p.connections, id)
			p.connectionsMu.Unlock()
			service.Cleanup()
		}()

		p.logger.Info("client connected", "connection_id", id)
		// the request context dies when the HTTP handler returns; the
		// session outlives it on the hijacked connection
		if err := sessionFunc(service, context.Background()); err != nil {
			p.logger.Errorf("session %s ended with error: %v", id, err)
			return
		}
		p.logger.Info("client disconnected", "connection_id", id)
	}()
}
