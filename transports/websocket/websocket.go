// Package websocket provides the browser-facing transport. Each accepted
// connection becomes one transport service driving one session screen.
package websocket

import (
	"context"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

// Service wraps one client connection.
type Service struct {
	conn *websocket.Conn
	mu   sync.Mutex // protects writes
}

func NewService(conn *websocket.Conn) *Service {
	return &Service{conn: conn}
}

func (s *Service) Name() string {
	return "websocket"
}

func (s *Service) Init(ctx context.Context) error {
	if s.conn == nil {
		return errors.New("websocket: no connection")
	}
	return nil
}

func (s *Service) Cleanup() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *Service) Reset() error {
	return nil
}

func (s *Service) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return websocket.ErrCloseSent
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// StartReceiving reads client messages until the connection fails or closes.
func (s *Service) StartReceiving(dataChan chan<- []byte, errChan chan<- error) {
	if s.conn == nil {
		errChan <- websocket.ErrCloseSent
		return
	}
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			errChan <- err
			return
		}
		dataChan <- msg
	}
}
