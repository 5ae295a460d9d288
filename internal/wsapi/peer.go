package wsapi

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Peer represents a connected client.
// It wraps a WebSocket connection and serializes writes, which gorilla/websocket
// allows from only one goroutine at a time
type Peer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewPeer initializes a new client peer from an upgraded connection
func NewPeer(conn *websocket.Conn) *Peer {
	return &Peer{conn: conn}
}

// Send encodes v as JSON and writes it as one text frame.
// This method is thread-safe and can be called from multiple goroutines
func (p *Peer) Send(v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteJSON(v)
}

// SendText writes a raw text frame
func (p *Peer) SendText(s string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteMessage(websocket.TextMessage, []byte(s))
}

// ReadMessage reads the next data frame from the client
func (p *Peer) ReadMessage() (int, []byte, error) {
	return p.conn.ReadMessage()
}

// Close terminates the underlying network connection
func (p *Peer) Close() error {
	return p.conn.Close()
}

// RemoteAddr returns the client address
func (p *Peer) RemoteAddr() string {
	return p.conn.RemoteAddr().String()
}
