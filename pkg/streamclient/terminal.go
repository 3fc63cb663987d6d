package streamclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/fasthttp/websocket"

	"github.com/cruxpanel/backend/pkg/streamwire"
)

// TerminalSession is one interactive shell on the panel host. Output
// arrives on Output() in order; the channel closes when the shell or the
// connection ends.
type TerminalSession struct {
	conn   *websocket.Conn
	output chan []byte

	mu     sync.Mutex
	closed bool
}

// OpenTerminal dials the terminal endpoint. The initial window size goes
// out as the first frame on the socket, a size control frame, before any
// keystrokes.
func (c *Client) OpenTerminal(ctx context.Context, rows, cols int) (*TerminalSession, error) {
	wsURL, err := c.wsURL("/ws/terminal", nil)
	if err != nil {
		return nil, err
	}

	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("streamclient: terminal dial failed: %w", err)
	}

	if rows > 0 && cols > 0 {
		if err := conn.WriteMessage(websocket.BinaryMessage, streamwire.EncodeResize(rows, cols)); err != nil {
			conn.Close()
			return nil, fmt.Errorf("streamclient: terminal size frame failed: %w", err)
		}
	}

	s := &TerminalSession{
		conn:   conn,
		output: make(chan []byte, 32),
	}
	go s.readLoop()
	return s, nil
}

func (s *TerminalSession) readLoop() {
	defer close(s.output)
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if len(payload) > 0 {
			s.output <- payload
		}
	}
}

// Output returns the raw terminal byte stream.
func (s *TerminalSession) Output() <-chan []byte {
	return s.output
}

// Send forwards keystrokes to the shell.
func (s *TerminalSession) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("streamclient: terminal closed")
	}
	return s.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Resize requests a new window size.
func (s *TerminalSession) Resize(rows, cols int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("streamclient: terminal closed")
	}
	return s.conn.WriteMessage(websocket.BinaryMessage, streamwire.EncodeResize(rows, cols))
}

// Close tears down the connection; the server kills the shell.
func (s *TerminalSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}
