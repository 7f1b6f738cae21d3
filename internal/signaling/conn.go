package signaling

import (
	"github.com/gorilla/websocket"
)

// Conn is the minimal duplex message transport the client needs. Mirrors
// the teacher's small-interface-plus-factory shape (conn.Bind/Endpoint in
// the WireGuard source): a narrow capability interface, satisfied here by
// gorilla/websocket in production and by a fake in tests.
type Conn interface {
	ReadMessage() (data []byte, err error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer creates a Conn to a relay URL.
type Dialer interface {
	Dial(url string) (Conn, error)
}

// GorillaDialer is the production Dialer, backed by gorilla/websocket.
type GorillaDialer struct{}

func (GorillaDialer) Dial(url string) (Conn, error) {
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return &gorillaConn{c: c}, nil
}

type gorillaConn struct{ c *websocket.Conn }

func (g *gorillaConn) ReadMessage() ([]byte, error) {
	_, data, err := g.c.ReadMessage()
	return data, err
}

func (g *gorillaConn) WriteMessage(data []byte) error {
	return g.c.WriteMessage(websocket.TextMessage, data)
}

func (g *gorillaConn) Close() error { return g.c.Close() }
