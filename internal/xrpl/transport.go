package xrpl

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
)

// Transport is the minimal connection surface the supervisor needs. The
// production implementation wraps a gorilla websocket connection; tests
// substitute scripted fakes.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

// Dialer opens a transport to the given URL.
type Dialer func(ctx context.Context, url string) (Transport, error)

// wsTransport adapts *websocket.Conn to Transport. Writes are serialized:
// gorilla connections do not support concurrent writers.
type wsTransport struct {
	writeMu sync.Mutex
	conn    *websocket.Conn
}

// DialWebsocket is the production Dialer.
func DialWebsocket(ctx context.Context, url string) (Transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &wsTransport{conn: conn}, nil
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, payload, err := t.conn.ReadMessage()
	return payload, err
}

func (t *wsTransport) WriteJSON(v any) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteJSON(v)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
