package link

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-targetlink/pkg/telemetry"
)

// maxMessageSize bounds an inbound websocket message.
const maxMessageSize = 64 * 1024

// wsConn is the subset of a websocket connection the link uses. Both the
// gorilla client and the fiber server connections satisfy it.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// wsTransport sends one message per frame: text for JSON, binary for CBOR.
type wsTransport struct {
	conn    wsConn
	msgType int
}

func newWSTransport(conn wsConn, codec telemetry.Codec) *wsTransport {
	t := &wsTransport{conn: conn, msgType: websocket.TextMessage}
	if codec != nil && codec.Name() == "cbor" {
		t.msgType = websocket.BinaryMessage
	}
	return t
}

func (t *wsTransport) readFrame() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) writeFrame(data []byte, timeout time.Duration) error {
	if timeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	return t.conn.WriteMessage(t.msgType, data)
}

// A websocket write that fails mid-message leaves the connection unusable.
func (t *wsTransport) atomicWrites() bool { return false }

func (t *wsTransport) close() error {
	return t.conn.Close()
}

// WSLink dials the controller over a websocket.
type WSLink struct {
	*client
	url string
}

// NewWS creates a websocket link. cfg.Addr may be a full ws:// URL or a
// bare host:port, which is dialed at /ws/vision.
func NewWS(cfg Config, binder Binder) *WSLink {
	l := &WSLink{url: wsURL(cfg.Addr)}
	l.client = newClient(KindWS, cfg, binder, l.dial)
	return l
}

func wsURL(addr string) string {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return addr
	}
	return "ws://" + addr + "/ws/vision"
}

func (l *WSLink) dial(ctx context.Context) (transport, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: dialTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", l.url, err)
	}
	conn.SetReadLimit(maxMessageSize)
	return newWSTransport(conn, l.cfg.Codec), nil
}
