package chatclient

import (
	"context"

	"github.com/gorilla/websocket"

	"github.com/floegence/chatrelay/realtime/ws"
)

// wsByteConn adapts a message-oriented websocket connection to the
// io.ReadWriteCloser the handshake and endpoint code expect, mirroring the
// relay's own adapter so the identical frame codec rides over a websocket
// dial exactly as it does over a raw TCP dial.
type wsByteConn struct {
	ctx  context.Context
	conn *ws.Conn
	buf  []byte
}

func newWSByteConn(ctx context.Context, conn *ws.Conn) *wsByteConn {
	return &wsByteConn{ctx: ctx, conn: conn}
}

func (c *wsByteConn) Read(p []byte) (int, error) {
	for len(c.buf) == 0 {
		_, msg, err := c.conn.ReadMessage(c.ctx)
		if err != nil {
			return 0, err
		}
		c.buf = msg
	}
	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	return n, nil
}

func (c *wsByteConn) Write(p []byte) (int, error) {
	if err := c.conn.WriteMessage(c.ctx, websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsByteConn) Close() error {
	return c.conn.CloseWithStatus(websocket.CloseNormalClosure, "bye")
}
