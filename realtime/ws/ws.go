// Package ws carries the chat wire protocol over websocket connections:
// each length-prefixed frame travels as exactly one binary message, so the
// handshake and AEAD record layers run unchanged over either a raw TCP
// socket or an upgraded websocket.
package ws

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Conn wraps a websocket connection with context-aware reads and writes.
type Conn struct {
	c *websocket.Conn
}

// UpgraderOptions controls the server-side upgrade of an HTTP request.
type UpgraderOptions struct {
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// Upgrade switches an incoming HTTP request to a websocket connection.
func Upgrade(w http.ResponseWriter, r *http.Request, opts UpgraderOptions) (*Conn, error) {
	up := websocket.Upgrader{
		ReadBufferSize:  opts.ReadBufferSize,
		WriteBufferSize: opts.WriteBufferSize,
		CheckOrigin:     opts.CheckOrigin,
	}
	c, err := up.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return &Conn{c: c}, nil
}

// DialOptions customizes a client-side websocket dial.
type DialOptions struct {
	Header http.Header
	Dialer *websocket.Dialer
}

// Dial opens a websocket connection to urlStr, bounding the opening
// handshake by ctx's deadline when one is set.
func Dial(ctx context.Context, urlStr string, opts DialOptions) (*Conn, *http.Response, error) {
	var d websocket.Dialer
	if opts.Dialer != nil {
		d = *opts.Dialer
	}
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if d.HandshakeTimeout == 0 || d.HandshakeTimeout > remaining {
			d.HandshakeTimeout = remaining
		}
	}
	c, resp, err := d.DialContext(ctx, urlStr, opts.Header)
	if err != nil {
		return nil, resp, err
	}
	return &Conn{c: c}, resp, nil
}

// SetReadLimit caps the size of a single inbound message.
func (c *Conn) SetReadLimit(n int64) {
	c.c.SetReadLimit(n)
}

// armCancel installs a watchdog that forces a blocked websocket read or
// write to wake up when ctx is canceled, by snapping the connection's
// deadline to now. gorilla/websocket has no native context support, so the
// deadline is the only lever that interrupts an in-flight call. The
// returned stop function disarms the watchdog.
func armCancel(ctx context.Context, setDeadline func(time.Time) error) func() {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	_ = setDeadline(deadline)
	if ctx.Done() == nil {
		return func() {}
	}
	var armed atomic.Bool
	armed.Store(true)
	stop := context.AfterFunc(ctx, func() {
		if armed.Load() {
			_ = setDeadline(time.Now())
		}
	})
	return func() {
		armed.Store(false)
		stop()
	}
}

// mapTimeout translates the artificial I/O timeout produced by the cancel
// watchdog back into the context's own error, keeping a stable error
// contract for callers.
func mapTimeout(ctx context.Context, err error) error {
	ne, ok := err.(net.Error)
	if !ok || !ne.Timeout() {
		return err
	}
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return context.DeadlineExceeded
	}
	return err
}

// ReadMessage reads one websocket message, honoring ctx's deadline and
// cancellation.
func (c *Conn) ReadMessage(ctx context.Context) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	disarm := armCancel(ctx, c.c.SetReadDeadline)
	defer disarm()
	mt, b, err := c.c.ReadMessage()
	if err != nil {
		return 0, nil, mapTimeout(ctx, err)
	}
	return mt, b, nil
}

// WriteMessage writes one websocket message, honoring ctx's deadline and
// cancellation.
func (c *Conn) WriteMessage(ctx context.Context, messageType int, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	disarm := armCancel(ctx, c.c.SetWriteDeadline)
	defer disarm()
	if err := c.c.WriteMessage(messageType, data); err != nil {
		return mapTimeout(ctx, err)
	}
	return nil
}

// Close closes the underlying connection without a close handshake.
func (c *Conn) Close() error {
	return c.c.Close()
}

// CloseWithStatus sends a close control frame, then closes the connection.
func (c *Conn) CloseWithStatus(code int, text string) error {
	_ = c.c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(2*time.Second))
	return c.c.Close()
}
