package chatclient

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/floegence/chatrelay/crypto/e2ee"
	"github.com/floegence/chatrelay/framing"
	"github.com/floegence/chatrelay/fserrors"
	"github.com/floegence/chatrelay/internal/defaults"
	"github.com/floegence/chatrelay/realtime/ws"
	"github.com/floegence/chatrelay/relay"
)

var errReplayedFrame = errors.New("chatclient: inbound sequence number is not strictly increasing")

// Client drives one relay connection end to end: dialing, the handshake,
// and the two long-lived goroutines (reader, command loop) that follow.
type Client struct {
	endpoint *Endpoint
	conn     io.ReadWriteCloser
	maxFrame int
	out      io.Writer
}

// Connect dials addr over plain TCP, completes the client side of the
// handshake against trustedCertPEM, and returns a ready Client. The caller
// owns calling RunInteractive afterward and Close when done.
func Connect(addr string, trustedCertPEM []byte, displayName string, maxFrame int, out io.Writer) (*Client, error) {
	if maxFrame <= 0 {
		maxFrame = framing.DefaultMaxFrameBytes
	}
	conn, err := net.DialTimeout("tcp", addr, defaults.ConnectTimeout)
	if err != nil {
		return nil, fserrors.Wrap(fserrors.StageStartup, fserrors.KindTransport, err)
	}

	result, err := e2ee.ClientHandshake(conn, trustedCertPEM, displayName, maxFrame)
	if err != nil {
		conn.Close()
		return nil, err
	}

	endpoint := NewEndpoint(result.ClientID, displayName, conn, result.Keys)
	return &Client{endpoint: endpoint, conn: conn, maxFrame: maxFrame, out: out}, nil
}

// ConnectWS dials urlStr (a ws:// or wss:// URL) as a websocket, completes
// the same client-side handshake Connect does, and returns a ready Client.
// The wire protocol is unchanged: each handshake and record frame becomes
// exactly one binary websocket message.
func ConnectWS(ctx context.Context, urlStr string, trustedCertPEM []byte, displayName string, maxFrame int, out io.Writer) (*Client, error) {
	if maxFrame <= 0 {
		maxFrame = framing.DefaultMaxFrameBytes
	}
	dialCtx, cancel := context.WithTimeout(ctx, defaults.ConnectTimeout)
	defer cancel()
	wsConn, _, err := ws.Dial(dialCtx, urlStr, ws.DialOptions{})
	if err != nil {
		return nil, fserrors.Wrap(fserrors.StageStartup, fserrors.KindTransport, err)
	}
	conn := newWSByteConn(context.Background(), wsConn)

	result, err := e2ee.ClientHandshake(conn, trustedCertPEM, displayName, maxFrame)
	if err != nil {
		conn.Close()
		return nil, err
	}

	endpoint := NewEndpoint(result.ClientID, displayName, conn, result.Keys)
	return &Client{endpoint: endpoint, conn: conn, maxFrame: maxFrame, out: out}, nil
}

// ClientID returns the id the relay assigned during the handshake.
func (c *Client) ClientID() uint64 { return c.endpoint.ClientID }

// Close tears down the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Send encodes and seals a /enviar or /listar request and writes it to the
// relay.
func (c *Client) Send(cmd Command) error {
	switch cmd.Kind {
	case CommandListOnline:
		payload, err := json.Marshal(relay.GetOnlineClientsIn{Type: relay.TypeGetOnlineClients})
		if err != nil {
			return err
		}
		return c.endpoint.Send(0, payload)
	case CommandSend:
		payload, err := json.Marshal(relay.SendMessageIn{
			Type:     relay.TypeSendMessage,
			TargetID: cmd.TargetID,
			Message:  cmd.Message,
		})
		if err != nil {
			return err
		}
		return c.endpoint.Send(cmd.TargetID, payload)
	default:
		return nil
	}
}

// ReadLoop runs until the connection closes, a frame fails to decrypt, or a
// replayed sequence number arrives, printing each inbound message to c.out.
// A failed tag check or a non-increasing sequence ends the session: a valid
// relay never produces either, so continuing past one would mean accepting
// frames from a peer that has already proven itself broken or hostile. It is
// meant to run in its own goroutine for the lifetime of the connection.
func (c *Client) ReadLoop() error {
	for {
		frame, err := c.endpoint.ReadFrame(c.maxFrame)
		if err != nil {
			return err
		}
		rec, err := e2ee.Open(c.endpoint.KeyS2C(), frame)
		if err != nil {
			fmt.Fprintf(c.out, "[crypto error] failed to decrypt inbound frame, closing\n")
			return fserrors.Wrap(fserrors.StageDispatch, fserrors.KindCrypto, err)
		}
		if !c.endpoint.AcceptRecv(rec.Seq) {
			fmt.Fprintf(c.out, "[security] duplicate or out-of-order frame (seq=%d), closing\n", rec.Seq)
			return fserrors.Wrap(fserrors.StageDispatch, fserrors.KindReplay, errReplayedFrame)
		}
		c.printMessage(rec.Plaintext)
	}
}

func (c *Client) printMessage(plaintext []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(plaintext, &env); err != nil {
		fmt.Fprintf(c.out, "[protocol error] malformed payload: %v\n", err)
		return
	}
	switch env.Type {
	case relay.TypeMessage:
		var m relay.MessageOut
		if err := json.Unmarshal(plaintext, &m); err == nil {
			fmt.Fprintf(c.out, "[message] from %s (id %d): %s\n", m.FromName, m.FromID, m.Message)
		}
	case relay.TypeOnlineClients:
		var d relay.OnlineClientsOut
		if err := json.Unmarshal(plaintext, &d); err == nil {
			fmt.Fprintln(c.out, "[online clients]")
			for _, cl := range d.Clients {
				fmt.Fprintf(c.out, "  id %d: %s\n", cl.ID, cl.Name)
			}
		}
	case relay.TypeClientJoined:
		var j relay.ClientJoinedOut
		if err := json.Unmarshal(plaintext, &j); err == nil {
			fmt.Fprintf(c.out, "[notice] %s (id %d) joined\n", j.Who.Name, j.Who.ID)
		}
	case relay.TypeClientLeft:
		var l relay.ClientLeftOut
		if err := json.Unmarshal(plaintext, &l); err == nil {
			fmt.Fprintf(c.out, "[notice] client %d left\n", l.ID)
		}
	case relay.TypeError:
		var e relay.ErrorOut
		if err := json.Unmarshal(plaintext, &e); err == nil {
			fmt.Fprintf(c.out, "[server error] %s\n", e.Message)
		}
	default:
		fmt.Fprintf(c.out, "[unknown message type %q]\n", env.Type)
	}
}

// RunInteractive reads commands from in line by line, sending each to the
// relay, until /sair, EOF, or the reader goroutine reporting that the
// connection is gone.
func (c *Client) RunInteractive(in io.Reader) error {
	readErrCh := make(chan error, 1)
	go func() { readErrCh <- c.ReadLoop() }()

	lines := make(chan string)
	scanErrCh := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		scanErrCh <- scanner.Err()
	}()

	fmt.Fprintln(c.out, "commands: /listar, /enviar <id> <text>, /sair")
	for {
		select {
		case err := <-readErrCh:
			return err
		case err := <-scanErrCh:
			return err
		case line := <-lines:
			cmd, err := ParseCommand(line)
			if err != nil {
				fmt.Fprintln(c.out, err)
				continue
			}
			switch cmd.Kind {
			case CommandNone:
				continue
			case CommandQuit:
				return nil
			default:
				if err := c.Send(cmd); err != nil {
					return err
				}
			}
		}
	}
}
