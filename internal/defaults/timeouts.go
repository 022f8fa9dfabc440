package defaults

import "time"

const (
	// ConnectTimeout is the default timeout for establishing a TCP or
	// websocket connection.
	ConnectTimeout = 10 * time.Second
	// HandshakeTimeout is the default timeout for completing the
	// ECDHE+RSA-PSS handshake once a connection is established.
	HandshakeTimeout = 10 * time.Second
)
