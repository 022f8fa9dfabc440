// Command chat-client connects to a chat-server relay, completes the
// client side of the ECDHE+RSA-PSS handshake against a pinned certificate,
// and drives an interactive /listar, /enviar, /sair command loop over the
// resulting encrypted session.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/floegence/chatrelay/chatclient"
	"github.com/floegence/chatrelay/framing"
	"github.com/floegence/chatrelay/internal/cmdutil"
	fsversion "github.com/floegence/chatrelay/internal/version"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	host := "localhost"
	port := "5000"

	certFile := cmdutil.EnvString("CHAT_CLIENT_CERT_FILE", "server.crt")
	name := cmdutil.EnvString("CHAT_CLIENT_NAME", "")
	wsURL := cmdutil.EnvString("CHAT_CLIENT_WS_URL", "")
	maxFrameBytes, err := cmdutil.EnvInt("CHAT_CLIENT_MAX_FRAME_BYTES", framing.DefaultMaxFrameBytes)
	if err != nil {
		fmt.Fprintf(stderr, "invalid CHAT_CLIENT_MAX_FRAME_BYTES: %v\n", err)
		return 2
	}

	showVersion := false
	fs := flag.NewFlagSet("chat-client", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	fs.StringVar(&certFile, "cert-file", certFile, "pinned server certificate, PEM (env: CHAT_CLIENT_CERT_FILE)")
	fs.StringVar(&name, "name", name, "display name to announce in the handshake; a random one is generated if empty (env: CHAT_CLIENT_NAME)")
	fs.StringVar(&wsURL, "ws-url", wsURL, "dial a websocket URL (ws:// or wss://) instead of plain TCP; when set, host/port arguments are ignored (env: CHAT_CLIENT_WS_URL)")
	fs.IntVar(&maxFrameBytes, "max-frame-bytes", maxFrameBytes, "maximum accepted frame body size (env: CHAT_CLIENT_MAX_FRAME_BYTES)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if showVersion {
		fmt.Fprintln(stdout, fsversion.String(version, commit, date))
		return 0
	}

	switch fs.NArg() {
	case 0:
	case 1:
		host = fs.Arg(0)
	case 2:
		host = fs.Arg(0)
		port = fs.Arg(1)
	default:
		fmt.Fprintln(stderr, "usage: chat-client [host] [port]")
		return 2
	}

	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		fmt.Fprintf(stderr, "load trusted certificate: %v\n", err)
		return 1
	}

	if name == "" {
		name = randomDisplayName()
	}

	var client *chatclient.Client
	if wsURL != "" {
		client, err = chatclient.ConnectWS(context.Background(), wsURL, certPEM, name, maxFrameBytes, stdout)
	} else {
		addr := host + ":" + port
		client, err = chatclient.Connect(addr, certPEM, name, maxFrameBytes, stdout)
	}
	if err != nil {
		fmt.Fprintf(stderr, "handshake failed: %v\n", err)
		return 1
	}
	defer client.Close()

	fmt.Fprintf(stdout, "connected as %q (id %d)\n", name, client.ClientID())

	if err := client.RunInteractive(stdin); err != nil {
		fmt.Fprintf(stderr, "connection closed: %v\n", err)
		return 1
	}
	return 0
}

func randomDisplayName() string {
	var b [5]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "guest"
	}
	return "guest-" + base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b[:])
}
