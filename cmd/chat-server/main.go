// Command chat-server runs the relay: it accepts TCP (and, if configured,
// websocket) connections, completes the ECDHE+RSA-PSS handshake on each,
// and dispatches encrypted directed messages between sessions it never
// needs to read in cleartext beyond the per-hop decrypt-then-re-encrypt
// the protocol requires.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/floegence/chatrelay/crypto/e2ee"
	"github.com/floegence/chatrelay/framing"
	"github.com/floegence/chatrelay/internal/cmdutil"
	"github.com/floegence/chatrelay/internal/defaults"
	fsversion "github.com/floegence/chatrelay/internal/version"
	"github.com/floegence/chatrelay/observability"
	"github.com/floegence/chatrelay/observability/prom"
	"github.com/floegence/chatrelay/realtime/ws"
	"github.com/floegence/chatrelay/relay"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type ready struct {
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	Date       string `json:"date"`
	Listen     string `json:"listen"`
	WSListen   string `json:"ws_listen,omitempty"`
	WSPath     string `json:"ws_path,omitempty"`
	MetricsURL string `json:"metrics_url,omitempty"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	logger := log.New(stderr, "", log.LstdFlags)

	host := "localhost"
	port := "5000"

	keyFile := cmdutil.EnvString("CHAT_SERVER_KEY_FILE", "server_private_key.pem")
	certFile := cmdutil.EnvString("CHAT_SERVER_CERT_FILE", "server.crt")
	wsListen := cmdutil.EnvString("CHAT_SERVER_WS_LISTEN", "")
	wsPath := cmdutil.EnvString("CHAT_SERVER_WS_PATH", "/ws")
	metricsListen := cmdutil.EnvString("CHAT_SERVER_METRICS_LISTEN", "")
	allowNoOrigin, err := cmdutil.EnvBool("CHAT_SERVER_WS_ALLOW_NO_ORIGIN", true)
	if err != nil {
		fmt.Fprintf(stderr, "invalid CHAT_SERVER_WS_ALLOW_NO_ORIGIN: %v\n", err)
		return 2
	}
	maxFrameBytes, err := cmdutil.EnvInt("CHAT_SERVER_MAX_FRAME_BYTES", framing.DefaultMaxFrameBytes)
	if err != nil {
		fmt.Fprintf(stderr, "invalid CHAT_SERVER_MAX_FRAME_BYTES: %v\n", err)
		return 2
	}
	handshakeTimeout, err := cmdutil.EnvDuration("CHAT_SERVER_HANDSHAKE_TIMEOUT", defaults.HandshakeTimeout)
	if err != nil {
		fmt.Fprintf(stderr, "invalid CHAT_SERVER_HANDSHAKE_TIMEOUT: %v\n", err)
		return 2
	}
	allowOriginList := cmdutil.SplitCSVEnv("CHAT_SERVER_WS_ALLOW_ORIGIN")

	showVersion := false
	fs := flag.NewFlagSet("chat-server", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	fs.StringVar(&keyFile, "key-file", keyFile, "server RSA private key, PKCS#8 PEM (env: CHAT_SERVER_KEY_FILE)")
	fs.StringVar(&certFile, "cert-file", certFile, "server self-signed certificate, PEM (env: CHAT_SERVER_CERT_FILE)")
	fs.StringVar(&wsListen, "ws-listen", wsListen, "additional listen address for websocket upgrades (empty disables) (env: CHAT_SERVER_WS_LISTEN)")
	fs.StringVar(&wsPath, "ws-path", wsPath, "HTTP path for websocket upgrades (env: CHAT_SERVER_WS_PATH)")
	fs.StringVar(&metricsListen, "metrics-listen", metricsListen, "listen address for the /metrics endpoint (empty disables) (env: CHAT_SERVER_METRICS_LISTEN)")
	fs.BoolVar(&allowNoOrigin, "ws-allow-no-origin", allowNoOrigin, "allow websocket upgrades without an Origin header (env: CHAT_SERVER_WS_ALLOW_NO_ORIGIN)")
	fs.IntVar(&maxFrameBytes, "max-frame-bytes", maxFrameBytes, "maximum accepted frame body size (env: CHAT_SERVER_MAX_FRAME_BYTES)")
	fs.DurationVar(&handshakeTimeout, "handshake-timeout", handshakeTimeout, "deadline for completing the handshake after accept (env: CHAT_SERVER_HANDSHAKE_TIMEOUT)")
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
		fmt.Fprintln(stderr, "usage: chat-server [host] [port]")
		return 2
	}

	identity, err := e2ee.LoadServerIdentity(keyFile, certFile)
	if err != nil {
		fmt.Fprintf(stderr, "load server identity: %v\n", err)
		return 1
	}

	var obs observability.Observer = observability.Noop
	var metricsSrv *http.Server
	var metricsLn net.Listener
	if metricsListen != "" {
		reg := prom.NewRegistry()
		obs = prom.New(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", prom.Handler(reg))
		metricsLn, err = net.Listen("tcp", metricsListen)
		if err != nil {
			fmt.Fprintf(stderr, "metrics listen: %v\n", err)
			return 1
		}
		metricsSrv = &http.Server{Handler: mux}
		go func() {
			if err := metricsSrv.Serve(metricsLn); err != nil && err != http.ErrServerClosed {
				logger.Printf("metrics server: %v", err)
			}
		}()
	}

	wsOpts := ws.UpgraderOptions{}
	if len(allowOriginList) > 0 {
		wsOpts.CheckOrigin = ws.NewOriginChecker(allowOriginList, allowNoOrigin)
	} else {
		wsOpts.CheckOrigin = func(*http.Request) bool { return allowNoOrigin }
	}

	srv := relay.New(relay.Config{
		Identity:         identity,
		Observer:         obs,
		MaxFrameBytes:    maxFrameBytes,
		HandshakeTimeout: handshakeTimeout,
		WSOptions:        wsOpts,
	})
	// Report the registry's starting size (always 0 here) before any session
	// registers; RunSession updates the gauge on every insert and remove
	// after that.
	obs.SessionsActive(srv.Registry().Len())

	ln, err := net.Listen("tcp", net.JoinHostPort(host, port))
	if err != nil {
		fmt.Fprintf(stderr, "listen: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ServeTCP(ctx, ln); err != nil {
			logger.Printf("tcp accept loop: %v", err)
		}
	}()

	var wsSrv *http.Server
	if wsListen != "" {
		mux := http.NewServeMux()
		mux.HandleFunc(wsPath, srv.ServeHTTP)
		wsLn, err := net.Listen("tcp", wsListen)
		if err != nil {
			fmt.Fprintf(stderr, "ws listen: %v\n", err)
			return 1
		}
		wsSrv = &http.Server{Handler: mux}
		go func() {
			if err := wsSrv.Serve(wsLn); err != nil && err != http.ErrServerClosed {
				logger.Printf("ws server: %v", err)
			}
		}()
	}

	out := ready{
		Version: version,
		Commit:  commit,
		Date:    date,
		Listen:  ln.Addr().String(),
	}
	if wsListen != "" {
		out.WSListen = wsListen
		out.WSPath = wsPath
	}
	if metricsLn != nil {
		out.MetricsURL = "http://" + metricsLn.Addr().String() + "/metrics"
	}
	_ = cmdutil.WriteJSON(stdout, out)

	<-ctx.Done()
	logger.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if wsSrv != nil {
		_ = wsSrv.Shutdown(shutdownCtx)
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	srv.Wait(shutdownCtx)
	return 0
}
