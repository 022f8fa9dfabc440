// Command chat-keygen generates the long-term RSA identity a relay needs at
// startup: a PKCS#8 private key and a self-signed X.509 certificate, written
// to server_private_key.pem and server.crt under the chosen output
// directory.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/floegence/chatrelay/crypto/e2ee"
	"github.com/floegence/chatrelay/internal/cmdutil"
	"github.com/floegence/chatrelay/internal/securefile"
	fsversion "github.com/floegence/chatrelay/internal/version"
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
	CommonName string `json:"common_name"`
	KeyFile    string `json:"key_file"`
	CertFile   string `json:"cert_file"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	showVersion := false
	outDir := cmdutil.EnvString("CHAT_KEYGEN_OUT_DIR", ".")
	commonName := cmdutil.EnvString("CHAT_KEYGEN_COMMON_NAME", "chatrelay")
	validFor, err := cmdutil.EnvDuration("CHAT_KEYGEN_VALID_FOR", 10*365*24*time.Hour)
	if err != nil {
		fmt.Fprintf(stderr, "invalid CHAT_KEYGEN_VALID_FOR: %v\n", err)
		return 2
	}
	var overwrite bool

	fs := flag.NewFlagSet("chat-keygen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	fs.StringVar(&outDir, "out-dir", outDir, "output directory for the generated key and certificate (env: CHAT_KEYGEN_OUT_DIR)")
	fs.StringVar(&commonName, "common-name", commonName, "certificate common name (env: CHAT_KEYGEN_COMMON_NAME)")
	fs.DurationVar(&validFor, "valid-for", validFor, "certificate validity period (env: CHAT_KEYGEN_VALID_FOR)")
	fs.BoolVar(&overwrite, "overwrite", false, "overwrite existing key/cert files")
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

	outDir = strings.TrimSpace(outDir)
	if outDir == "" {
		outDir = "."
	}
	if err := securefile.MkdirAllOwnerOnly(outDir); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	keyFile := filepath.Join(outDir, "server_private_key.pem")
	certFile := filepath.Join(outDir, "server.crt")

	for _, path := range []string{keyFile, certFile} {
		if err := cmdutil.RefuseOverwrite(path, overwrite); err != nil {
			fmt.Fprintln(stderr, err)
			if cmdutil.IsUsage(err) {
				return 2
			}
			return 1
		}
	}

	keyPEM, certPEM, err := e2ee.GenerateServerIdentity(commonName, validFor)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	if err := securefile.WriteFileAtomic(keyFile, keyPEM, 0o600); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if err := securefile.WriteFileAtomic(certFile, certPEM, 0o644); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	keyAbs, _ := filepath.Abs(keyFile)
	certAbs, _ := filepath.Abs(certFile)
	_ = cmdutil.WriteJSON(stdout, ready{
		Version:    version,
		Commit:     commit,
		Date:       date,
		CommonName: commonName,
		KeyFile:    keyAbs,
		CertFile:   certAbs,
	})
	return 0
}
