// Command hakanai is the native CLI for sending and receiving one-shot
// secrets: it encrypts/decrypts locally and never trusts the server with a
// key, delegating the wire protocol to internal/protocol.
package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/teal-finance/hakanai/iec"
	"github.com/teal-finance/hakanai/internal/payload"
	"github.com/teal-finance/hakanai/internal/protocol"
	"github.com/teal-finance/hakanai/internal/restriction"
	"github.com/teal-finance/hakanai/timex"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "send":
		err = runSend(os.Args[2:])
	case "receive":
		err = runReceive(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "hakanai:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: hakanai send [flags] <file|->")
	fmt.Fprintln(os.Stderr, "       hakanai receive [flags] <url>")
}

func runSend(args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	origin := fs.String("origin", "", "server origin, e.g. https://hakanai.example (required)")
	token := fs.String("token", os.Getenv("HAKANAI_TOKEN"), "bearer token, empty for an anonymous upload")
	ttlFlag := fs.String("ttl", "1h", "time before the secret expires, e.g. 30m, 1h, 7d, 2w")
	passphrase := fs.String("passphrase", "", "require this passphrase on retrieval, in addition to the key")
	filename := fs.String("filename", "", "filename to attach to the payload (defaults to the input file's basename)")
	separateKey := fs.Bool("separate-key", false, "print the share URL and the decryption key on separate lines")
	quiet := fs.Bool("q", false, "suppress the progress indicator")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *origin == "" {
		return errors.New("send: -origin is required")
	}
	if fs.NArg() != 1 {
		return errors.New("send: exactly one input file (or - for stdin) is required")
	}

	ttl, err := timex.ParseDuration(*ttlFlag)
	if err != nil {
		return fmt.Errorf("send: -ttl: %w", err)
	}

	data, name, err := readInput(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if *filename != "" {
		name = *filename
	}

	var p payload.Payload
	if name != "" {
		p, err = payload.NewFile(data, name)
		if err != nil {
			return fmt.Errorf("send: %w", err)
		}
	} else {
		p = payload.New(data)
	}
	defer p.Zero()

	var restrictions *protocol.Restrictions
	if *passphrase != "" {
		restrictions = &protocol.Restrictions{PassphraseHash: restriction.HashPassphrase(*passphrase)}
	}

	onProgress := progressPrinter(*quiet, int64(len(data)))

	sender := protocol.NewSender(&http.Client{Timeout: 60 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	share, err := sender.Send(ctx, p, protocol.SendOptions{
		Origin:       *origin,
		Token:        *token,
		ExpiresIn:    ttl,
		Restrictions: restrictions,
		OnProgress:   onProgress,
	})
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}

	fmt.Fprintf(os.Stderr, "expires in %s\n", timex.DStr(ttl))

	if *separateKey {
		noKey := share
		noKey.Key = nil
		fmt.Println(formatURLWithoutFragment(noKey, *origin))
		fmt.Println(encodeKey(share.Key))
	} else {
		fmt.Println(share.Format(*origin))
	}
	return nil
}

func runReceive(args []string) error {
	fs := flag.NewFlagSet("receive", flag.ExitOnError)
	passphrase := fs.String("passphrase", "", "passphrase required by the sender, if any")
	out := fs.String("out", "", "write the payload data to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 1 {
		return errors.New("receive: exactly one share URL is required")
	}

	raw := fs.Arg(0)
	share, err := protocol.ParseShareURL(raw)
	if err != nil {
		return fmt.Errorf("receive: %w", err)
	}

	origin, err := originFromURL(raw)
	if err != nil {
		return fmt.Errorf("receive: %w", err)
	}

	receiver := protocol.NewReceiver(&http.Client{Timeout: 60 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	p, err := receiver.Receive(ctx, origin, share, protocol.ReceiveOptions{Passphrase: *passphrase})
	if err != nil {
		return fmt.Errorf("receive: %w", err)
	}
	defer p.Zero()

	if *out != "" {
		if err := os.WriteFile(*out, p.Data, 0o600); err != nil {
			return fmt.Errorf("receive: %w", err)
		}
		fmt.Fprintf(os.Stderr, "wrote %s (%s)\n", *out, iec.Convert(len(p.Data)))
		return nil
	}

	if p.Filename != "" {
		fmt.Fprintf(os.Stderr, "# %s (%s)\n", p.Filename, iec.Convert(len(p.Data)))
	}
	_, err = os.Stdout.Write(p.Data)
	return err
}

// readInput reads either stdin ("-") or a named file, returning its data and
// a basename to attach as the payload's filename (empty for stdin, since
// there is no meaningful name to sanitise).
func readInput(path string) ([]byte, string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return data, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return data, baseName(path), nil
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

// progressPrinter renders upload progress as a single overwritten line on
// stderr; quiet, or a zero total, suppresses it entirely.
func progressPrinter(quiet bool, total int64) func(sent, total int64) {
	if quiet || total == 0 {
		return nil
	}
	return func(sent, total int64) {
		pct := 100 * sent / total
		fmt.Fprintf(os.Stderr, "\ruploading %s / %s (%d%%)", iec.Convert64(sent), iec.Convert64(total), pct)
		if sent >= total {
			fmt.Fprintln(os.Stderr)
		}
	}
}

// originFromURL extracts "scheme://host[:port]" from a full share URL so
// Receive can be pointed at the right server without a separate -origin flag.
func originFromURL(raw string) (string, error) {
	schemeEnd := indexOf(raw, "://")
	if schemeEnd < 0 {
		return "", errors.New("share URL is missing a scheme")
	}
	rest := raw[schemeEnd+len("://"):]
	pathStart := indexOf(rest, "/")
	if pathStart < 0 {
		return "", errors.New("share URL is missing a path")
	}
	return raw[:schemeEnd+len("://")+pathStart], nil
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func formatURLWithoutFragment(share protocol.ShareURL, origin string) string {
	full := share.Format(origin)
	for i := 0; i < len(full); i++ {
		if full[i] == '#' {
			return full[:i]
		}
	}
	return full
}

func encodeKey(key []byte) string {
	return base64.RawURLEncoding.EncodeToString(key)
}
