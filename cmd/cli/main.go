// Command wf is a CLI client for the whosfree calendar service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id,omitempty"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "whosfree")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "whosfree")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tf tokenFile) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tf)
}

func loadToken() (tokenFile, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return tokenFile{}, errors.New("not logged in (run: wf login)")
		}
		return tokenFile{}, err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return tokenFile{}, err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return tokenFile{}, errors.New("no valid token (login required)")
	}
	return tf, nil
}

// tokenExpiry reads exp from an access token without verifying it; the server does that.
func tokenExpiry(tok string, fallback time.Time) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil || claims.ExpiresAt == nil {
		return fallback
	}
	return claims.ExpiresAt.Time
}

// ---- utils ----

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func usage(w io.Writer) {
	fmt.Fprint(w, `wf CLI
Usage:
  wf [-addr URL] <cmd> [args]

Commands:
  version
  register   -u <username> -e <email> -p <password>
  login      -e <email> -p <password>                     (saves token)
  logout
  whoami
  search     -q <text> [-limit n]
  events add   -title <t> -start <when> -end <when> [-desc d] [-privacy private|friends|specific_users] [-share id,id]
  events list  [-date YYYY-MM-DD | -from <when> -to <when>] [-user id]
  events get   -id <n>
  events edit  -id <n> [-title t] [-desc d] [-start when] [-end when] [-privacy p] [-share id,id]
  events rm    -id <n>
  heatmap    [-user id] [-month YYYY-MM]
  friends request -user <id>
  friends accept  -id <n>
  friends decline -id <n>
  friends list
  friends pending
  send       -to <id> -m <text>
  history    -with <id>
  read       -with <id>
  unread
  chat       -with <id>                                   (interactive, one message per line)

<when> is RFC 3339 or "YYYY-MM-DD HH:MM" in local time.
`)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// errUsage makes main print usage and exit 2.
var errUsage = errors.New("usage")

// main dispatches subcommands against the HTTP API.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		usage(os.Stderr)
		os.Exit(2)
	default:
		fail(err)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	global := flag.NewFlagSet("wf", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	def := os.Getenv("WF_ADDR")
	if def == "" {
		def = "http://localhost:8080"
	}
	addr := global.String("addr", def, "server base URL")
	if err := global.Parse(args); err != nil {
		return errUsage
	}
	if global.NArg() < 1 {
		return errUsage
	}
	cmd, rest := global.Arg(0), global.Args()[1:]

	a := &cli{addr: *addr, stdin: stdin, out: stdout}

	switch cmd {
	case "version":
		fmt.Fprintf(stdout, "wf %s (%s)\n", version, buildDate)
		return nil
	case "register":
		return a.register(ctx, rest)
	case "login":
		return a.login(ctx, rest)
	case "logout":
		if err := os.Remove(tokenPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		fmt.Fprintln(stdout, "ok")
		return nil
	case "whoami":
		return a.whoami(ctx)
	case "search":
		return a.search(ctx, rest)
	case "events":
		return a.events(ctx, rest)
	case "heatmap":
		return a.heatmap(ctx, rest)
	case "friends":
		return a.friends(ctx, rest)
	case "send":
		return a.send(ctx, rest)
	case "history":
		return a.history(ctx, rest)
	case "read":
		return a.markRead(ctx, rest)
	case "unread":
		return a.unread(ctx)
	case "chat":
		return a.chat(ctx, rest)
	default:
		return errUsage
	}
}

// ---- helpers ----

func fail(err error) {
	var ae *apiError
	if errors.As(err, &ae) {
		fmt.Fprintf(os.Stderr, "server error: status=%d msg=%s\n", ae.Status, ae.Message)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, strings.TrimSpace(err.Error()))
	os.Exit(1)
}
