package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"ticketgate/internal/application"
	"ticketgate/internal/config"
	"ticketgate/internal/domain"
	"ticketgate/internal/infra/logging"
	"ticketgate/internal/infra/qr"
	"ticketgate/internal/infra/web"
	"ticketgate/internal/usecase"
)

// Test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

const usage = `Usage: ticketctl [--config FILE] [--dev] <command> [flags]

Commands:
  issue      create a ticket in the Unused partition and print its payload
  status     report which partition holds a ticket
  token      mint a bearer token for the scanner API
  reconcile  remove Unused copies of tickets that are already Used
`

type env struct {
	cfgPath string
	dev     bool
	stdout  io.Writer
	stderr  io.Writer
}

func run(args []string, stdout, stderr io.Writer) error {
	e := &env{stdout: stdout, stderr: stderr}
	global := pflag.NewFlagSet("ticketctl", pflag.ContinueOnError)
	global.SetOutput(stderr)
	global.SetInterspersed(false)
	global.StringVar(&e.cfgPath, "config", "config.yaml", "path to YAML config file")
	global.BoolVar(&e.dev, "dev", false, "developer mode")
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	rest := global.Args()
	if len(rest) == 0 {
		fmt.Fprint(stderr, usage)
		return errors.New("missing command")
	}
	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "issue":
		return e.issue(cmdArgs)
	case "status":
		return e.status(cmdArgs)
	case "token":
		return e.token(cmdArgs)
	case "reconcile":
		return e.reconcile(cmdArgs)
	case "help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// loadConfig prompts for the shared secret when neither the file nor the
// environment provides one and stdin is a terminal.
func (e *env) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(e.cfgPath, e.dev)
	if !errors.Is(err, config.ErrMissingSecret) || !isTerminal(int(os.Stdin.Fd())) {
		return cfg, err
	}
	fmt.Fprint(e.stderr, "Shared secret: ")
	secret, rerr := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(e.stderr)
	if rerr != nil {
		return nil, fmt.Errorf("read secret: %w", rerr)
	}
	if len(secret) == 0 {
		return nil, err
	}
	if err := os.Setenv(config.EnvSharedSecret, string(secret)); err != nil {
		return nil, err
	}
	return config.LoadConfig(e.cfgPath, e.dev)
}

func (e *env) openStation(ctx context.Context) (*application.Station, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.NewWithWriter(e.stderr, cfg.Log, cfg.Runtime.Dev)
	return application.NewStation(ctx, cfg, logger)
}

func newFlagSet(name string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func (e *env) issue(args []string) error {
	fs := newFlagSet("issue", e.stderr)
	var (
		req     usecase.IssueRequest
		fields  []string
		pngPath string
	)
	fs.StringVar(&req.Name, "name", "", "holder name (required)")
	fs.StringVar(&req.Number, "number", "", "holder phone number")
	fs.StringVar(&req.Email, "email", "", "holder email")
	fs.StringVar(&req.Key, "key", "", "ticket key (generated when empty)")
	fs.StringArrayVar(&fields, "field", nil, "extra field as key=value; repeatable")
	fs.StringVar(&pngPath, "png", "", "also write the code as a PNG to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	extra, err := parseFields(fields)
	if err != nil {
		return err
	}
	req.Extra = extra

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	st, err := e.openStation(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	issued, err := st.IssueUC.Issue(ctx, req)
	if err != nil {
		return err
	}
	if pngPath != "" {
		png, err := qr.EncodePNG(issued.Payload, qr.DefaultSize)
		if err != nil {
			return err
		}
		if err := os.WriteFile(pngPath, png, 0o644); err != nil {
			return err
		}
	}
	fmt.Fprintf(e.stdout, "path:    %s\nkey:     %s\npayload: %s\n", issued.Path, issued.Record.Key, issued.Payload)
	return nil
}

// parseFields turns key=value pairs into raw JSON; values that are not valid JSON become strings.
func parseFields(pairs []string) (map[string]json.RawMessage, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]json.RawMessage, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%w: field %q is not key=value", domain.ErrInvalidArgument, p)
		}
		if json.Valid([]byte(v)) {
			out[k] = json.RawMessage(v)
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[k] = b
	}
	return out, nil
}

func (e *env) status(args []string) error {
	fs := newFlagSet("status", e.stderr)
	var name, key string
	fs.StringVar(&name, "name", "", "holder name")
	fs.StringVar(&key, "key", "", "ticket key or its last six characters")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	st, err := e.openStation(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	res, err := st.StatusUC.Status(ctx, name, key)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "%s: %s\n", res.DerivedKey, res.Status)
	return nil
}

func (e *env) token(args []string) error {
	fs := newFlagSet("token", e.stderr)
	var (
		subject string
		ttl     time.Duration
	)
	fs.StringVar(&subject, "subject", "scanner", "token subject, usually the station name")
	fs.DurationVar(&ttl, "ttl", web.DefaultTokenTTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	auth, err := web.NewAuthManager(cfg.HTTP.JWTSecret)
	if err != nil {
		return fmt.Errorf("http.jwt_secret: %w", err)
	}
	tok, err := auth.Mint(subject, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, tok)
	return nil
}

func (e *env) reconcile(args []string) error {
	fs := newFlagSet("reconcile", e.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	st, err := e.openStation(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if st.ReconcileUC == nil {
		return fmt.Errorf("%w: reconcile", domain.ErrUnsupported)
	}
	n, err := st.ReconcileUC.Reconcile(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "reconciled %d ticket(s)\n", n)
	return nil
}
