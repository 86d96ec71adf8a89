// Package cli implements the fieldsync command-line client: one-shot ping,
// pull and push commands against a sync server.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/fieldsync/internal/client/client"
	"github.com/dmitrijs2005/fieldsync/internal/client/config"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/goccy/go-json"
)

const usage = `usage: fieldsync-client [flags] <command>

commands:
  ping                        check the server is reachable
  pull <entity> [since]       print every record changed after since (full sync when omitted)
  push <entity> <file|->      push {"mutations": [...]} read from a file or stdin
`

var ErrUsage = errors.New("invalid usage")

type App struct {
	config *config.Config
	client client.Client
	stdin  io.Reader
	stdout io.Writer
}

func NewApp(cfg *config.Config) (*App, error) {
	c, err := client.NewSyncClient(cfg.ServerEndpointAddr, cfg.AccessToken, cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return &App{config: cfg, client: c, stdin: os.Stdin, stdout: os.Stdout}, nil
}

func (a *App) Close() error {
	return a.client.Close()
}

// Run executes one command.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w\n%s", ErrUsage, usage)
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "ping":
		if err := a.client.Ping(ctx); err != nil {
			return err
		}
		_, err := fmt.Fprintln(a.stdout, "OK")
		return err

	case "pull":
		if len(rest) < 1 || len(rest) > 2 {
			return fmt.Errorf("%w: pull <entity> [since]", ErrUsage)
		}
		var since string
		if len(rest) == 2 {
			since = rest[1]
		}
		snap, err := a.client.PullAll(ctx, rest[0], since, a.config.PageSize)
		if err != nil {
			return err
		}
		return a.print(models.PullResponse{Items: snap.Items, ServerTime: snap.ServerTime, Total: snap.Total})

	case "push":
		if len(rest) != 2 {
			return fmt.Errorf("%w: push <entity> <file|->", ErrUsage)
		}
		req, err := a.readPush(rest[1])
		if err != nil {
			return err
		}
		resp, err := a.client.Push(ctx, rest[0], req.Mutations)
		if err != nil {
			return err
		}
		return a.print(resp)

	case "help":
		_, err := io.WriteString(a.stdout, usage)
		return err
	}

	return fmt.Errorf("%w: unknown command %q\n%s", ErrUsage, cmd, strings.TrimSpace(usage))
}

func (a *App) readPush(path string) (*models.PushRequest, error) {
	var r io.Reader = a.stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var req models.PushRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, fmt.Errorf("read mutations: %w", err)
	}
	return &req, nil
}

func (a *App) print(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
