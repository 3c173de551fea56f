// Package commands implements the dbkit CLI commands.
package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dbkit/internal/config"
	"github.com/leapstack-labs/dbkit/pkg/conn"
)

// ctxKey types for values stored on the command context by the root
// command.
type (
	configKey struct{}
	loggerKey struct{}
)

// CommandContext holds the dependencies shared by every command.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// NewCommandContext pulls config and logger off the cobra context.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cc := &CommandContext{}
	if v := cmd.Context().Value(configKey{}); v != nil {
		cc.Cfg = v.(*config.Config)
	}
	if v := cmd.Context().Value(loggerKey{}); v != nil {
		cc.Logger = v.(*slog.Logger)
	}
	if cc.Cfg == nil {
		cc.Cfg = &config.Config{}
	}
	if cc.Logger == nil {
		cc.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return cc
}

// WithConfig stores config and logger on a context for command use.
func WithConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) context.Context {
	ctx = context.WithValue(ctx, configKey{}, cfg)
	return context.WithValue(ctx, loggerKey{}, logger)
}

// OpenManager builds and connects a manager for the named profile.
// Callers must Dispose the returned manager (typically via defer).
func (cc *CommandContext) OpenManager(ctx context.Context, profileName string) (*conn.Manager, error) {
	profile, err := cc.Cfg.Resolve(profileName)
	if err != nil {
		return nil, err
	}
	connCfg, err := profile.ConnConfig()
	if err != nil {
		return nil, err
	}
	mgr, err := conn.New(connCfg, cc.Logger)
	if err != nil {
		return nil, err
	}
	if err := mgr.Connect(ctx); err != nil {
		return nil, err
	}
	return mgr, nil
}
