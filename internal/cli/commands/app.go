package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/docmap/internal/cli/config"
	"github.com/conduit-lang/docmap/internal/engine"
	"github.com/conduit-lang/docmap/internal/engine/dial"
	"github.com/conduit-lang/docmap/internal/engine/metrics"
	"github.com/conduit-lang/docmap/internal/logger"
	"github.com/conduit-lang/docmap/internal/orm/connection"
	"github.com/conduit-lang/docmap/internal/orm/query"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

const connectTimeout = 30 * time.Second

// app carries the global flags and the engine factory shared by every
// subcommand
type app struct {
	configPath  string
	uri         string
	noColor     bool
	verbose     bool
	showMetrics bool

	dial func(opts dial.Options, log *zap.SugaredLogger) (engine.Engine, error)

	// classes holds the declared class names once the config is loaded
	classes []string
}

// session is an open connection for the duration of one command
type session struct {
	cfg     *config.Config
	log     *zap.SugaredLogger
	conn    *connection.Connection
	metrics *prometheus.Registry
}

// load reads the config and registers its document classes
func (a *app) load() (*config.Config, *schema.Registry, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, nil, err
	}
	if a.uri != "" {
		cfg.Database.URI = a.uri
	}

	reg, err := cfg.Registry()
	if err != nil {
		return nil, nil, err
	}
	a.classes = reg.List()
	return cfg, reg, nil
}

// open loads the config and connects every declared class
func (a *app) open(ctx context.Context) (*session, error) {
	cfg, reg, err := a.load()
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if a.verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Level: level, Development: cfg.Log.Development})
	if err != nil {
		return nil, err
	}

	eng, err := a.dial(dial.Options{
		URI:      cfg.Database.URI,
		Database: cfg.Database.Name,
		Driver:   cfg.Database.Driver,
	}, log)
	if err != nil {
		return nil, err
	}

	promReg := prometheus.NewRegistry()
	m, err := metrics.New(promReg)
	if err != nil {
		return nil, err
	}

	conn := connection.New(metrics.Wrap(eng, m), reg, connection.Options{
		SyncIndexes:    cfg.Indexes.Sync,
		ConnectTimeout: connectTimeout,
		Retry:          connection.DefaultRetryConfig(),
	}, log)
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}

	return &session{cfg: cfg, log: log, conn: conn, metrics: promReg}, nil
}

// run opens a session, calls fn and disconnects again
func (a *app) run(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.conn.Disconnect(context.Background()); err != nil {
			s.log.Warnw("disconnect failed", "error", err)
		}
		_ = s.log.Sync()
	}()

	if err := fn(ctx, s); err != nil {
		return err
	}
	if a.showMetrics {
		return renderOperations(cmd.OutOrStdout(), s.metrics, a.noColor)
	}
	return nil
}

func (s *session) repository(name string) (*query.Repository, error) {
	return s.conn.Repository(name)
}

// palette returns the colors used for status lines
func (a *app) palette() (success, info, warning *color.Color) {
	success = color.New(color.FgGreen, color.Bold)
	info = color.New(color.FgCyan)
	warning = color.New(color.FgYellow, color.Bold)
	if a.noColor {
		success.DisableColor()
		info.DisableColor()
		warning.DisableColor()
	}
	return success, info, warning
}

func classArg(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%s requires exactly one document class", cmd.Name())
	}
	return nil
}
