package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/onemodel/internal/blob"
	"github.com/roach88/onemodel/internal/config"
	"github.com/roach88/onemodel/internal/store"
)

// session is an open store together with the settings it was opened with.
type session struct {
	cfg     config.Config
	store   *store.Store
	logger  *slog.Logger
	out     *OutputFormatter
	dsn     string
	metrics *prometheus.Registry
}

// loadConfig reads the config file named by --config and applies --db.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Database != "" {
		if cfg.Database.Driver == config.DriverPostgres {
			cfg.Database.DSN = o.Database
		} else {
			cfg.Database.Path = o.Database
		}
	}
	return cfg, nil
}

func (o *RootOptions) newLogger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// open loads the configuration and opens the store it names, creating the
// schema and base data on first use.
func (o *RootOptions) open(cmd *cobra.Command) (*session, error) {
	ctx := cmd.Context()
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := o.newLogger(cmd, cfg)

	dialect, err := store.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid database driver", err)
	}
	dsn := cfg.Database.DatabaseDSN()
	if dialect == store.SQLite && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to create database directory", err)
		}
	}

	blobs, err := openBlobs(ctx, cfg.Content)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open content store", err)
	}

	reg := prometheus.NewRegistry()
	st, err := store.Open(dsn, store.Options{
		Dialect: dialect,
		Logger:  logger,
		Metrics: store.NewMetrics(reg),
		Blobs:   blobs,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	logger.Debug("store opened", "dialect", dialect, "content", cfg.Content.Driver)

	return &session{cfg: cfg, store: st, logger: logger, out: o.formatter(cmd), dsn: dsn, metrics: reg}, nil
}

// run opens a session, calls fn and closes the session. With --metrics the
// store metrics gathered during the command go to stderr afterwards.
func (o *RootOptions) run(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	s, err := o.open(cmd)
	if err != nil {
		return err
	}
	defer s.store.Close()
	err = fn(cmd.Context(), s)
	if o.Metrics {
		if werr := writeMetrics(cmd.ErrOrStderr(), s.metrics); werr != nil && err == nil {
			err = WrapExitError(ExitFailure, "failed to write metrics", werr)
		}
	}
	return err
}

// openBlobs returns the content backend for file attributes, or nil to keep
// content in the database.
func openBlobs(ctx context.Context, c config.ContentConfig) (blob.Store, error) {
	switch c.Driver {
	case config.ContentFS:
		return blob.NewFS(c.Dir)
	case config.ContentS3:
		return blob.NewS3(ctx, blob.S3Config{
			Bucket:    c.S3.Bucket,
			Region:    c.S3.Region,
			Endpoint:  c.S3.Endpoint,
			PathStyle: c.S3.PathStyle,
		})
	}
	return nil, nil
}

// parseID parses a decimal id. Zero is never a valid id.
func parseID(ref string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(ref), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// resolveEntity turns an id or an exact (case-insensitive) entity name into
// an id. A name shared by several entities is ambiguous.
func (s *session) resolveEntity(ctx context.Context, ref string) (int64, error) {
	if id, ok := parseID(ref); ok {
		return id, nil
	}
	ids, err := s.store.FindEntityIDsByName(ctx, ref, true)
	if err != nil {
		return 0, err
	}
	return pickOne("entity", ref, ids)
}

// resolveRelType accepts a relation type id or name.
func (s *session) resolveRelType(ctx context.Context, ref string) (int64, error) {
	if id, ok := parseID(ref); ok {
		return id, nil
	}
	return s.store.RelationTypeIDByName(ctx, ref)
}

// resolveGroup accepts a group id or exact name.
func (s *session) resolveGroup(ctx context.Context, ref string) (int64, error) {
	if id, ok := parseID(ref); ok {
		return id, nil
	}
	groups, err := s.store.ListGroups(ctx, 0, 0)
	if err != nil {
		return 0, err
	}
	var ids []int64
	for _, g := range groups {
		if g.Name == ref {
			ids = append(ids, g.ID)
		}
	}
	return pickOne("group", ref, ids)
}

// resolveClass accepts a class id or exact name.
func (s *session) resolveClass(ctx context.Context, ref string) (int64, error) {
	if id, ok := parseID(ref); ok {
		return id, nil
	}
	classes, err := s.store.ListClasses(ctx, 0, 0)
	if err != nil {
		return 0, err
	}
	var ids []int64
	for _, c := range classes {
		if c.Name == ref {
			ids = append(ids, c.ID)
		}
	}
	return pickOne("class", ref, ids)
}

func pickOne(kind, ref string, ids []int64) (int64, error) {
	switch len(ids) {
	case 0:
		return 0, NewExitError(ExitFailure, fmt.Sprintf("no %s named %q", kind, ref))
	case 1:
		return ids[0], nil
	}
	return 0, NewExitError(ExitFailure, fmt.Sprintf("%s name %q is ambiguous (ids %v); use an id", kind, ref, ids))
}

// isUsageError reports cobra's argument and flag errors, which carry no
// exit code of their own.
func isUsageError(err error) bool {
	msg := err.Error()
	for _, prefix := range []string{"unknown command", "unknown flag", "unknown shorthand flag", "required flag", "accepts ", "requires at least", "invalid argument", "flag needs an argument"} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}
