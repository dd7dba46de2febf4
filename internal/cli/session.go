package cli

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/taxon/internal/graph"
	"github.com/roach88/taxon/internal/store"
)

// session is one command's view of the database.
type session struct {
	store    *store.Store
	catalog  *graph.Catalog
	registry *prometheus.Registry
	logger   *slog.Logger
	out      *OutputFormatter
}

// openSession configures logging and opens the catalog database. The
// caller must Close the session.
func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	out := newFormatter(opts, cmd)

	logger := newLogger(opts, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	if opts.Database == "" {
		return nil, out.Fail("no database", NewExitError(ExitCommandError, "database path is required (--db or config file)"))
	}

	logger.Debug("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, out.Fail("failed to open database", err)
	}

	registry := prometheus.NewRegistry()
	return &session{
		store: st,
		catalog: graph.New(st, graph.Options{
			Logger:     logger,
			Registerer: registry,
		}),
		registry: registry,
		logger:   logger,
		out:      out,
	}, nil
}

// Close closes the database, logging any error.
func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
