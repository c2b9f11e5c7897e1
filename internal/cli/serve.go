package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/webstorage/internal/transport/httpapi"
)

// shutdownTimeout bounds the graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen   string
	Database string
	Registry string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an endpoint over HTTP",
		Long: `Serve an endpoint over HTTP backed by a SQLite database.

Only descriptors in the trusted registry can be prepared. Idle cursors
are swept in the background. SIGINT or SIGTERM shuts the server down.

Example:
  webstorage serve --registry registry.cue --db records.db --listen :8080`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database path (overrides config)")
	cmd.Flags().StringVar(&opts.Registry, "registry", "", "trusted registry file or directory (overrides config)")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return report(formatter, err)
	}
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.Registry != "" {
		cfg.Registry = opts.Registry
	}
	logger := opts.newLogger(cfg, cmd.ErrOrStderr())

	ep, st, err := openEndpoint(cfg, logger)
	if err != nil {
		return report(formatter, err)
	}
	defer st.Close()

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return report(formatter, WrapExitError(ExitCommandError, ErrCodeGeneric, fmt.Errorf("listen: %w", err)))
	}

	server := &http.Server{
		Handler:           httpapi.NewServer(ep, httpapi.WithServerLogger(logger)).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		_ = ep.RunSweeper(sweepCtx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ln)
	}()
	logger.Info("endpoint serving",
		"addr", ln.Addr().String(),
		"database", cfg.Database,
		"registry", cfg.Registry,
		"server_token", ep.ServerToken().String(),
	)

	select {
	case err = <-serveErr:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = server.Shutdown(shutdownCtx)
		if serr := <-serveErr; !errors.Is(serr, http.ErrServerClosed) && err == nil {
			err = serr
		}
	}
	stopSweep()
	<-sweepDone

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return report(formatter, fmt.Errorf("serve: %w", err))
	}
	logger.Info("endpoint stopped", "server_token", ep.ServerToken().String())
	return nil
}
