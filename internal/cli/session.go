package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/webstorage/internal/client"
	"github.com/roach88/webstorage/internal/config"
	"github.com/roach88/webstorage/internal/cursor"
	"github.com/roach88/webstorage/internal/descriptor"
	"github.com/roach88/webstorage/internal/endpoint"
	"github.com/roach88/webstorage/internal/store"
	"github.com/roach88/webstorage/internal/transport"
	"github.com/roach88/webstorage/internal/transport/httpapi"
)

// session is a client bound to a remote endpoint, or to an in-process
// endpoint over the configured database.
type session struct {
	client *client.Client
	store  *store.Store // nil for a remote endpoint
}

func (s *session) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

func openSession(cfg *config.Config, logger *slog.Logger) (*session, error) {
	var (
		tr transport.Transport
		st *store.Store
	)
	if cfg.Endpoint != "" {
		logger.Debug("using remote endpoint", "endpoint", cfg.Endpoint)
		tr = httpapi.NewClient(cfg.Endpoint)
	} else {
		ep, opened, err := openEndpoint(cfg, logger)
		if err != nil {
			return nil, err
		}
		logger.Debug("using in-process endpoint", "database", cfg.Database, "server_token", ep.ServerToken().String())
		tr, st = ep, opened
	}

	c := client.New(tr,
		client.WithLogger(logger),
		client.WithCacheTTL(cfg.CacheTTL),
		client.WithBatchSize(cfg.BatchSize),
	)
	return &session{client: c, store: st}, nil
}

// openEndpoint opens the store and registry named by cfg. The caller owns
// the returned store.
func openEndpoint(cfg *config.Config, logger *slog.Logger) (*endpoint.Endpoint, *store.Store, error) {
	if cfg.Registry == "" {
		return nil, nil, WrapExitError(ExitCommandError, ErrCodeRegistry, errors.New("a registry is required to run an endpoint (set registry or --registry)"))
	}
	reg, err := descriptor.LoadRegistry(cfg.Registry, descriptor.WithLogger(logger))
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, ErrCodeRegistry, err)
	}
	st, err := store.Open(cfg.Database, store.WithLogger(logger))
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, ErrCodeGeneric, fmt.Errorf("open database: %w", err))
	}
	ep := endpoint.New(st, reg,
		endpoint.WithLogger(logger),
		endpoint.WithCursorTimeout(cfg.CursorTimeout),
		endpoint.WithSweepInterval(cfg.SweepInterval),
		endpoint.WithBatchSize(cfg.BatchSize),
	)
	return ep, st, nil
}

// report prints err through f and returns the ExitError for it. Errors
// already carrying an exit code keep it, with their message as the error
// code.
func report(f *OutputFormatter, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err == nil {
			return f.Fail(exitErr.Code, ErrCodeGeneric, exitErr, nil)
		}
		return f.Fail(exitErr.Code, exitErr.Message, exitErr.Err, nil)
	}

	var (
		writeErr *client.WriteError
		queryErr *client.QueryError
	)
	switch {
	case descriptor.IsIllegalDescriptor(err):
		return f.Fail(ExitFailure, ErrCodeUntrusted, err, nil)
	case descriptor.IsParseError(err):
		return f.Fail(ExitFailure, ErrCodeParse, err, nil)
	case descriptor.IsParameterError(err):
		return f.Fail(ExitCommandError, ErrCodeParameter, err, nil)
	case errors.As(err, &writeErr):
		return f.Fail(ExitFailure, ErrCodeWrite, err, map[string]string{"response_code": writeErr.Code.String()})
	case errors.As(err, &queryErr):
		return f.Fail(ExitFailure, ErrCodeQuery, err, map[string]string{"response_code": queryErr.Code.String()})
	case cursor.IsExpired(err), cursor.IsFetchError(err):
		return f.Fail(ExitFailure, ErrCodeCursor, err, nil)
	default:
		return f.Fail(ExitCommandError, ErrCodeGeneric, err, nil)
	}
}
