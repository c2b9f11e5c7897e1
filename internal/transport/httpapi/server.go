package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/roach88/webstorage/internal/transport"
)

// Route paths.
const (
	PathRegisterCategory = "/register-category"
	PathPrepareStatement = "/prepare-statement"
	PathWriteExecute     = "/write-execute"
	PathQueryExecute     = "/query-execute"
	PathGetMore          = "/get-more"
	PathPing             = "/ping"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 4 << 20

// TokenSource reports the server token of the endpoint behind a handler.
type TokenSource interface {
	ServerToken() uuid.UUID
}

// PingResponse is the body of GET /ping.
type PingResponse struct {
	ServerToken uuid.UUID `json:"server_token"`
}

// ErrorResponse is the body of every non-200 reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Server serves a transport.Transport over HTTP.
type Server struct {
	backend transport.Transport
	logger  *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger.
// Default: slog.Default()
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a server forwarding to backend.
func NewServer(backend transport.Transport, opts ...ServerOption) *Server {
	s := &Server{backend: backend, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes registers the protocol routes on r.
func (s *Server) Routes(r chi.Router) {
	r.Post(PathRegisterCategory, handle(s, s.backend.RegisterCategory))
	r.Post(PathPrepareStatement, handle(s, s.backend.PrepareStatement))
	r.Post(PathWriteExecute, handle(s, s.backend.Execute))
	r.Post(PathQueryExecute, handle(s, s.backend.ExecuteQuery))
	r.Post(PathGetMore, handle(s, s.backend.GetMore))
	r.Get(PathPing, s.ping)
}

// Handler returns a router serving the protocol routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	s.Routes(r)
	return r
}

func (s *Server) ping(w http.ResponseWriter, _ *http.Request) {
	var resp PingResponse
	if ts, ok := s.backend.(TokenSource); ok {
		resp.ServerToken = ts.ServerToken()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handle adapts one transport call to an HTTP handler.
func handle[Req, Resp any](s *Server, call func(context.Context, Req) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
		resp, err := call(r.Context(), req)
		if err != nil {
			s.logger.Error("transport call failed", "path", r.URL.Path, "error", err)
			s.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, resp)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty request body")
		}
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}
