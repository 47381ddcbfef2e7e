// Package server exposes the expander over HTTP.
//
// Every endpoint takes a JSON body (or query parameters for GET) and answers
// with {"result": ...} on success or {"error": {"code", "message",
// "details"}} on failure:
//
//	POST /expand         {"attr", "input", "stubs"}        -> penum.Output
//	POST /expand/aux     {"kind", "arg", "input"}          -> penum.Output
//	POST /expand/source  {"file", "source", "stubs"}       -> SourceResult
//	POST /traits         {"source"}                        -> TraitResult
//	GET  /traits?prefix=&limit=                            -> TraitList
//
// All requests share one trait registry.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"

	"github.com/viktorlott/enum-shape/dispatch"
	"github.com/viktorlott/enum-shape/middleware"
)

var (
	validate      = validator.New()
	schemaDecoder = schema.NewDecoder()
)

func init() {
	schemaDecoder.IgnoreUnknownKeys(true)
}

// endpoint is implemented by route.
type endpoint interface {
	serve(s *Server, w http.ResponseWriter, r *http.Request)
}

// Server routes expansion requests.
// Use Handler() to get an http.Handler for use with http.ListenAndServe.
type Server struct {
	mu                 sync.RWMutex
	routes             map[string]endpoint
	registry           *dispatch.Registry
	errorTransformer   ErrorTransformer
	maskInternalErrors bool
	middlewares        []func(http.Handler) http.Handler
	logger             *slog.Logger
	maxRequestBodySize int64
	stubs              bool
}

// New returns a server with all expansion routes registered.
func New() *Server {
	s := &Server{
		routes:             make(map[string]endpoint),
		maxRequestBodySize: 1 << 20, // 1MB default
	}
	s.register("POST /expand", handle(s.expand))
	s.register("POST /expand/aux", handle(s.expandAux))
	s.register("POST /expand/source", handle(s.expandSource))
	s.register("POST /traits", handle(s.registerTrait))
	s.register("GET /traits", handle(s.listTraits))
	return s
}

// WithRegistry sets the trait registry shared by all requests.
// If not set, dispatch.Default() will be used.
func (s *Server) WithRegistry(reg *dispatch.Registry) *Server {
	s.registry = reg
	return s
}

// WithErrorTransformer adds a custom error transformer.
func (s *Server) WithErrorTransformer(fn ErrorTransformer) *Server {
	s.errorTransformer = fn
	return s
}

// WithMaskInternalErrors replaces the message of internal errors with a
// generic one. The unmasked error is still logged.
func (s *Server) WithMaskInternalErrors() *Server {
	s.maskInternalErrors = true
	return s
}

// WithMiddleware adds an HTTP middleware to wrap the server.
// Middleware is applied in the order added (first added is outermost).
func (s *Server) WithMiddleware(mw func(http.Handler) http.Handler) *Server {
	s.middlewares = append(s.middlewares, mw)
	return s
}

// WithLogger sets a custom logger for the server.
// If not set, slog.Default() will be used.
func (s *Server) WithLogger(logger *slog.Logger) *Server {
	s.logger = logger
	return s
}

// WithMaxRequestBodySize sets the maximum request body size.
// A value of 0 means no limit. Default is 1MB (1 << 20).
func (s *Server) WithMaxRequestBodySize(size int64) *Server {
	s.maxRequestBodySize = size
	return s
}

// WithAssertionStubs makes stubs the default flavour for requests that
// don't ask for one.
func (s *Server) WithAssertionStubs() *Server {
	s.stubs = true
	return s
}

func (s *Server) log() *slog.Logger {
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}

func (s *Server) reg() *dispatch.Registry {
	if s.registry == nil {
		return dispatch.Default()
	}
	return s.registry
}

// register adds an endpoint under a "METHOD /path" pattern. Registering a
// pattern twice replaces the earlier endpoint and logs a warning.
func (s *Server) register(pattern string, e endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.routes[pattern]; exists {
		s.log().Warn("duplicate route registration", slog.String("route", pattern))
	}
	s.routes[pattern] = e
}

// Handler returns an http.Handler serving every route. Requests are tagged
// with a request id and logged, then passed through the configured
// middleware.
//
// Example:
//
//	srv := server.New().WithLogger(logger)
//	http.ListenAndServe(":7878", srv.Handler())
func (s *Server) Handler() http.Handler {
	var h http.Handler = http.HandlerFunc(s.serveHTTP)
	for i := len(s.middlewares) - 1; i >= 0; i-- {
		h = s.middlewares[i](h)
	}
	return middleware.RequestID(middleware.Logging(s.log())(h))
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log().Info("serving", slog.String("addr", addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log().ErrorContext(r.Context(), "PANIC recovered",
				slog.Any("panic", rec),
				slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
				slog.String("stack", string(debug.Stack())))
			writeError(w, Errorf(CodeInternal, "internal server error (panic): %v", rec), s.log())
		}
	}()

	s.mu.RLock()
	e, ok := s.routes[r.Method+" "+r.URL.Path]
	_, elsewhere := s.routes[otherMethod(r.Method)+" "+r.URL.Path]
	s.mu.RUnlock()

	if !ok {
		if elsewhere {
			writeError(w, Errorf(CodeMethodNotAllowed, "method %s not allowed", r.Method), s.log())
			return
		}
		writeError(w, NewError(CodeNotFound, "route not found"), s.log())
		return
	}
	e.serve(s, w, r)
}

func otherMethod(m string) string {
	if m == http.MethodGet {
		return http.MethodPost
	}
	return http.MethodGet
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr *Error
	if s.errorTransformer != nil {
		svcErr = s.errorTransformer(err)
	}
	if svcErr == nil {
		svcErr = DefaultErrorTransformer(err)
	}
	if svcErr.Code == CodeInternal {
		s.log().ErrorContext(r.Context(), "internal error",
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.Any("error", err))
		if s.maskInternalErrors {
			svcErr = NewError(CodeInternal, "internal server error")
		}
	}
	writeError(w, svcErr, s.log())
}

// route adapts a typed handler function to an endpoint.
type route[Req, Res any] func(ctx context.Context, req *Req) (Res, error)

func handle[Req, Res any](fn func(context.Context, *Req) (Res, error)) endpoint {
	return route[Req, Res](fn)
}

func (fn route[Req, Res]) serve(s *Server, w http.ResponseWriter, r *http.Request) {
	req := new(Req)
	if err := s.decode(w, r, req); err != nil {
		s.handleError(w, r, err)
		return
	}
	res, err := fn(r.Context(), req)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeResult(w, res, s.log())
}

// decode fills req from the query string for GET and from the JSON body
// otherwise, then validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, req any) error {
	if r.Method == http.MethodGet {
		if err := schemaDecoder.Decode(req, r.URL.Query()); err != nil {
			return Errorf(CodeInvalidArgument, "failed to decode query: %v", err)
		}
	} else if r.Body != nil {
		body := r.Body
		if s.maxRequestBodySize > 0 {
			body = http.MaxBytesReader(w, body, s.maxRequestBodySize)
		}
		dec := json.NewDecoder(body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return err
			}
			return Errorf(CodeInvalidArgument, "failed to decode body: %v", err)
		}
	}
	return validate.Struct(req)
}
