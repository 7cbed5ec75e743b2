package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Suhaibinator/SPipeline/pkg/interceptors"
	"github.com/Suhaibinator/SPipeline/pkg/metrics"
	"github.com/Suhaibinator/SPipeline/pkg/pipeline"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// Server is the HTTP server engine. It implements http.Handler: requests are
// routed with httprouter and each matched call is driven through its route's
// pipeline to completion.
type Server struct {
	config      Config
	router      *httprouter.Router
	logger      *zap.Logger
	base        *pipeline.Pipeline[*Call]
	rateLimiter interceptors.RateLimiter
	wg          sync.WaitGroup
	shutdown    bool
	shutdownMu  sync.RWMutex
}

// New creates a server engine with the standard call pipeline phases and the
// infrastructure steps the configuration asks for.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
	}

	s := &Server{
		config:      config,
		router:      httprouter.New(),
		logger:      logger,
		base:        pipeline.NewPipeline[*Call](PhaseSetup, PhaseMonitoring, PhasePlugins, PhaseCall, PhaseFallback),
		rateLimiter: interceptors.NewUberRateLimiter(),
	}

	if config.EnableTraceID {
		s.base.Intercept(PhaseSetup, interceptors.TraceID(func(call *Call, traceID string) {
			call.TraceID = traceID
		}))
	}
	if config.Metrics != nil {
		s.base.Intercept(PhaseSetup, metrics.Instrument[*Call](config.Metrics, "server"))
	}

	s.base.Intercept(PhaseMonitoring, interceptors.Logging(logger, callFields))

	// Fallback: nothing earlier in the pipeline produced a response.
	s.base.Intercept(PhaseFallback, func(c *pipeline.Context[*Call], call *Call) error {
		if !call.Responded() {
			call.RespondText(http.StatusNotFound, "Not Found")
		}
		return nil
	})

	return s
}

// callFields returns the standard log fields for a call.
func callFields(call *Call) []zap.Field {
	fields := []zap.Field{
		zap.String("method", call.Request.Method),
		zap.String("path", call.Request.URL.Path),
		zap.Int("status", call.Status()),
		zap.Int64("bytes", call.BytesWritten()),
	}
	if call.TraceID != "" {
		fields = append([]zap.Field{zap.String("trace_id", call.TraceID)}, fields...)
	}
	return fields
}

// Intercept registers a step into a phase of the server's base pipeline.
// Routes snapshot the base pipeline when they are registered, so global
// interceptors must be added before RegisterRoute.
func (s *Server) Intercept(phase pipeline.Phase, step pipeline.Step[*Call]) {
	s.base.Intercept(phase, step)
}

// RegisterRoute registers a route with the server. The route's pipeline is
// assembled by merging the server's base pipeline with the route-specific
// configuration, and its step sequence is snapshotted once here.
func (s *Server) RegisterRoute(route RouteConfig) {
	p := pipeline.NewPipeline[*Call](PhaseSetup, PhaseMonitoring, PhasePlugins, PhaseCall, PhaseFallback)
	p.Merge(s.base)

	if timeout := s.effectiveTimeout(route.Timeout); timeout > 0 {
		p.Intercept(PhasePlugins, interceptors.Timeout(timeout, func(call *Call, err error) {
			call.Abort(err)
		}))
	}

	if limit := s.effectiveRateLimit(route.RateLimit); limit != nil {
		p.Intercept(PhasePlugins, interceptors.RateLimit(s.withExceededResponse(limit), s.rateLimiter, s.logger))
	}

	switch route.AuthLevel {
	case AuthRequired:
		p.Intercept(PhasePlugins, RequireAuth(s.config.AuthProvider, s.logger))
	case AuthOptional:
		p.Intercept(PhasePlugins, OptionalAuth(s.config.AuthProvider))
	}

	if route.Pipeline != nil {
		p.Merge(route.Pipeline)
	}

	if route.Handler != nil {
		p.Intercept(PhaseCall, interceptors.Recover(s.logger, route.Handler))
	}

	steps := p.Steps()
	for _, method := range route.Methods {
		s.router.Handle(method, route.Path, s.handle(steps))
	}
}

// effectiveTimeout returns the route timeout, falling back to the global
// timeout.
func (s *Server) effectiveTimeout(routeTimeout time.Duration) time.Duration {
	if routeTimeout > 0 {
		return routeTimeout
	}
	return s.config.GlobalTimeout
}

// effectiveRateLimit returns the route rate limit, falling back to the
// global rate limit.
func (s *Server) effectiveRateLimit(routeLimit *interceptors.RateLimitConfig[*Call]) *interceptors.RateLimitConfig[*Call] {
	if routeLimit != nil {
		return routeLimit
	}
	return s.config.GlobalRateLimit
}

// withExceededResponse fills in a default 429 response for rate limit
// configurations that do not bring their own, keying by client IP when no
// extractor is configured.
func (s *Server) withExceededResponse(config *interceptors.RateLimitConfig[*Call]) *interceptors.RateLimitConfig[*Call] {
	derived := *config
	if derived.KeyExtractor == nil {
		derived.KeyExtractor = func(call *Call) (string, error) {
			return call.ClientIP(), nil
		}
	}
	if derived.OnExceeded == nil {
		derived.OnExceeded = func(call *Call, retryAfter time.Duration) {
			call.Writer().Header().Set("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds())+1, 10))
			call.RespondText(http.StatusTooManyRequests, "Too Many Requests")
		}
	}
	return &derived
}

// handle converts a snapshotted step sequence into an httprouter.Handle that
// drives one execution per request.
func (s *Server) handle(steps []pipeline.Step[*Call]) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		// First add to the wait group, then check shutdown status, so that
		// Shutdown never misses an in-flight call.
		s.wg.Add(1)

		s.shutdownMu.RLock()
		isShutdown := s.shutdown
		s.shutdownMu.RUnlock()

		if isShutdown {
			s.wg.Done()
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}
		defer s.wg.Done()

		call := newCall(w, req, ps)
		s.drive(call, pipeline.NewExecution(call, steps))
	}
}

// drive runs one call's execution to its terminal state. When the execution
// suspends, the driver blocks on the call's signal channel until
// asynchronous work resumes or aborts it. Only this goroutine calls into the
// execution, which keeps control operations serialized the way the engine
// requires.
func (s *Server) drive(call *Call, exec *pipeline.Execution[*Call]) {
	for {
		err := exec.Proceed()

		if exec.State() == pipeline.StatePaused {
			if sig := <-call.signal; sig != nil {
				_ = exec.Fail(sig)
				err = sig
			} else {
				continue
			}
		}

		if err != nil {
			s.respondError(call, err)
		}
		return
	}
}

// respondError maps a failed execution to an HTTP response, honoring
// HTTPError status codes and falling back to 500.
func (s *Server) respondError(call *Call, err error) {
	fields := append(callFields(call), zap.Error(err))
	s.logger.Error("Call failed", fields...)

	if call.Responded() {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal Server Error"

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.StatusCode
		message = httpErr.Message
	} else if errors.Is(err, interceptors.ErrTimeout) {
		status = http.StatusRequestTimeout
		message = "Request Timeout"
	} else if errors.Is(err, interceptors.ErrRateLimited) {
		status = http.StatusTooManyRequests
		message = "Too Many Requests"
	}

	call.RespondText(status, message)
}

// ServeHTTP implements the http.Handler interface by delegating to the
// underlying httprouter.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.router.ServeHTTP(w, req)
}

// Shutdown gracefully shuts down the server engine. It stops accepting new
// calls and waits for in-flight calls to complete. If the context is
// canceled before all calls complete, it returns the context's error.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownMu.Lock()
	s.shutdown = true
	s.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HTTPError represents an HTTP error with a status code and message. When a
// handler fails an execution with an HTTPError, the server uses its status
// code and message for the response.
type HTTPError struct {
	StatusCode int    // HTTP status code (e.g., 400, 404, 500)
	Message    string // Error message to be sent in the response body
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// NewHTTPError creates a new HTTPError with the specified status code and
// message.
func NewHTTPError(statusCode int, message string) *HTTPError {
	return &HTTPError{StatusCode: statusCode, Message: message}
}
