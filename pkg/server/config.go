// Package server provides an HTTP server engine built on the SPipeline
// interception pipeline. Every incoming call flows through a phase-ordered
// pipeline of steps; routing, authentication, rate limiting, metrics, and
// the application handler itself are all steps.
package server

import (
	"time"

	"github.com/Suhaibinator/SPipeline/pkg/interceptors"
	"github.com/Suhaibinator/SPipeline/pkg/metrics"
	"github.com/Suhaibinator/SPipeline/pkg/pipeline"
	"go.uber.org/zap"
)

// Standard phases of the server call pipeline, in order. Route handlers run
// in PhaseCall; global infrastructure registers into the earlier phases and
// PhaseFallback produces a 404 when no step responded.
const (
	PhaseSetup      pipeline.Phase = "setup"
	PhaseMonitoring pipeline.Phase = "monitoring"
	PhasePlugins    pipeline.Phase = "plugins"
	PhaseCall       pipeline.Phase = "call"
	PhaseFallback   pipeline.Phase = "fallback"
)

// AuthLevel defines the authentication level for a route.
type AuthLevel int

const (
	// NoAuth indicates that no authentication is required for the route.
	NoAuth AuthLevel = iota

	// AuthOptional indicates that authentication is attempted and recorded
	// on the call if it succeeds, but the call proceeds either way.
	AuthOptional

	// AuthRequired indicates that the call is rejected with 401 Unauthorized
	// when authentication fails.
	AuthRequired
)

// Config defines the global configuration for the server engine.
type Config struct {
	// Logger for all server operations. A production zap logger is created
	// when nil.
	Logger *zap.Logger

	// GlobalTimeout is the default deadline applied to every route. Zero
	// disables it. The deadline takes effect at suspension points: a
	// handler that never pauses runs to completion.
	GlobalTimeout time.Duration

	// GlobalRateLimit is the default rate limit applied to every route.
	GlobalRateLimit *interceptors.RateLimitConfig[*Call]

	// Metrics enables Prometheus instrumentation of call executions when
	// set.
	Metrics *metrics.Collector

	// EnableTraceID assigns a trace ID to every call and includes it in
	// logs.
	EnableTraceID bool

	// AuthProvider validates credentials for routes with AuthOptional or
	// AuthRequired.
	AuthProvider AuthProvider
}

// Handler is the step type route handlers implement. It is an ordinary
// pipeline step over the server call subject, so handlers have the full
// control surface: pause, fork, early finish, and unwind callbacks.
type Handler = pipeline.Step[*Call]

// RouteConfig defines the configuration for one route.
type RouteConfig struct {
	// Path is the route pattern, using httprouter syntax for parameters
	// (e.g. "/users/:id").
	Path string

	// Methods lists the HTTP methods this route handles.
	Methods []string

	// AuthLevel selects how authentication is enforced for this route.
	AuthLevel AuthLevel

	// Timeout overrides the global timeout for this route.
	Timeout time.Duration

	// RateLimit overrides the global rate limit for this route.
	RateLimit *interceptors.RateLimitConfig[*Call]

	// Handler runs in the call phase.
	Handler Handler

	// Pipeline, if set, is merged into the route's pipeline after the
	// server's own steps, allowing route-specific interceptors in any
	// phase.
	Pipeline *pipeline.Pipeline[*Call]
}
