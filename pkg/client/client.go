// Package client provides an HTTP client engine built on the SPipeline
// interception pipeline. Every outgoing request flows through a phase-ordered
// pipeline whose send phase performs the actual round trip, so features like
// authentication, default headers, and logging are ordinary steps.
package client

import (
	"context"
	"io"
	"net/http"

	"github.com/Suhaibinator/SPipeline/pkg/codec"
	"github.com/Suhaibinator/SPipeline/pkg/interceptors"
	"github.com/Suhaibinator/SPipeline/pkg/pipeline"
	"go.uber.org/zap"
)

// Standard phases of the client request pipeline, in order. The engine's
// terminal round-trip step runs at the end of PhaseSend.
const (
	PhaseBefore    pipeline.Phase = "before"
	PhaseState     pipeline.Phase = "state"
	PhaseTransform pipeline.Phase = "transform"
	PhaseRender    pipeline.Phase = "render"
	PhaseSend      pipeline.Phase = "send"
)

// Config defines the configuration for the client engine.
type Config struct {
	// Logger for request logging. A no-op logger is used when nil.
	Logger *zap.Logger

	// HTTPClient performs the round trips. http.DefaultClient is used when
	// nil.
	HTTPClient *http.Client
}

// Client is the HTTP client engine.
type Client struct {
	pipeline   *pipeline.Pipeline[*Request]
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a client engine with the standard request pipeline phases.
func New(config Config) *Client {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	c := &Client{
		pipeline:   pipeline.NewPipeline[*Request](PhaseBefore, PhaseState, PhaseTransform, PhaseRender, PhaseSend),
		httpClient: httpClient,
		logger:     logger,
	}

	c.pipeline.Intercept(PhaseBefore, interceptors.Logging(logger, requestFields))

	return c
}

// requestFields returns the standard log fields for a request.
func requestFields(req *Request) []zap.Field {
	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("url", req.URL),
	}
	if req.Response != nil {
		fields = append(fields, zap.Int("status", req.Response.StatusCode))
	}
	return fields
}

// Intercept registers a step into a phase of the client's pipeline, applied
// to every request sent after this call.
func (c *Client) Intercept(phase pipeline.Phase, step pipeline.Step[*Request]) {
	c.pipeline.Intercept(phase, step)
}

// Do sends a request through the pipeline and returns its completed
// response. The execution is driven on the calling goroutine; steps that
// suspend are resumed through the request's Resume/Abort signals.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	p := pipeline.NewPipeline[*Request](PhaseBefore, PhaseState, PhaseTransform, PhaseRender, PhaseSend)
	p.Merge(c.pipeline)
	p.Intercept(PhaseSend, c.send)

	req.ctx = ctx
	exec := pipeline.NewExecution(req, p.Steps())

	for {
		err := exec.Proceed()

		if exec.State() == pipeline.StatePaused {
			select {
			case sig := <-req.signal:
				if sig != nil {
					_ = exec.Fail(sig)
					return nil, sig
				}
				continue
			case <-ctx.Done():
				_ = exec.Fail(ctx.Err())
				return nil, ctx.Err()
			}
		}

		if err != nil {
			return nil, err
		}
		return req.Response, nil
	}
}

// send is the terminal step: it performs the HTTP round trip and records the
// completed response on the request.
func (c *Client) send(pc *pipeline.Context[*Request], req *Request) error {
	httpReq, err := http.NewRequestWithContext(req.Context(), req.Method, req.URL, req.Body)
	if err != nil {
		return err
	}
	for key, values := range req.Header {
		httpReq.Header[key] = values
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	req.Response = &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}
	return nil
}

// BasicAuth returns a state-phase step that sets the Authorization header
// for HTTP Basic Authentication on every request.
func BasicAuth(username, password string) pipeline.Step[*Request] {
	payload := codec.EncodeBasicAuth(username, password)
	return func(c *pipeline.Context[*Request], req *Request) error {
		req.Header.Set("Authorization", "Basic "+payload)
		return nil
	}
}

// BearerAuth returns a state-phase step that sets the Authorization header
// with a bearer token on every request.
func BearerAuth(token string) pipeline.Step[*Request] {
	return func(c *pipeline.Context[*Request], req *Request) error {
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	}
}

// DefaultHeaders returns a state-phase step that sets every header in h
// that the request has not already set.
func DefaultHeaders(h http.Header) pipeline.Step[*Request] {
	return func(c *pipeline.Context[*Request], req *Request) error {
		for key, values := range h {
			if req.Header.Get(key) == "" {
				req.Header[key] = values
			}
		}
		return nil
	}
}
