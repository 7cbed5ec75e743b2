package client

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/Suhaibinator/SPipeline/pkg/codec"
)

// Request is the subject threaded through the client pipeline: one outgoing
// HTTP request being prepared, sent, and completed with its response.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   io.Reader

	// Response is populated by the send phase.
	Response *Response

	ctx context.Context

	// signal carries resume/abort notifications from asynchronous steps
	// back to the goroutine driving the execution.
	signal chan error
}

// Response is the completed result of a request, with the body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// NewRequest creates a request for the given method and URL.
func NewRequest(method, url string) *Request {
	return &Request{
		Method: method,
		URL:    url,
		Header: make(http.Header),
		signal: make(chan error, 1),
	}
}

// Context returns the context the request is being executed under. It is the
// context passed to Client.Do, or context.Background before that.
func (r *Request) Context() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

// Resume signals the driver of a suspended request to continue the
// execution. Safe to call from any goroutine.
func (r *Request) Resume() {
	r.notify(nil)
}

// Abort signals the driver of a suspended request to fail the execution with
// the given error. Safe to call from any goroutine.
func (r *Request) Abort(err error) {
	r.notify(err)
}

func (r *Request) notify(err error) {
	select {
	case r.signal <- err:
	default:
	}
}

// SetBody encodes value with the given codec and installs it as the request
// body, setting the Content-Type header to the codec's media type.
func SetBody[T any](r *Request, cd codec.Codec[T], value T) error {
	var buf bytes.Buffer
	if err := cd.Encode(&buf, value); err != nil {
		return err
	}
	r.Body = &buf
	r.Header.Set("Content-Type", cd.ContentType())
	return nil
}

// DecodeBody decodes a completed response's body into a value of type T
// using the given codec.
func DecodeBody[T any](resp *Response, cd codec.Codec[T]) (T, error) {
	return cd.Decode(bytes.NewReader(resp.Body))
}
