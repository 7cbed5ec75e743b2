package server

import (
	"net"
	"net/http"
	"strings"

	"github.com/Suhaibinator/SPipeline/pkg/codec"
	"github.com/julienschmidt/httprouter"
)

// Call is the subject threaded through the server pipeline: one incoming
// HTTP request together with its response writer and per-call state.
type Call struct {
	Request *http.Request
	Params  httprouter.Params

	// TraceID is assigned by the trace interceptor in the setup phase when
	// trace IDs are enabled.
	TraceID string

	// Authenticated is set by the auth plugins when the call carries valid
	// credentials.
	Authenticated bool

	writer *statusWriter

	// signal carries resume/abort notifications from asynchronous work back
	// to the goroutine driving the execution. Buffered so that notifying a
	// call that is not suspended never blocks.
	signal chan error
}

func newCall(w http.ResponseWriter, req *http.Request, ps httprouter.Params) *Call {
	return &Call{
		Request: req,
		Params:  ps,
		writer:  &statusWriter{ResponseWriter: w},
		signal:  make(chan error, 1),
	}
}

// Writer returns the response writer for this call. Writes are tracked so
// that the fallback phase and the error mapper know whether a response has
// already been produced.
func (c *Call) Writer() http.ResponseWriter {
	return c.writer
}

// Param returns the value of the named route parameter.
func (c *Call) Param(name string) string {
	return c.Params.ByName(name)
}

// Responded reports whether any part of the response has been written.
func (c *Call) Responded() bool {
	return c.writer.wrote
}

// Status returns the status code written so far, or zero if no response has
// been produced yet.
func (c *Call) Status() int {
	return c.writer.status
}

// BytesWritten returns the number of response body bytes written so far.
func (c *Call) BytesWritten() int64 {
	return c.writer.bytes
}

// Resume signals the driver of a suspended call to continue the execution.
// It is safe to call from any goroutine; the driver goroutine performs the
// actual Proceed so control operations stay serialized.
func (c *Call) Resume() {
	c.notify(nil)
}

// Abort signals the driver of a suspended call to fail the execution with
// the given error. Like Resume it is safe to call from any goroutine.
func (c *Call) Abort(err error) {
	c.notify(err)
}

func (c *Call) notify(err error) {
	select {
	case c.signal <- err:
	default:
		// A signal is already pending; the first one wins.
	}
}

// ClientIP extracts the client IP address of the call. It prefers the
// X-Forwarded-For header (leftmost entry), then X-Real-IP, and falls back to
// the connection's remote address.
func (c *Call) ClientIP() string {
	if ip := c.Request.Header.Get("X-Forwarded-For"); ip != "" {
		// The leftmost IP is the original client
		if first, _, ok := strings.Cut(ip, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(ip)
	}

	if ip := c.Request.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return host
}

// RespondText writes a plain text response with the given status code.
func (c *Call) RespondText(status int, body string) {
	c.writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.writer.WriteHeader(status)
	_, _ = c.writer.Write([]byte(body))
}

// Receive decodes the request body of a call into a value of type T using
// the given codec.
func Receive[T any](c *Call, cd codec.Codec[T]) (T, error) {
	defer c.Request.Body.Close()
	return cd.Decode(c.Request.Body)
}

// Respond encodes a value of type T to the response body using the given
// codec, setting the codec's content type and the status code.
func Respond[T any](c *Call, cd codec.Codec[T], status int, value T) error {
	c.writer.Header().Set("Content-Type", cd.ContentType())
	c.writer.WriteHeader(status)
	return cd.Encode(c.writer, value)
}

// statusWriter is a wrapper around http.ResponseWriter that captures the
// status code and bytes written, so the framework can tell whether a call
// has been responded to.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
	wrote  bool
}

// WriteHeader captures the status code and calls the underlying
// ResponseWriter.WriteHeader.
func (w *statusWriter) WriteHeader(status int) {
	if !w.wrote {
		w.status = status
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(status)
}

// Write captures the number of bytes written and calls the underlying
// ResponseWriter.Write.
func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wrote {
		w.status = http.StatusOK
		w.wrote = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

// Flush calls the underlying ResponseWriter.Flush if it implements
// http.Flusher. This allows streaming responses to be flushed to the client
// immediately.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
