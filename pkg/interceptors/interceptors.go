// Package interceptors provides a collection of reusable pipeline steps for
// the SPipeline framework. The steps are generic over the pipeline subject
// and are parameterized with small accessor functions, so the same
// interceptor serves the server engine, the client engine, and custom
// pipelines alike.
package interceptors

import (
	"errors"
	"time"

	"github.com/Suhaibinator/SPipeline/pkg/pipeline"
	"go.uber.org/zap"
)

var (
	// ErrRateLimited is the failure reported by the rate limit interceptor
	// when a subject exceeds its bucket and no exceeded handler is set.
	ErrRateLimited = errors.New("interceptors: rate limit exceeded")

	// ErrTimeout is the failure reported by the timeout interceptor when an
	// execution does not complete within its deadline.
	ErrTimeout = errors.New("interceptors: execution timed out")
)

// Logging returns a step that logs the outcome of the execution it runs in.
// The fields function supplies subject-specific log fields. Outcomes are
// logged at Debug level, slow executions at Warn, and failures at Error,
// with the duration measured from the moment the step ran.
func Logging[S any](logger *zap.Logger, fields func(S) []zap.Field) pipeline.Step[S] {
	return func(c *pipeline.Context[S], subject S) error {
		start := time.Now()

		c.OnFinish(func() {
			duration := time.Since(start)
			f := append(fields(c.Subject()), zap.Duration("duration", duration))
			if duration > 1*time.Second {
				logger.Warn("Slow execution", f...)
			} else {
				// Debug level to avoid log spam
				logger.Debug("Execution finished", f...)
			}
		})
		c.OnFail(func(err error) {
			f := append(fields(c.Subject()),
				zap.Error(err),
				zap.Duration("duration", time.Since(start)),
			)
			logger.Error("Execution failed", f...)
		})
		return nil
	}
}

// Recover wraps a single step so that a panic inside it is logged and
// converted into an ordinary step failure instead of propagating to the
// driver. The engine itself never recovers panics; this wrapper is the place
// to contain untrusted handler code.
func Recover[S any](logger *zap.Logger, step pipeline.Step[S]) pipeline.Step[S] {
	return func(c *pipeline.Context[S], subject S) (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("Panic recovered in step",
					zap.Any("panic", rec),
				)
				err = errors.New("panic in pipeline step")
			}
		}()
		return step(c, subject)
	}
}

// Timeout returns a step that arms a deadline for the remainder of the
// execution. When the deadline expires the abort function is invoked with
// ErrTimeout; it must hand the error to whatever is driving the execution
// (e.g. Call.Abort on the server) rather than calling Execution.Fail
// directly, since only the driver may serialize control operations.
func Timeout[S any](d time.Duration, abort func(subject S, err error)) pipeline.Step[S] {
	return func(c *pipeline.Context[S], subject S) error {
		timer := time.AfterFunc(d, func() {
			abort(subject, ErrTimeout)
		})
		c.OnFinish(func() { timer.Stop() })
		c.OnFail(func(error) { timer.Stop() })
		return nil
	}
}
