package interceptors

import (
	"github.com/Suhaibinator/SPipeline/pkg/pipeline"
	"github.com/google/uuid"
)

// TraceID returns a step that generates a unique trace ID and hands it to
// the assign function, which stores it on the subject. This allows one
// execution to be traced across logs.
func TraceID[S any](assign func(subject S, traceID string)) pipeline.Step[S] {
	return func(c *pipeline.Context[S], subject S) error {
		assign(subject, uuid.New().String())
		return nil
	}
}
