// Package codec provides encoding and decoding functionality for different
// data formats. Codecs operate on plain readers and writers so that both the
// server and client engines can use them to transform pipeline subjects.
package codec

import "io"

// Codec defines an interface for marshaling and unmarshaling values of type T
// to and from a wire format. Implementations report their media type so that
// content negotiation steps can pick the right codec for a call.
type Codec[T any] interface {
	// ContentType returns the media type this codec produces and consumes,
	// e.g. "application/json".
	ContentType() string

	// Decode reads the wire format from r and deserializes it into a value
	// of type T. If deserialization fails, it returns an error.
	Decode(r io.Reader) (T, error)

	// Encode serializes value to the wire format and writes it to w.
	Encode(w io.Writer, value T) error
}
