package codec

import (
	"io"

	"google.golang.org/protobuf/proto"
)

// ProtoCodec is a codec that uses Protocol Buffers for marshaling and
// unmarshaling. The type T must be a generated message pointer type
// implementing proto.Message.
type ProtoCodec[T proto.Message] struct{}

// NewProtoCodec creates a new ProtoCodec instance for the specified message
// type.
func NewProtoCodec[T proto.Message]() *ProtoCodec[T] {
	return &ProtoCodec[T]{}
}

// ContentType returns the Protocol Buffers media type.
func (c *ProtoCodec[T]) ContentType() string {
	return "application/x-protobuf"
}

// Decode reads all of r and unmarshals it from the Protocol Buffers wire
// format into a freshly allocated message of type T.
func (c *ProtoCodec[T]) Decode(r io.Reader) (T, error) {
	var zero T
	// T is a pointer type; ProtoReflect().New() allocates a fresh message
	// even on the zero (nil) value.
	msg := zero.ProtoReflect().New().Interface()

	body, err := io.ReadAll(r)
	if err != nil {
		return zero, err
	}

	if err := proto.Unmarshal(body, msg); err != nil {
		return zero, err
	}

	return msg.(T), nil
}

// Encode marshals value to the Protocol Buffers wire format and writes it
// to w.
func (c *ProtoCodec[T]) Encode(w io.Writer, value T) error {
	body, err := proto.Marshal(value)
	if err != nil {
		return err
	}

	_, err = w.Write(body)
	return err
}
