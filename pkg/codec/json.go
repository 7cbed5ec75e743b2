package codec

import (
	"encoding/json"
	"io"
)

// JSONCodec is a codec that uses JSON for marshaling and unmarshaling.
// It implements the Codec interface for values of type T.
type JSONCodec[T any] struct{}

// NewJSONCodec creates a new JSONCodec instance for the specified type.
func NewJSONCodec[T any]() *JSONCodec[T] {
	return &JSONCodec[T]{}
}

// ContentType returns the JSON media type.
func (c *JSONCodec[T]) ContentType() string {
	return "application/json"
}

// Decode reads all of r and unmarshals it from JSON into a value of type T.
func (c *JSONCodec[T]) Decode(r io.Reader) (T, error) {
	var data T

	body, err := io.ReadAll(r)
	if err != nil {
		return data, err
	}

	err = json.Unmarshal(body, &data)
	if err != nil {
		return data, err
	}

	return data, nil
}

// Encode marshals value to JSON and writes it to w.
func (c *JSONCodec[T]) Encode(w io.Writer, value T) error {
	body, err := json.Marshal(value)
	if err != nil {
		return err
	}

	_, err = w.Write(body)
	return err
}
