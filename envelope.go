package kaonavi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Envelope is the wire shape used by most endpoints: a JSON object whose single
// array-valued property holds the payload, e.g. {"member_data": [...]}.
// The property name varies by endpoint. Nil and empty Items are equivalent: both
// encode as [] and decode back as an empty, non-nil slice.
type Envelope[T any] struct {
	PropertyName string
	Items        []T
}

// NewEnvelope wraps items under the given property name.
func NewEnvelope[T any](propertyName string, items []T) Envelope[T] {
	return Envelope[T]{PropertyName: propertyName, Items: items}
}

// MarshalJSON emits an object with exactly one property. Nil Items encode as [].
func (e Envelope[T]) MarshalJSON() ([]byte, error) {
	if e.PropertyName == "" {
		return nil, argumentError("propertyName", "envelope property name must not be empty")
	}

	items := e.Items
	if items == nil {
		items = []T{}
	}

	name, err := json.Marshal(e.PropertyName)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(name) + len(payload) + 3)
	buf.WriteByte('{')
	buf.Write(name)
	buf.WriteByte(':')
	buf.Write(payload)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the envelope. A PropertyName set before decoding is used
// as the expected name; otherwise the first array-valued property wins.
func (e *Envelope[T]) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeEnvelope[T](data, e.PropertyName)
	if err != nil {
		return err
	}
	*e = decoded
	return nil
}

// DecodeEnvelope finds the array-valued property of a JSON object and decodes its
// elements as T. When property is non-empty only that name matches; otherwise the
// first array-valued property in document order is taken. Items is never nil on
// success.
func DecodeEnvelope[T any](data []byte, property string) (Envelope[T], error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return Envelope[T]{}, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return Envelope[T]{}, fmt.Errorf("%w: expected a JSON object", ErrEnvelopeNotFound)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Envelope[T]{}, err
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return Envelope[T]{}, err
		}

		if property != "" && key != property {
			continue
		}
		if !isJSONArray(raw) {
			if property != "" {
				return Envelope[T]{}, fmt.Errorf("%w: property %q is not an array", ErrEnvelopeNotFound, key)
			}
			continue
		}

		items := []T{}
		if err := json.Unmarshal(raw, &items); err != nil {
			return Envelope[T]{}, err
		}
		return Envelope[T]{PropertyName: key, Items: items}, nil
	}

	if property != "" {
		return Envelope[T]{}, fmt.Errorf("%w: property %q", ErrEnvelopeNotFound, property)
	}
	return Envelope[T]{}, ErrEnvelopeNotFound
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

// Decoder turns a response body into a T.
type Decoder[T any] func(r io.Reader) (T, error)

// Encoder turns a request payload into a body.
type Encoder[P any] func(payload P) ([]byte, error)

// JSONDecoder decodes the body directly as T.
func JSONDecoder[T any]() Decoder[T] {
	return func(r io.Reader) (T, error) {
		var v T
		err := json.NewDecoder(r).Decode(&v)
		return v, err
	}
}

// EnvelopeDecoder unwraps an envelope and returns its items. An empty property
// selects the first array-valued property.
func EnvelopeDecoder[T any](property string) Decoder[[]T] {
	return func(r io.Reader) ([]T, error) {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		env, err := DecodeEnvelope[T](data, property)
		if err != nil {
			return nil, err
		}
		return env.Items, nil
	}
}

// JSONEncoder encodes the payload directly.
func JSONEncoder[P any]() Encoder[P] {
	return func(payload P) ([]byte, error) {
		return json.Marshal(payload)
	}
}

// EnvelopeEncoder wraps the payload items under property.
func EnvelopeEncoder[T any](property string) Encoder[[]T] {
	return func(items []T) ([]byte, error) {
		return NewEnvelope(property, items).MarshalJSON()
	}
}
