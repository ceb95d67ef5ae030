package lambdafn

import (
	jsoniter "github.com/json-iterator/go"
)

// Serializer converts a raw record body into a typed message.
//
// Implementations must be stateless or otherwise safe for concurrent use:
// a single Serializer is shared by every worker of a parallel dispatch.
type Serializer interface {
	// Deserialize decodes raw into v, which is always a non-nil pointer.
	Deserialize(raw string, v any) error
}

// SerializerFunc adapts a function to the Serializer interface.
type SerializerFunc func(raw string, v any) error

// Deserialize implements the Serializer interface.
func (f SerializerFunc) Deserialize(raw string, v any) error {
	return f(raw, v)
}

// JSONSerializer returns the default Serializer, a generic JSON decode that
// behaves like encoding/json.
func JSONSerializer() Serializer {
	return jsonSerializer{api: jsoniter.ConfigCompatibleWithStandardLibrary}
}

type jsonSerializer struct {
	api jsoniter.API
}

func (s jsonSerializer) Deserialize(raw string, v any) error {
	return s.api.UnmarshalFromString(raw, v)
}

// validatable is the interface for payload validation.
// Compatible with github.com/go-ozzo/ozzo-validation/v4.
type validatable interface {
	Validate() error
}

// deserialize decodes raw into a T and validates it when T (or *T)
// implements Validate() error. Every failure is a *DeserializationError.
func deserialize[T any](s Serializer, raw string) (T, error) {
	var msg T
	if err := s.Deserialize(raw, &msg); err != nil {
		return msg, &DeserializationError{Err: err}
	}

	if v, ok := any(msg).(validatable); ok {
		if err := v.Validate(); err != nil {
			return msg, &DeserializationError{Err: err}
		}
	} else if v, ok := any(&msg).(validatable); ok {
		if err := v.Validate(); err != nil {
			return msg, &DeserializationError{Err: err}
		}
	}

	return msg, nil
}
