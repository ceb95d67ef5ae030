package lambdafn

import (
	"errors"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned when an invocation payload is not valid JSON.
var ErrInvalidJSON = errors.New("invalid JSON")

// Inspector examines a raw invocation payload and returns a View for cheap
// field queries, before the payload is decoded into platform events.
type Inspector interface {
	Inspect(raw []byte) (View, error)
}

// View provides format-agnostic field access for discriminator matching.
// Paths use gjson syntax, so "Records.0.eventSource" addresses the first
// record of a batch.
type View interface {
	// HasField returns true if the path exists in the payload.
	HasField(path string) bool

	// GetString returns the string value at path, or false if not found
	// or not a string.
	GetString(path string) (string, bool)

	// Len returns the number of elements of the array at path, or -1 when
	// path is missing or not an array.
	Len(path string) int
}

// JSONInspector returns an Inspector backed by gjson.
func JSONInspector() Inspector {
	return jsonInspector{}
}

type jsonInspector struct{}

func (jsonInspector) Inspect(raw []byte) (View, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidJSON
	}
	return jsonView{raw: raw}, nil
}

type jsonView struct {
	raw []byte
}

func (v jsonView) HasField(path string) bool {
	return gjson.GetBytes(v.raw, path).Exists()
}

func (v jsonView) GetString(path string) (string, bool) {
	r := gjson.GetBytes(v.raw, path)
	if !r.Exists() || r.Type != gjson.String {
		return "", false
	}
	return r.String(), true
}

func (v jsonView) Len(path string) int {
	r := gjson.GetBytes(v.raw, path)
	if !r.IsArray() {
		return -1
	}
	return len(r.Array())
}
