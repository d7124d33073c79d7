package jsonx

import (
	jsoniter "github.com/json-iterator/go"
)

var jsonx = jsoniter.ConfigCompatibleWithStandardLibrary

// canonical keeps struct field order and leaves <, > and & unescaped so the
// same value always produces the same bytes for hashing.
var canonical = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

func Marshal(v interface{}) ([]byte, error) {
	return jsonx.Marshal(v)
}

func Unmarshal(data []byte, v interface{}) error {
	return jsonx.Unmarshal(data, v)
}

// MarshalCanonical encodes v deterministically. Use it for anything that is
// fed to a hash function.
func MarshalCanonical(v interface{}) ([]byte, error) {
	return canonical.Marshal(v)
}
