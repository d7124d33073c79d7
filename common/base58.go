package common

import (
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// EncodeBytesToBase58 encodes bytes directly to base58
func EncodeBytesToBase58(bytes []byte) string {
	return base58.Encode(bytes)
}

// DecodeBase58ToBytes decodes a base58 string to bytes. Surrounding
// whitespace, such as the trailing newline of a key file, is ignored.
func DecodeBase58ToBytes(base58Str string) ([]byte, error) {
	bytes, err := base58.Decode(strings.TrimSpace(base58Str))
	if err != nil {
		return nil, fmt.Errorf("failed to decode base58 string: %w", err)
	}
	if len(bytes) == 0 {
		return nil, fmt.Errorf("failed to decode base58 string: empty input")
	}
	return bytes, nil
}

// IsValidBase58 checks if a string is valid base58
func IsValidBase58(str string) bool {
	decoded, err := base58.Decode(str)
	return err == nil && len(decoded) > 0
}
