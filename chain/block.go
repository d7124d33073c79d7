package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/mezonai/textchain/jsonx"
)

// GenesisPrevious is the link of a block that starts a chain. It has the
// width of a hex SHA-256 digest.
var GenesisPrevious = strings.Repeat(" ", sha256.Size*2)

// Block is the atomic ledger unit. Field order matters: it is the canonical
// encoding that Hash digests.
type Block struct {
	Previous string `json:"previous"`
	Text     string `json:"text"`
}

// Hash returns the lowercase hex SHA-256 of the block's canonical JSON.
func Hash(b Block) string {
	// Two plain strings always encode.
	data, _ := jsonx.MarshalCanonical(b)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// IsGenesis reports whether b carries the genesis link.
func (b Block) IsGenesis() bool {
	return b.Previous == GenesisPrevious
}

// Build makes the candidate block that would extend c with text. c is not
// modified.
func Build(c *Chain, text string) Block {
	previous := GenesisPrevious
	if last, ok := c.Last(); ok {
		previous = Hash(last)
	}
	return Block{
		Previous: previous,
		Text:     text,
	}
}
