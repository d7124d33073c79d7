package chain

import (
	"errors"
	"fmt"

	"github.com/mezonai/textchain/logx"
	"github.com/mezonai/textchain/monitoring"
)

var ErrBrokenLink = errors.New("chain: block does not link to its predecessor")

// Chain is an append-only list of blocks. It is not safe for concurrent use;
// the node's event loop owns it.
type Chain struct {
	blocks []Block
}

func New(blocks ...Block) *Chain {
	c := &Chain{}
	c.blocks = append(c.blocks, blocks...)
	return c
}

func (c *Chain) Len() int {
	return len(c.blocks)
}

func (c *Chain) Last() (Block, bool) {
	if len(c.blocks) == 0 {
		return Block{}, false
	}
	return c.blocks[len(c.blocks)-1], true
}

// Blocks returns a copy of the chain contents.
func (c *Chain) Blocks() []Block {
	out := make([]Block, len(c.blocks))
	copy(out, c.blocks)
	return out
}

// Push appends b when the chain is empty or when b links to the current tip.
// Anything else is dropped silently. The resulting chain is traced either way.
func (c *Chain) Push(b Block) bool {
	accepted := false
	if last, ok := c.Last(); !ok || Hash(last) == b.Previous {
		c.blocks = append(c.blocks, b)
		accepted = true
	} else {
		monitoring.IncreaseRejectedBlocks()
	}
	monitoring.SetChainLength(len(c.blocks))

	c.Print()
	return accepted
}

// Replace swaps the whole chain for blocks when blocks is strictly longer.
// The incoming linkage is not checked.
func (c *Chain) Replace(blocks []Block) bool {
	if len(blocks) <= len(c.blocks) {
		return false
	}
	c.blocks = make([]Block, len(blocks))
	copy(c.blocks, blocks)

	monitoring.IncreaseChainReplacements()
	monitoring.SetChainLength(len(c.blocks))
	return true
}

// Validate walks the chain and reports the first block that does not link to
// its predecessor. Genesis may carry any link.
func (c *Chain) Validate() error {
	for i := 1; i < len(c.blocks); i++ {
		if Hash(c.blocks[i-1]) != c.blocks[i].Previous {
			return fmt.Errorf("%w: index %d", ErrBrokenLink, i)
		}
	}
	return nil
}

// Print logs the chain one block per line.
func (c *Chain) Print() {
	for i, b := range c.blocks {
		logx.Info("CHAIN", fmt.Sprintf("#%d %+v", i, b))
	}
}
