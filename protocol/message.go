package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mezonai/textchain/chain"
	"github.com/mezonai/textchain/jsonx"
)

var ErrUnknownMessage = errors.New("protocol: unknown message")

type MessageType string

const (
	TypeBlock  MessageType = "block"
	TypeLetter MessageType = "letter"
)

// Message is either a BlockMessage or a Letter.
type Message interface {
	Type() MessageType
	envelope() envelope
}

// envelope is the wire form: a type tag plus exactly one populated body.
type envelope struct {
	Type   MessageType  `json:"type"`
	Block  *chain.Block `json:"block,omitempty"`
	Letter *Letter      `json:"letter,omitempty"`
}

// BlockMessage carries a single freshly built block.
type BlockMessage struct {
	Block chain.Block
}

func (m BlockMessage) Type() MessageType { return TypeBlock }

func (m BlockMessage) envelope() envelope {
	b := m.Block
	return envelope{Type: TypeBlock, Block: &b}
}

// Letter is a sync request (Request true, Chain empty) or a sync response
// (Request false, Chain populated, Receiver is the requester).
type Letter struct {
	Chain    []chain.Block `json:"chain"`
	Receiver string        `json:"receiver"`
	Request  bool          `json:"request"`
}

func (l Letter) Type() MessageType { return TypeLetter }

func (l Letter) envelope() envelope {
	if l.Chain == nil {
		l.Chain = []chain.Block{}
	}
	return envelope{Type: TypeLetter, Letter: &l}
}

// NewRequest asks receiver for its chain. An empty receiver lets any peer
// answer.
func NewRequest(receiver string) Letter {
	return Letter{
		Chain:    []chain.Block{},
		Receiver: receiver,
		Request:  true,
	}
}

// NewResponse answers receiver with a snapshot of c.
func NewResponse(c *chain.Chain, receiver string) Letter {
	return Letter{
		Chain:    c.Blocks(),
		Receiver: receiver,
		Request:  false,
	}
}

// AddressedTo reports whether self should act on the letter. Requests with a
// blank receiver are open to everyone; responses must name self.
func (l Letter) AddressedTo(self string) bool {
	if l.Request && strings.TrimSpace(l.Receiver) == "" {
		return true
	}
	return l.Receiver == self
}

func (l Letter) String() string {
	return fmt.Sprintf("Letter{request:%t receiver:%q chain:%d blocks}", l.Request, l.Receiver, len(l.Chain))
}

func Encode(m Message) ([]byte, error) {
	return jsonx.Marshal(m.envelope())
}

// Decode reads one wire message. Payloads without a known tag, or whose tag
// does not match the populated body, yield ErrUnknownMessage.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := jsonx.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownMessage, err)
	}

	switch env.Type {
	case TypeBlock:
		if env.Block == nil || env.Letter != nil {
			return nil, fmt.Errorf("%w: block tag without block body", ErrUnknownMessage)
		}
		return BlockMessage{Block: *env.Block}, nil
	case TypeLetter:
		if env.Letter == nil || env.Block != nil {
			return nil, fmt.Errorf("%w: letter tag without letter body", ErrUnknownMessage)
		}
		return *env.Letter, nil
	default:
		return nil, fmt.Errorf("%w: type %q", ErrUnknownMessage, env.Type)
	}
}
