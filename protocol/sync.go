package protocol

import (
	"errors"
	"fmt"

	"github.com/mezonai/textchain/chain"
	"github.com/mezonai/textchain/logx"
	"github.com/mezonai/textchain/monitoring"
)

// Outbox queues letters for the event loop to publish. Handlers never publish
// directly.
type Outbox interface {
	Push(Letter) error
}

// Outcome says what a handled message did to local state.
type Outcome int

const (
	Ignored Outcome = iota
	Appended
	Rejected
	Answered
	Replaced
	Kept
)

func (o Outcome) String() string {
	switch o {
	case Appended:
		return "appended"
	case Rejected:
		return "rejected"
	case Answered:
		return "answered"
	case Replaced:
		return "replaced"
	case Kept:
		return "kept"
	default:
		return "ignored"
	}
}

// Handler applies inbound broadcast messages to the chain owned by the caller.
type Handler struct {
	Self   string
	Outbox Outbox
}

func NewHandler(self string, outbox Outbox) *Handler {
	return &Handler{
		Self:   self,
		Outbox: outbox,
	}
}

// Handle decodes data received from peer `from` and dispatches it.
func (h *Handler) Handle(c *chain.Chain, from string, data []byte) Outcome {
	msg, err := Decode(data)
	if err != nil {
		monitoring.IncreaseIgnoredMessages()
		return Ignored
	}
	logx.Info("PROTOCOL", "Received message from peer: ", from)

	switch m := msg.(type) {
	case BlockMessage:
		return h.HandleBlock(c, m.Block)
	case Letter:
		return h.HandleLetter(c, from, m)
	}
	return Ignored
}

func (h *Handler) HandleBlock(c *chain.Chain, b chain.Block) Outcome {
	monitoring.RecordReceived(monitoring.MessageBlock)
	logx.Info("PROTOCOL", fmt.Sprintf("%+v", b))

	if c.Push(b) {
		return Appended
	}
	return Rejected
}

func (h *Handler) HandleLetter(c *chain.Chain, from string, l Letter) Outcome {
	monitoring.RecordReceived(monitoring.MessageLetter)
	logx.Info("PROTOCOL", "Received letter: ", l.String())

	if !l.AddressedTo(h.Self) {
		return Ignored
	}

	if l.Request {
		if err := h.enqueue(NewResponse(c, from)); err != nil {
			return Ignored
		}
		return Answered
	}

	if !c.Replace(l.Chain) {
		return Kept
	}
	if err := c.Validate(); err != nil {
		logx.Warn("PROTOCOL", "Adopted chain is not fully linked: ", err)
	}
	c.Print()
	return Replaced
}

// RequestOnDial asks a peer we just started dialing for its chain, but only
// while we have nothing of our own.
func (h *Handler) RequestOnDial(c *chain.Chain, peerID string) bool {
	if c.Len() != 0 {
		return false
	}
	return h.enqueue(NewRequest(peerID)) == nil
}

func (h *Handler) enqueue(l Letter) error {
	if h.Outbox == nil {
		err := errors.New("protocol: no outbox configured")
		logx.Error("PROTOCOL", err)
		return err
	}
	if err := h.Outbox.Push(l); err != nil {
		logx.Error("PROTOCOL", "Failed to queue letter: ", err)
		return err
	}
	return nil
}
