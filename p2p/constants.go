package p2p

import "time"

const (
	DefaultTopic      = "text"
	DefaultListenAddr = "/ip4/0.0.0.0/tcp/0"

	// PeerIDLength is the printed length of an Ed25519 libp2p peer id
	// (12D3KooW...). Console input of exactly this length is treated as a peer id.
	PeerIDLength = 52

	DefaultPublishWait = 5 * time.Second

	eventBufferSize   = 256
	dialTimeout       = 10 * time.Second
	topicPollInterval = 50 * time.Millisecond
)
