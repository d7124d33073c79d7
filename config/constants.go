package config

const (
	DefaultListenAddr    = "/ip4/0.0.0.0/tcp/0"
	DefaultTopic         = "text"
	DefaultServiceTag    = "textchain"
	DefaultLogDelayMs    = 400
	DefaultPeerTTLSec    = 300
	DefaultPublishWaitMs = 5000

	iniSection = "node"
)
