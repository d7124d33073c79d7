package config

import "time"

// NodeConfig holds everything needed to start a node. Field tags cover both
// the ini [node] section and the yaml node: block.
type NodeConfig struct {
	ListenAddrs   []string `ini:"listen" delim:"," yaml:"listen"`
	Topic         string   `ini:"topic" yaml:"topic"`
	ServiceTag    string   `ini:"service_tag" yaml:"service_tag"`
	StaticPeers   []string `ini:"static_peers" delim:"," yaml:"static_peers"`
	DisableMDNS   bool     `ini:"disable_mdns" yaml:"disable_mdns"`
	KeyFile       string   `ini:"key_file" yaml:"key_file"`
	PeerTTLSec    int      `ini:"peer_ttl_sec" yaml:"peer_ttl_sec"`
	PublishWaitMs int      `ini:"publish_wait_ms" yaml:"publish_wait_ms"`
	LogDelayMs    int      `ini:"log_delay_ms" yaml:"log_delay_ms"`
	LogFile       string   `ini:"log_file" yaml:"log_file"`
	LogMaxSizeMB  int      `ini:"log_max_size_mb" yaml:"log_max_size_mb"`
	LogMaxAgeDays int      `ini:"log_max_age_days" yaml:"log_max_age_days"`
	MetricsAddr   string   `ini:"metrics_addr" yaml:"metrics_addr"`
}

// ConfigFile is the top-level structure of a yaml config.
type ConfigFile struct {
	Node NodeConfig `yaml:"node"`
}

func (c *NodeConfig) LogDelay() time.Duration {
	return time.Duration(c.LogDelayMs) * time.Millisecond
}

func (c *NodeConfig) PeerTTL() time.Duration {
	return time.Duration(c.PeerTTLSec) * time.Second
}

func (c *NodeConfig) PublishWait() time.Duration {
	return time.Duration(c.PublishWaitMs) * time.Millisecond
}
