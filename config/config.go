package config

import (
	"os"
	"path/filepath"
	"strings"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/mezonai/textchain/logx"
)

// Default returns a config that runs a node on a random local port.
func Default() *NodeConfig {
	return &NodeConfig{
		ListenAddrs:   []string{DefaultListenAddr},
		Topic:         DefaultTopic,
		ServiceTag:    DefaultServiceTag,
		PeerTTLSec:    DefaultPeerTTLSec,
		PublishWaitMs: DefaultPublishWaitMs,
		LogDelayMs:    DefaultLogDelayMs,
	}
}

// Load reads path on top of Default. The format follows the extension:
// .yml/.yaml for yaml, anything else for ini. An empty path returns Default.
func Load(path string) (*NodeConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		err = loadYAML(path, cfg)
	default:
		err = loadINI(path, cfg)
	}
	if err != nil {
		return nil, err
	}
	logx.Info("CONFIG", "Loaded config from ", path)
	return cfg, nil
}

func loadINI(path string, cfg *NodeConfig) error {
	file, err := ini.Load(path)
	if err != nil {
		return errors.Wrapf(err, "failed to load ini config %s", path)
	}
	if err := file.Section(iniSection).MapTo(cfg); err != nil {
		return errors.Wrapf(err, "failed to map [%s] section of %s", iniSection, path)
	}
	return nil
}

func loadYAML(path string, cfg *NodeConfig) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open yaml config %s", path)
	}
	defer file.Close()

	cfgFile := ConfigFile{Node: *cfg}
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfgFile); err != nil {
		return errors.Wrapf(err, "failed to decode yaml config %s", path)
	}
	*cfg = cfgFile.Node
	return nil
}

// Validate rejects configs the network layer cannot start with.
func (c *NodeConfig) Validate() error {
	if len(c.ListenAddrs) == 0 {
		return errors.New("at least one listen address is required")
	}
	for _, addr := range c.ListenAddrs {
		if _, err := ma.NewMultiaddr(strings.TrimSpace(addr)); err != nil {
			return errors.Wrapf(err, "invalid listen address %q", addr)
		}
	}
	for _, addr := range c.StaticPeers {
		if _, err := ma.NewMultiaddr(strings.TrimSpace(addr)); err != nil {
			return errors.Wrapf(err, "invalid static peer %q", addr)
		}
	}
	if strings.TrimSpace(c.Topic) == "" {
		return errors.New("topic must not be empty")
	}
	if strings.TrimSpace(c.ServiceTag) == "" {
		return errors.New("service tag must not be empty")
	}
	if c.LogDelayMs < 0 {
		return errors.Errorf("log delay must not be negative, got %d", c.LogDelayMs)
	}
	if c.PeerTTLSec <= 0 {
		return errors.Errorf("peer ttl must be positive, got %d", c.PeerTTLSec)
	}
	if c.PublishWaitMs < 0 {
		return errors.Errorf("publish wait must not be negative, got %d", c.PublishWaitMs)
	}
	return nil
}
