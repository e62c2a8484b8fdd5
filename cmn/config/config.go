// Package config loads the controller's static configuration: its own
// identity, the cid->shard assignment map known to every peer (§3), and
// the read-mostly timing knobs referenced throughout the core (§4, §5).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Timing holds the read-mostly durations that gate the orchestrator's
// loops. Assigned once at startup (or on SIGHUP reload) rather than
// threaded through every call, mirroring how AIStore's cmn.Rom avoids
// per-call config lookups on hot paths.
type Timing struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"` // §4.4: default 1s
	PeerTimeout       time.Duration `yaml:"peer_timeout"`       // §4.4: default 10s
	DebounceWindow    time.Duration `yaml:"debounce_window"`    // §4.6: default 1s
	PullInterval      time.Duration `yaml:"pull_interval"`      // §5: default 5s
	PullWarmup        time.Duration `yaml:"pull_warmup"`        // §5: default 20s
	ShutdownGrace     time.Duration `yaml:"shutdown_grace"`     // §5: default 2s
	ReinstallDelay    time.Duration `yaml:"reinstall_delay"`    // §7: default 5s
}

func DefaultTiming() Timing {
	return Timing{
		HeartbeatInterval: time.Second,
		PeerTimeout:       10 * time.Second,
		DebounceWindow:    time.Second,
		PullInterval:      5 * time.Second,
		PullWarmup:        20 * time.Second,
		ShutdownGrace:     2 * time.Second,
		ReinstallDelay:    5 * time.Second,
	}
}

// Config is the cid->shard map plus cluster-wide constants, shared
// verbatim by every controller (§3: "a static configuration map cid ->
// {dpid} known to every peer").
type Config struct {
	Shards         map[int16][]uint64 `yaml:"shards"`
	HostAccessPort uint16             `yaml:"host_access_port"` // §4.5: well-known access port, default 1
	CoordinatorURL string             `yaml:"coordinator_url,omitempty"`
	Timing         Timing             `yaml:"timing,omitempty"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: read %q", path)
	}
	cfg := &Config{HostAccessPort: 1, Timing: DefaultTiming()}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrapf(err, "config: parse %q", path)
	}
	if cfg.HostAccessPort == 0 {
		cfg.HostAccessPort = 1
	}
	zero := Timing{}
	if cfg.Timing == zero {
		cfg.Timing = DefaultTiming()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	seen := make(map[uint64]int16, len(c.Shards)*4)
	for cid, dpids := range c.Shards {
		for _, dpid := range dpids {
			if owner, dup := seen[dpid]; dup {
				return errors.Errorf("config: dpid %016X claimed by both cid %d and cid %d", dpid, owner, cid)
			}
			seen[dpid] = cid
		}
	}
	return nil
}

// OwnerOf returns the cid that owns dpid per the static shard map, and
// whether any cid claims it at all.
func (c *Config) OwnerOf(dpid uint64) (int16, bool) {
	for cid, dpids := range c.Shards {
		for _, d := range dpids {
			if d == dpid {
				return cid, true
			}
		}
	}
	return 0, false
}

// Shard returns the set of dpids cid owns.
func (c *Config) Shard(cid int16) []uint64 { return c.Shards[cid] }
