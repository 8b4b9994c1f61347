// Package config loads a raft.Config from a YAML file on disk, the form a
// hosting process typically ships alongside its binary rather than
// building a Config by hand (spec §6).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	raft "github.com/first-principles-cs/consensus"
)

// fileConfig mirrors raft.Config's yaml-tagged fields, except that the
// three timing fields are read as integer milliseconds under
// *_ms keys (election_timeout_min_ms, election_timeout_max_ms,
// heartbeat_interval_ms). It exists separately so that raft.Config's
// callback fields (which carry no yaml tag and can't be decoded) never
// need special-casing in the decoder.
type fileConfig struct {
	NodeID uint64   `yaml:"node_id"`
	Peers  []uint64 `yaml:"peers"`

	DataDir string `yaml:"data_dir"`

	ElectionTimeoutMinMs int `yaml:"election_timeout_min_ms"`
	ElectionTimeoutMaxMs int `yaml:"election_timeout_max_ms"`
	HeartbeatIntervalMs  int `yaml:"heartbeat_interval_ms"`

	MaxEntriesPerAppend     int    `yaml:"max_entries_per_append"`
	AutoCompactionThreshold uint64 `yaml:"auto_compaction_threshold"`
	PreVoteEnabled          *bool  `yaml:"prevote_enabled"`
	SyncWrites              *bool  `yaml:"sync_writes"`
	RandSeed                int64  `yaml:"rand_seed"`
}

// Load reads path as YAML and returns a *raft.Config with the parsed
// fields layered over raft.DefaultConfig's timing defaults. Callback
// fields (ApplyFn, SnapshotFn, RestoreFn, SendFn) are never set here; the
// caller must attach them with raft.Option after Load returns.
func Load(path string) (*raft.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	peers := make([]raft.NodeID, len(fc.Peers))
	for i, p := range fc.Peers {
		peers[i] = raft.NodeID(p)
	}
	cfg := raft.DefaultConfig(raft.NodeID(fc.NodeID), peers, fc.DataDir)

	if fc.ElectionTimeoutMinMs > 0 {
		cfg.ElectionTimeoutMin = time.Duration(fc.ElectionTimeoutMinMs) * time.Millisecond
	}
	if fc.ElectionTimeoutMaxMs > 0 {
		cfg.ElectionTimeoutMax = time.Duration(fc.ElectionTimeoutMaxMs) * time.Millisecond
	}
	if fc.HeartbeatIntervalMs > 0 {
		cfg.HeartbeatInterval = time.Duration(fc.HeartbeatIntervalMs) * time.Millisecond
	}
	if fc.MaxEntriesPerAppend > 0 {
		cfg.MaxEntriesPerAppend = fc.MaxEntriesPerAppend
	}
	if fc.AutoCompactionThreshold > 0 {
		cfg.AutoCompactionThreshold = fc.AutoCompactionThreshold
	}
	if fc.PreVoteEnabled != nil {
		cfg.PreVoteEnabled = *fc.PreVoteEnabled
	}
	if fc.SyncWrites != nil {
		cfg.SyncWrites = *fc.SyncWrites
	}
	if fc.RandSeed != 0 {
		cfg.RandSeed = fc.RandSeed
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}
