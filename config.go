package raft

import (
	"fmt"
	"time"
)

// Config configures a Node (spec §6). NodeID, Peers and DataDir are the
// only required fields; everything else has a sane default via
// DefaultConfig.
type Config struct {
	NodeID NodeID   `yaml:"node_id"`
	Peers  []NodeID `yaml:"peers"` // initial voting set, including NodeID itself

	DataDir string `yaml:"data_dir"`

	ElectionTimeoutMin time.Duration `yaml:"election_timeout_min"`
	ElectionTimeoutMax time.Duration `yaml:"election_timeout_max"`
	HeartbeatInterval  time.Duration `yaml:"heartbeat_interval"`

	MaxEntriesPerAppend     int    `yaml:"max_entries_per_append"`
	AutoCompactionThreshold uint64 `yaml:"auto_compaction_threshold"`
	PreVoteEnabled          bool   `yaml:"prevote_enabled"`

	// SyncWrites controls whether durable-store writes fsync before
	// returning (spec §3: "every mutating operation that updates
	// observed safety state must return only after fsync completes
	// (when sync-writes are enabled)").
	SyncWrites bool `yaml:"sync_writes"`

	// RandSeed seeds the election-timeout RNG for deterministic tests
	// (spec §4.3). Zero means "pick a seed", which this core resolves to
	// a fixed default rather than a wall-clock seed, since the core
	// itself has no clock dependency -- callers that want varied seeds
	// across runs should set RandSeed explicitly.
	RandSeed int64 `yaml:"rand_seed"`

	// ApplyFn is invoked, in index order, exactly once per committed
	// Command entry.
	ApplyFn func(Entry) `yaml:"-"`
	// SnapshotFn produces opaque state bytes representing everything up
	// to the index passed to it. A nil SnapshotFn disables both manual
	// and automatic snapshotting.
	SnapshotFn func(upTo uint64) ([]byte, error) `yaml:"-"`
	// RestoreFn installs opaque state bytes produced by SnapshotFn (or
	// received via InstallSnapshot) back into the state machine. Called
	// during Open when a snapshot is present on disk, and again whenever
	// InstallSnapshot accepts a new snapshot (spec §4.7/§4.8).
	RestoreFn func(state []byte) error `yaml:"-"`
	// SendFn delivers an encoded message to peer. Required.
	SendFn func(peer NodeID, msg []byte) `yaml:"-"`
}

// DefaultConfig returns a Config with the spec's default timing
// parameters (§4.3/§4.7) for id within the given voting set.
func DefaultConfig(id NodeID, peers []NodeID, dataDir string) *Config {
	return &Config{
		NodeID:                  id,
		Peers:                   peers,
		DataDir:                 dataDir,
		ElectionTimeoutMin:      150 * time.Millisecond,
		ElectionTimeoutMax:      300 * time.Millisecond,
		HeartbeatInterval:       50 * time.Millisecond,
		MaxEntriesPerAppend:     64,
		AutoCompactionThreshold: 10_000,
		PreVoteEnabled:          true,
		SyncWrites:              true,
		RandSeed:                1,
	}
}

// Validate rejects the caller-contract violations described in spec §7
// (InvalidArg). It does not check ApplyFn/SendFn for nil -- a Node can be
// constructed without them, but Start requires SendFn.
func (c *Config) Validate() error {
	op := "Config.Validate"
	if c.NodeID == 0 {
		return newError(StatusInvalidArg, op, fmt.Errorf("node id must be non-zero"))
	}
	if len(c.Peers) == 0 {
		return newError(StatusInvalidArg, op, fmt.Errorf("peers must include at least this node"))
	}
	found := false
	seen := make(map[NodeID]bool, len(c.Peers))
	for _, p := range c.Peers {
		if p == 0 {
			return newError(StatusInvalidArg, op, fmt.Errorf("peer id must be non-zero"))
		}
		if seen[p] {
			return newError(StatusInvalidArg, op, fmt.Errorf("duplicate peer id %d", p))
		}
		seen[p] = true
		if p == c.NodeID {
			found = true
		}
	}
	if !found {
		return newError(StatusInvalidArg, op, fmt.Errorf("peers must include this node's id %d", c.NodeID))
	}
	if c.DataDir == "" {
		return newError(StatusInvalidArg, op, fmt.Errorf("data dir must be set"))
	}
	if c.ElectionTimeoutMin <= 0 || c.ElectionTimeoutMax < c.ElectionTimeoutMin {
		return newError(StatusInvalidArg, op, fmt.Errorf("invalid election timeout range [%s,%s]", c.ElectionTimeoutMin, c.ElectionTimeoutMax))
	}
	if c.HeartbeatInterval <= 0 {
		return newError(StatusInvalidArg, op, fmt.Errorf("heartbeat interval must be positive"))
	}
	if c.MaxEntriesPerAppend <= 0 {
		return newError(StatusInvalidArg, op, fmt.Errorf("max entries per append must be positive"))
	}
	return nil
}

// Option mutates a Config after DefaultConfig, for programmatic
// construction (mirrors the functional-option pattern the corpus uses
// for server construction).
type Option func(*Config)

func WithApplyFn(fn func(Entry)) Option { return func(c *Config) { c.ApplyFn = fn } }
func WithSnapshotFn(fn func(upTo uint64) ([]byte, error)) Option {
	return func(c *Config) { c.SnapshotFn = fn }
}
func WithSendFn(fn func(peer NodeID, msg []byte)) Option { return func(c *Config) { c.SendFn = fn } }
func WithRestoreFn(fn func(state []byte) error) Option   { return func(c *Config) { c.RestoreFn = fn } }
func WithPreVote(enabled bool) Option                    { return func(c *Config) { c.PreVoteEnabled = enabled } }
func WithSyncWrites(enabled bool) Option                 { return func(c *Config) { c.SyncWrites = enabled } }
func WithRandSeed(seed int64) Option                     { return func(c *Config) { c.RandSeed = seed } }

func (c *Config) apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
