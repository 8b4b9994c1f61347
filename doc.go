// Package raft implements the core of a replicated-log library: a
// single-node replica that participates in a cluster to agree on a totally
// ordered log of opaque commands.
//
// A Node owns its log, its durable store, and its cluster configuration. It
// is driven entirely by three event sources — Tick, Receive and the local
// API (Propose, ReadIndex, TransferLeadership, AddVoter, RemoveVoter) — and
// produces effects through three callbacks configured on Config: Send,
// Apply and Snapshot. There are no background goroutines; every mutating
// call does its work, including any durable-store I/O, before it returns.
package raft
