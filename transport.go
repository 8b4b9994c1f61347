package raft

// Transport is the out-of-scope collaborator a hosting process supplies:
// a non-blocking send capability and a receive entry-point the core
// dispatches into. The core never assumes delivery, ordering, or
// deduplication — stale responses are filtered by term and by monotonic
// match index (spec §5). Its Send method is exactly Config.SendFn's
// signature, so a Transport's Send method can be wired in directly via
// WithSendFn(t.Send).
type Transport interface {
	// Send delivers data (as produced by EncodeMessage) to peer. It must
	// not block on network I/O; queuing/backpressure is the transport's
	// job.
	Send(peer NodeID, data []byte)
}

// InmemTransport is a deterministic, synchronous, in-process Transport
// used by this module's own tests (and available to callers wiring up
// single-process clusters for testing their own integrations). It is not
// a network transport: messages are handed directly to the destination
// Node's Receive method.
//
// This mirrors the fake-network harness every lab in the example corpus
// builds for deterministic tests (labrpc-style), adapted to this core's
// synchronous Node.Receive instead of goroutine-based RPC stubs.
type InmemTransport struct {
	self  NodeID
	peers map[NodeID]*Node
	// drop, when set, reports whether a message to peer should be
	// silently discarded -- used to simulate partitions in tests.
	drop func(from, to NodeID) bool
}

// NewInmemTransport returns a Transport for self. Peers must be registered
// with Connect before Send will reach them.
func NewInmemTransport(self NodeID) *InmemTransport {
	return &InmemTransport{self: self, peers: make(map[NodeID]*Node)}
}

// Connect registers the Node reachable at peer so Send can deliver to it.
func (t *InmemTransport) Connect(peer NodeID, n *Node) {
	t.peers[peer] = n
}

// SetPartition installs a predicate controlling which (from, to) sends are
// dropped, for simulating network partitions in tests. A nil predicate
// clears any partition.
func (t *InmemTransport) SetPartition(drop func(from, to NodeID) bool) {
	t.drop = drop
}

func (t *InmemTransport) Send(peer NodeID, data []byte) {
	if t.drop != nil && t.drop(t.self, peer) {
		return
	}
	target, ok := t.peers[peer]
	if !ok {
		return
	}
	target.Receive(t.self, data)
}
