// Package store implements the three durable files a Node persists to:
// the state file (current term + vote), the log file, and the snapshot
// file. Layouts are bit-exact, little-endian and packed (spec §4.1/§6);
// every load path rejects a bad magic/version/CRC with ErrCorruption and
// a short read with ErrIO rather than guessing at recovery.
package store

import "errors"

// Sentinel errors the raft package maps onto its own Status codes. They
// are deliberately independent of package raft's error type so that store
// has no import-cycle dependency on its only caller.
var (
	ErrNotFound   = errors.New("store: not found")
	ErrCorruption = errors.New("store: corruption detected")
	ErrIO         = errors.New("store: io error")
)
