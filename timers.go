package raft

import "math/rand"

// timers tracks the two virtual-clock counters spec §4.3 describes. Time
// advances only via Tick(elapsedMs); there is no wall-clock dependency.
type timers struct {
	rng *rand.Rand

	electionTimeoutMinMs int
	electionTimeoutMaxMs int
	heartbeatIntervalMs  int

	electionDeadlineMs int // randomized target for the current cycle
	electionElapsedMs  int
	heartbeatElapsedMs int
}

func newTimers(cfg *Config) *timers {
	seed := cfg.RandSeed
	if seed == 0 {
		seed = 1
	}
	t := &timers{
		rng:                  rand.New(rand.NewSource(seed)),
		electionTimeoutMinMs: int(cfg.ElectionTimeoutMin.Milliseconds()),
		electionTimeoutMaxMs: int(cfg.ElectionTimeoutMax.Milliseconds()),
		heartbeatIntervalMs:  int(cfg.HeartbeatInterval.Milliseconds()),
	}
	t.resetElection()
	return t
}

func (t *timers) resetElection() {
	lo, hi := t.electionTimeoutMinMs, t.electionTimeoutMaxMs
	if hi <= lo {
		t.electionDeadlineMs = lo
	} else {
		t.electionDeadlineMs = lo + t.rng.Intn(hi-lo+1)
	}
	t.electionElapsedMs = 0
}

func (t *timers) resetHeartbeat() {
	t.heartbeatElapsedMs = 0
}

// advance moves the virtual clock forward by elapsedMs and reports
// whether each timer fired. Both may fire in the same call.
func (t *timers) advance(elapsedMs int) (electionExpired, heartbeatExpired bool) {
	t.electionElapsedMs += elapsedMs
	if t.electionElapsedMs >= t.electionDeadlineMs {
		electionExpired = true
	}
	t.heartbeatElapsedMs += elapsedMs
	if t.heartbeatIntervalMs > 0 && t.heartbeatElapsedMs >= t.heartbeatIntervalMs {
		heartbeatExpired = true
	}
	return
}
