package procedure

import "sync"

// CommitGate is the shared/exclusive gate every procedure acquires on
// the shared side at Execute entry, and the checkpoint pipeline's Phase C
// quiesce acquires on the exclusive side to wait out all in-flight
// procedures before draining modified maps (spec §4.E, §4.F). A
// sync.RWMutex already provides exactly this shape: RLock for procedures,
// Lock for the quiesce step.
type CommitGate struct {
	mu sync.RWMutex
}

// NewCommitGate returns a ready-to-use gate.
func NewCommitGate() *CommitGate {
	return &CommitGate{}
}

// RLock acquires the shared side, called once per procedure execution.
func (g *CommitGate) RLock() { g.mu.RLock() }

// RUnlock releases the shared side.
func (g *CommitGate) RUnlock() { g.mu.RUnlock() }

// Lock acquires the exclusive side, blocking until every in-flight
// procedure has released its shared hold. Used only by the checkpoint
// pipeline's Phase C.
func (g *CommitGate) Lock() { g.mu.Lock() }

// Unlock releases the exclusive side.
func (g *CommitGate) Unlock() { g.mu.Unlock() }
