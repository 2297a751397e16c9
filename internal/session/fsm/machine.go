package fsm

import "sync"

// State describes the lifecycle of a conversational turn.
type State string

const (
	// StateLiving accepts sends and inbound replies.
	StateLiving State = "living"
	// StateFinished is terminal.
	StateFinished State = "finished"
)

// Machine is a one-way Living -> Finished latch.
type Machine struct {
	mu    sync.RWMutex
	state State
}

// New creates a machine in the living state.
func New() *Machine {
	return &Machine{state: StateLiving}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Living reports whether the machine has not finished yet.
func (m *Machine) Living() bool {
	return m.State() == StateLiving
}

// Finish moves the machine to finished. It returns true only for the call
// that performed the transition.
func (m *Machine) Finish() bool {
	return m.transition(StateLiving, StateFinished)
}

func (m *Machine) transition(from, to State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != from {
		return false
	}
	m.state = to
	return true
}
