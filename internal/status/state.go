package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/tmachado/splitsync/internal/bus"
)

// State represents the sync engine's runtime state.
type State string

const (
	Booting     State = "BOOTING"
	Idle        State = "IDLE"
	Draining    State = "DRAINING"
	Offline     State = "OFFLINE"
	Reconciling State = "RECONCILING"
	Error       State = "ERROR"
	Stopped     State = "STOPPED"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Booting:     {Reconciling, Idle, Error, Stopped},
	Idle:        {Draining, Reconciling, Error, Stopped},
	Draining:    {Idle, Offline, Error, Stopped},
	Offline:     {Draining, Reconciling, Error, Stopped},
	Reconciling: {Idle, Offline, Error, Stopped},
	Error:       {Booting, Stopped},
	Stopped:     {},
}

// Machine tracks and enforces sync runtime state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Booting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Booting,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.StatusChanged{
			From: string(from),
			To:   string(to),
		})
	}
	return nil
}
