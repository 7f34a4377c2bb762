package status

import (
	"testing"
	"time"

	"github.com/tmachado/splitsync/internal/bus"
	"go.uber.org/zap"
)

func TestMachineStartsInBooting(t *testing.T) {
	m := NewMachine(nil)
	if got := m.Current(); got != Booting {
		t.Errorf("initial state = %s, want BOOTING", got)
	}
}

func TestValidTransitionPath(t *testing.T) {
	m := NewMachine(nil)

	path := []State{Idle, Draining, Offline, Reconciling, Idle, Stopped}
	for _, to := range path {
		if err := m.Transition(to); err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
		if got := m.Current(); got != to {
			t.Fatalf("state = %s, want %s", got, to)
		}
	}
}

func TestInvalidTransitionRejected(t *testing.T) {
	m := NewMachine(nil)

	// Booting cannot go straight to Draining.
	if err := m.Transition(Draining); err == nil {
		t.Error("expected error for BOOTING -> DRAINING")
	}
	if got := m.Current(); got != Booting {
		t.Errorf("state = %s after rejected transition, want BOOTING", got)
	}
}

func TestStoppedIsTerminal(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Stopped); err != nil {
		t.Fatal(err)
	}
	for _, to := range []State{Booting, Idle, Draining, Offline, Reconciling, Error} {
		if err := m.Transition(to); err == nil {
			t.Errorf("expected error for STOPPED -> %s", to)
		}
	}
}

func TestTransitionPublishesStatusChanged(t *testing.T) {
	b := bus.New(zap.NewNop())
	defer b.Close()
	m := NewMachine(b)

	ch, unsub := b.Subscribe(bus.KindIn(bus.KindStatusChanged), 8)
	defer unsub()

	if err := m.Transition(Idle); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		p := evt.Payload.(bus.StatusChanged)
		if p.From != string(Booting) || p.To != string(Idle) {
			t.Errorf("got %+v, want BOOTING -> IDLE", p)
		}
	case <-time.After(time.Second):
		t.Fatal("no status.changed event")
	}
}
