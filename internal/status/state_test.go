package status

import (
	"testing"

	"github.com/matheus3301/tgsift/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Booting, Connecting},
		{Booting, Error},
		{Connecting, Ready},
		{Connecting, Degraded},
		{Connecting, Error},
		{Ready, Degraded},
		{Degraded, Ready},
		{Error, Booting},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			// Walk to the "from" state.
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to, ""); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Ready, ""); err == nil {
		t.Error("Transition(BOOTING -> READY) should fail; must go through CONNECTING first")
	}
	if m.Current() != Booting {
		t.Errorf("state = %s, want BOOTING (should not have changed)", m.Current())
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("daemon.", 10)
	defer unsub()

	m := NewMachine(b)
	walkTo(t, m, Connecting)
	<-ch
	if err := m.Transition(Degraded, "cache unavailable"); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.KindStatusChanged {
		t.Errorf("event kind = %q, want %s", evt.Kind, bus.KindStatusChanged)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Connecting || change.To != Degraded || change.Reason != "cache unavailable" {
		t.Errorf("change = %+v, want CONNECTING -> DEGRADED with reason", change)
	}
	if m.Reason() != "cache unavailable" {
		t.Errorf("Reason() = %q", m.Reason())
	}
}

// TestDegradedRecovers simulates a cache outage at boot that clears later:
// BOOTING → CONNECTING → DEGRADED → READY
func TestDegradedRecovers(t *testing.T) {
	m := NewMachine(nil)

	steps := []State{Connecting, Degraded, Ready}
	for _, s := range steps {
		if err := m.Transition(s, ""); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if m.Current() != Ready {
		t.Errorf("final state = %s, want READY", m.Current())
	}
}

// TestErrorRequiresReboot verifies ERROR only leads back to BOOTING.
func TestErrorRequiresReboot(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Error)

	if err := m.Transition(Ready, ""); err == nil {
		t.Fatal("ERROR -> READY should fail")
	}
	if err := m.Transition(Booting, ""); err != nil {
		t.Fatalf("ERROR -> BOOTING: %v", err)
	}
}

// walkTo is a helper that transitions the machine to a target state.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Booting:    {},
		Connecting: {Connecting},
		Ready:      {Connecting, Ready},
		Degraded:   {Connecting, Degraded},
		Error:      {Error},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s, ""); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
