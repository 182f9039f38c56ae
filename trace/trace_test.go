package trace

import "testing"

func TestInitTogglesEnabled(t *testing.T) {
	Init(true, "info")
	if !Enabled() {
		t.Error("tracing should be on after Init(true)")
	}

	// unknown levels must not disable tracing
	Init(true, "bogus")
	if !Enabled() {
		t.Error("unknown level should fall back, not disable")
	}

	Init(false, "")
	if Enabled() {
		t.Error("tracing should be off after Init(false)")
	}
}

func TestTurnIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := TurnID()
		if id == "" {
			t.Fatal("empty turn id")
		}
		if seen[id] {
			t.Fatalf("duplicate turn id %q", id)
		}
		seen[id] = true
	}
}
