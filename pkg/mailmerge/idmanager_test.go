package mailmerge

import (
	"errors"
	"testing"
)

func TestRegisterIDStrAvoidsObserved(t *testing.T) {
	m := NewUniqueIDManager()
	for _, id := range []string{"rId3", "rId7", "rId2"} {
		if err := m.ObserveIDStr(id); err != nil {
			t.Fatalf("ObserveIDStr(%s): %v", id, err)
		}
	}
	id, err := m.RegisterIDStr("rId3")
	if err != nil {
		t.Fatalf("RegisterIDStr: %v", err)
	}
	if id != "rId8" {
		t.Errorf("got %s, want rId8", id)
	}
	id, err = m.RegisterIDStr("rId1")
	if err != nil {
		t.Fatalf("RegisterIDStr: %v", err)
	}
	if id != "rId9" {
		t.Errorf("got %s, want rId9", id)
	}
}

func TestRegisterIDStrSchemesAreIndependent(t *testing.T) {
	m := NewUniqueIDManager()
	rid, err := m.RegisterIDStr("rId5")
	if err != nil {
		t.Fatalf("RegisterIDStr: %v", err)
	}
	other, err := m.RegisterIDStr("pic2")
	if err != nil {
		t.Fatalf("RegisterIDStr: %v", err)
	}
	if rid != "rId6" || other != "pic3" {
		t.Errorf("got %s and %s, want rId6 and pic3", rid, other)
	}
}

func TestRegisterIDStrUnknownScheme(t *testing.T) {
	m := NewUniqueIDManager()
	for _, bad := range []string{"", "42", "rId", "rId7x"} {
		if _, err := m.RegisterIDStr(bad); err == nil {
			t.Errorf("RegisterIDStr(%q): expected error", bad)
		} else {
			var scheme *IDSchemeError
			if !errors.As(err, &scheme) {
				t.Errorf("RegisterIDStr(%q): got %T, want *IDSchemeError", bad, err)
			}
		}
	}
}

func TestRegisterIDSeeding(t *testing.T) {
	m := NewUniqueIDManager()
	if got := m.RegisterID("header", 2); got != 3 {
		t.Errorf("first: got %d, want 3", got)
	}
	if got := m.RegisterID("header", 0); got != 4 {
		t.Errorf("second: got %d, want 4", got)
	}
	// lower seed never rewinds the counter
	if got := m.RegisterID("header", 1); got != 5 {
		t.Errorf("third: got %d, want 5", got)
	}
	if got := m.RegisterID("footer", 0); got != 1 {
		t.Errorf("footer: got %d, want 1", got)
	}
}
