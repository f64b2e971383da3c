package hotkey

import (
	"testing"

	"github.com/go-hidswitch/go-hidproxy/internal/keycode"
)

func TestDefaultTableF1SelectsIndexZero(t *testing.T) {
	table := Default()
	c := combo(keycode.ModLeftCtrl, keycode.Usage[59]) // F1
	action, ok := table.Lookup(c)
	if !ok {
		t.Fatal("expected LeftCtrl+F1 to be bound")
	}
	if action.Kind != SetCurrent || action.Target != 0 {
		t.Errorf("LeftCtrl+F1 = %+v, want SetCurrent(0)", action)
	}
}

func TestDefaultTableF12SelectsPassThrough(t *testing.T) {
	table := Default()
	c := combo(keycode.ModLeftCtrl, keycode.Usage[88]) // F12
	action, ok := table.Lookup(c)
	if !ok {
		t.Fatal("expected LeftCtrl+F12 to be bound")
	}
	if action.Kind != SetCurrent || action.Target != -1 {
		t.Errorf("LeftCtrl+F12 = %+v, want SetCurrent(-1)", action)
	}
}

func TestDefaultTableEscEntersPairable(t *testing.T) {
	table := Default()
	c := combo(keycode.ModLeftCtrl, keycode.Usage[1]) // Esc
	action, ok := table.Lookup(c)
	if !ok {
		t.Fatal("expected LeftCtrl+Esc to be bound")
	}
	if action.Kind != EnterPairable {
		t.Errorf("LeftCtrl+Esc = %+v, want EnterPairable", action)
	}
}

func TestUnboundComboNotFound(t *testing.T) {
	table := Default()
	if _, ok := table.Lookup(combo(0, 0)); ok {
		t.Error("combo (0,0) should not be bound")
	}
}
