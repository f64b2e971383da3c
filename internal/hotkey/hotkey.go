// Package hotkey recognizes modifier+key combinations typed on a relayed
// keyboard and maps them to control actions, replacing the callable-valued
// hotkey map of the original implementation with a tagged-variant
// enumeration dispatched by pattern match (spec §9).
package hotkey

import "github.com/go-hidswitch/go-hidproxy/internal/keycode"

// ActionKind distinguishes the finite set of control actions a hotkey can
// trigger.
type ActionKind int

const (
	EnterPairable ActionKind = iota
	SetCurrent
)

// Action is one hotkey's effect. Target is only meaningful for SetCurrent.
type Action struct {
	Kind   ActionKind
	Target int
}

// Dispatcher performs an Action's side effect. Satisfied by the
// composition root in production.
type Dispatcher interface {
	Dispatch(Action)
}

// Table is a static map from (modifier<<8 | usage) to Action.
type Table struct {
	combos map[uint16]Action
}

// Lookup returns the action bound to combo, if any.
func (t *Table) Lookup(combo uint16) (Action, bool) {
	a, ok := t.combos[combo]
	return a, ok
}

func combo(mod uint8, usage uint8) uint16 {
	return uint16(mod)<<8 | uint16(usage)
}

// Default builds the hotkey table documented in spec §4.4: LeftCtrl+Esc
// enters pairable mode; LeftCtrl+F1..F11 select remotes 0..10; LeftCtrl+F12
// selects pass-through (-1). Index 10, reachable only via F11, is dead for
// any user with ten or fewer remotes configured — preserved as-is per
// spec's open question.
func Default() *Table {
	t := &Table{combos: make(map[uint16]Action)}
	leftCtrl := keycode.ModLeftCtrl

	t.combos[combo(leftCtrl, keycode.Usage[1])] = Action{Kind: EnterPairable}
	fKeys := []uint16{59, 60, 61, 62, 63, 64, 65, 66, 67, 68, 87} // KEY_F1..KEY_F11
	for i, code := range fKeys {
		t.combos[combo(leftCtrl, keycode.Usage[code])] = Action{Kind: SetCurrent, Target: i}
	}
	t.combos[combo(leftCtrl, keycode.Usage[88])] = Action{Kind: SetCurrent, Target: -1} // KEY_F12
	return t
}
