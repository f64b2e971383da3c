package keycode

import "testing"

func TestModifierDisjointFromUsage(t *testing.T) {
	for code := range Modifier {
		if _, ok := Usage[code]; ok {
			t.Errorf("evdev code %d present in both Modifier and Usage tables", code)
		}
	}
}

func TestKnownMappings(t *testing.T) {
	cases := []struct {
		code  uint16
		usage uint8
	}{
		{30, 4},  // KEY_A -> 'a'
		{57, 44}, // KEY_SPACE
		{59, 58}, // KEY_F1
	}
	for _, c := range cases {
		got, ok := Usage[c.code]
		if !ok {
			t.Fatalf("code %d missing from Usage table", c.code)
		}
		if got != c.usage {
			t.Errorf("Usage[%d] = %d, want %d", c.code, got, c.usage)
		}
	}
}

func TestModifierBits(t *testing.T) {
	if Modifier[29] != ModLeftCtrl {
		t.Errorf("evdev LeftCtrl (29) should map to ModLeftCtrl")
	}
	if Modifier[54] != ModRightShift {
		t.Errorf("evdev RightShift (54) should map to ModRightShift")
	}
}
