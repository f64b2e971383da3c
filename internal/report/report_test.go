package report

import (
	"bytes"
	"testing"
)

func TestKeyboardToWire(t *testing.T) {
	var k Keyboard
	k.Modifier = 0x02
	k.SetKey(0x04)
	got := k.ToWire()
	want := []byte{0xA1, 0x01, 0x02, 0x00, 0x04, 0, 0, 0, 0, 0}
	if !bytes.Equal(got, want) {
		t.Errorf("ToWire() = % x, want % x", got, want)
	}
}

func TestKeyboardSetClearRoundTrip(t *testing.T) {
	var k Keyboard
	if !k.SetKey(0x04) {
		t.Fatal("SetKey should succeed on an empty report")
	}
	if k.Idle() {
		t.Error("report should not be idle after SetKey")
	}
	k.ClearKey(0x04)
	if !k.Idle() {
		t.Error("report should be idle after clearing the only key")
	}
}

func TestKeyboardSixSlotLimit(t *testing.T) {
	var k Keyboard
	for i := uint8(1); i <= 6; i++ {
		if !k.SetKey(i) {
			t.Fatalf("slot %d should have been free", i)
		}
	}
	if k.SetKey(7) {
		t.Error("SetKey should fail once all six slots are occupied")
	}
}

func TestMouseToWire(t *testing.T) {
	m := Mouse{Buttons: 1, DX: 3, DY: -4, Wheel: 0}
	got := m.ToWire()
	want := []byte{0xA1, 0x02, 0x01, 0x03, 0xFC, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("ToWire() = % x, want % x", got, want)
	}
}

func TestClamp8(t *testing.T) {
	cases := []struct {
		in   float64
		want int8
	}{
		{0, 0},
		{200, 127},
		{-200, -127},
		{126.9, 126},
	}
	for _, c := range cases {
		if got := Clamp8(c.in); got != c.want {
			t.Errorf("Clamp8(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}
