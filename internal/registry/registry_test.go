package registry

import (
	"testing"

	"github.com/go-hidswitch/go-hidproxy/internal/config"
	"github.com/go-hidswitch/go-hidproxy/internal/l2cap"
)

type fakeConnector struct {
	connected []string
	fail      bool
}

func (f *fakeConnector) ConnectControl(address string) error {
	f.connected = append(f.connected, address)
	return nil
}

type fakeGrabber struct{ grabbed []bool }

func (f *fakeGrabber) SetGrab(on bool) { f.grabbed = append(f.grabbed, on) }

type fakeLEDs struct{ values []uint8 }

func (f *fakeLEDs) SetLEDsAll(v uint8) { f.values = append(f.values, v) }

func newTestRegistry() (*Registry, *fakeConnector, *fakeGrabber, *fakeLEDs) {
	c := &fakeConnector{}
	g := &fakeGrabber{}
	l := &fakeLEDs{}
	return New(nil, c, g, l), c, g, l
}

func TestGetOrCreateAllocatesSmallestFreeIndex(t *testing.T) {
	reg, _, _, _ := newTestRegistry()
	r0 := reg.GetOrCreate("aa:aa:aa:aa:aa:aa")
	r1 := reg.GetOrCreate("bb:bb:bb:bb:bb:bb")
	if r0.Index != 0 || r1.Index != 1 {
		t.Fatalf("got indices %d, %d, want 0, 1", r0.Index, r1.Index)
	}
	// Re-fetching the same address returns the same entry, not a new one.
	again := reg.GetOrCreate("aa:aa:aa:aa:aa:aa")
	if again != r0 {
		t.Error("GetOrCreate should return the existing entry for a known address")
	}
}

func TestNoTwoEntriesShareIndexOrAddress(t *testing.T) {
	reg, _, _, _ := newTestRegistry()
	addrs := []string{"a", "b", "c", "d"}
	seen := map[int]bool{}
	for _, a := range addrs {
		r := reg.GetOrCreate(a)
		if seen[r.Index] {
			t.Fatalf("index %d reused", r.Index)
		}
		seen[r.Index] = true
	}
	if got := len(reg.All()); got != len(addrs) {
		t.Errorf("expected one entry per address, got %d entries for %d addresses", got, len(addrs))
	}
}

func TestStateDerivation(t *testing.T) {
	r := &Remote{}
	if r.State() != Disconnected {
		t.Errorf("empty remote should be Disconnected, got %s", r.State())
	}
	r.SetControl(&l2cap.Socket{})
	if r.State() != Connecting {
		t.Errorf("one socket should be Connecting, got %s", r.State())
	}
	r.SetInterrupt(&l2cap.Socket{})
	if r.State() != Connected {
		t.Errorf("both sockets should be Connected, got %s", r.State())
	}
	r.Control = nil
	r.noteSocketChange()
	if r.State() != Disconnecting {
		t.Errorf("one socket remaining after having been connected should be Disconnecting, got %s", r.State())
	}
	r.Interrupt = nil
	r.noteSocketChange()
	if r.State() != Disconnected {
		t.Errorf("no sockets should be Disconnected, got %s", r.State())
	}
}

func TestSetCurrentIdempotent(t *testing.T) {
	reg, conn, grab, leds := newTestRegistry()
	reg.GetOrCreate("aa:aa:aa:aa:aa:aa")

	if err := reg.SetCurrent(None); err != nil {
		t.Fatal(err)
	}
	// Already None -> None is a no-op: no grab toggles, no led calls.
	if len(grab.grabbed) != 0 || len(leds.values) != 0 || len(conn.connected) != 0 {
		t.Errorf("SetCurrent to the same value should be a no-op, got grab=%v leds=%v conn=%v", grab.grabbed, leds.values, conn.connected)
	}
}

func TestSetCurrentUnknownIndexFails(t *testing.T) {
	reg, _, _, _ := newTestRegistry()
	if err := reg.SetCurrent(5); err == nil {
		t.Error("expected error selecting an unknown index")
	}
}

func TestSetCurrentGrabTransitions(t *testing.T) {
	reg, _, grab, _ := newTestRegistry()
	reg.GetOrCreate("aa:aa:aa:aa:aa:aa")

	if err := reg.SetCurrent(0); err != nil {
		t.Fatal(err)
	}
	if len(grab.grabbed) != 1 || grab.grabbed[0] != true {
		t.Errorf("transitioning out of pass-through should grab, got %v", grab.grabbed)
	}

	if err := reg.SetCurrent(None); err != nil {
		t.Fatal(err)
	}
	if len(grab.grabbed) != 2 || grab.grabbed[1] != false {
		t.Errorf("transitioning into pass-through should ungrab, got %v", grab.grabbed)
	}
}

func TestSetCurrentKicksReconnectWhenDisconnected(t *testing.T) {
	reg, conn, _, _ := newTestRegistry()
	reg.GetOrCreate("aa:aa:aa:aa:aa:aa")

	if err := reg.SetCurrent(0); err != nil {
		t.Fatal(err)
	}
	if len(conn.connected) != 1 || conn.connected[0] != "aa:aa:aa:aa:aa:aa" {
		t.Errorf("expected a reconnect kick for the disconnected new current, got %v", conn.connected)
	}
}

// TestSetCurrentReselectReconnectsWhenDisconnected covers E2E scenario 6:
// re-pressing the hotkey for a remote that is already current but has
// dropped both sockets must still kick a reconnect, since the idempotent
// guard only skips the grab/LED/release-all side effects, not the
// reconnect (spec §8: no reconnect attempt only if already CONNECTED).
func TestSetCurrentReselectReconnectsWhenDisconnected(t *testing.T) {
	reg, conn, _, _ := newTestRegistry()
	reg.GetOrCreate("aa:aa:aa:aa:aa:aa")

	if err := reg.SetCurrent(0); err != nil {
		t.Fatal(err)
	}
	conn.connected = nil // clear the reconnect kick from the initial selection

	if err := reg.SetCurrent(0); err != nil {
		t.Fatal(err)
	}
	if len(conn.connected) != 1 || conn.connected[0] != "aa:aa:aa:aa:aa:aa" {
		t.Errorf("re-selecting the still-current, still-disconnected remote should reconnect, got %v", conn.connected)
	}
}

func TestSetCurrentReselectConnectedIsNoop(t *testing.T) {
	reg, conn, _, _ := newTestRegistry()
	r := reg.GetOrCreate("aa:aa:aa:aa:aa:aa")
	r.SetControl(&l2cap.Socket{})
	r.SetInterrupt(&l2cap.Socket{})

	if err := reg.SetCurrent(0); err != nil {
		t.Fatal(err)
	}
	conn.connected = nil

	if err := reg.SetCurrent(0); err != nil {
		t.Fatal(err)
	}
	if len(conn.connected) != 0 {
		t.Errorf("re-selecting an already-connected current should not reconnect, got %v", conn.connected)
	}
}

func TestGetOrCreatePersistsAllocatedIndex(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/hidproxy.ini"
	cfg := config.New(path)

	reg := New(cfg, &fakeConnector{}, &fakeGrabber{}, &fakeLEDs{})
	reg.GetOrCreate("aa:aa:aa:aa:aa:aa")

	loaded, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	entry, ok := loaded.Get("aa:aa:aa:aa:aa:aa")
	if !ok {
		t.Fatal("expected the allocated index to be persisted to disk")
	}
	if entry.Index == nil || *entry.Index != 0 {
		t.Errorf("persisted Index = %v, want 0", entry.Index)
	}
}

func TestDropStaleClosesBothSockets(t *testing.T) {
	reg, _, _, _ := newTestRegistry()
	r := reg.GetOrCreate("aa:aa:aa:aa:aa:aa")
	r.SetControl(&l2cap.Socket{})
	r.SetInterrupt(&l2cap.Socket{})

	reg.DropStale("aa:aa:aa:aa:aa:aa")
	if r.Control != nil || r.Interrupt != nil {
		t.Errorf("expected both sockets cleared, got control=%v interrupt=%v", r.Control, r.Interrupt)
	}
	if r.State() != Disconnected {
		t.Errorf("expected Disconnected after DropStale, got %s", r.State())
	}
}

func TestDropStaleUnknownAddressIsNoop(t *testing.T) {
	reg, _, _, _ := newTestRegistry()
	reg.DropStale("unknown")
}

func TestSetCurrentAppliesCachedLEDs(t *testing.T) {
	reg, _, _, leds := newTestRegistry()
	r := reg.GetOrCreate("aa:aa:aa:aa:aa:aa")
	r.LEDState = 0x02

	if err := reg.SetCurrent(0); err != nil {
		t.Fatal(err)
	}
	if len(leds.values) != 1 || leds.values[0] != 0x02 {
		t.Errorf("expected cached LED state 0x02 applied, got %v", leds.values)
	}
}
