package inputdev

import "testing"

type fakeChannel struct {
	node      string
	fd        int
	grabbed   bool
	releases  int
	handled   int
	handleErr error
	leds      []uint8
	closed    bool
}

func (f *fakeChannel) Node() string { return f.node }
func (f *fakeChannel) Fd() int      { return f.fd }
func (f *fakeChannel) Grab() error  { f.grabbed = true; return nil }
func (f *fakeChannel) Release() error {
	f.grabbed = false
	f.releases++
	return nil
}
func (f *fakeChannel) HandlePending() error { f.handled++; return f.handleErr }
func (f *fakeChannel) Close()               { f.closed = true }
func (f *fakeChannel) SetLEDs(v uint8)      { f.leds = append(f.leds, v) }

func newTestSupervisor() *Supervisor {
	return &Supervisor{byNode: make(map[string][]Channel)}
}

func TestSetGrabAppliesToEveryTrackedChannel(t *testing.T) {
	s := newTestSupervisor()
	kb := &fakeChannel{node: "/dev/input/event0", fd: 10}
	mouse := &fakeChannel{node: "/dev/input/event0", fd: 11}
	s.byNode["/dev/input/event0"] = []Channel{kb, mouse}

	s.SetGrab(true)
	if !kb.grabbed || !mouse.grabbed {
		t.Errorf("expected both channels grabbed, got kb=%v mouse=%v", kb.grabbed, mouse.grabbed)
	}

	s.SetGrab(false)
	if kb.grabbed || mouse.grabbed {
		t.Error("expected both channels released")
	}
}

func TestSetLEDsAllOnlyReachesKeyboardSinks(t *testing.T) {
	s := newTestSupervisor()
	kb := &fakeChannel{node: "/dev/input/event0", fd: 10}
	s.byNode["/dev/input/event0"] = []Channel{kb}
	// Embedding only the Channel interface hides SetLEDs, so this channel is
	// not a keyboardSink.
	plain := &fakeChannel{node: "/dev/input/event1", fd: 11}
	s.byNode["/dev/input/event1"] = []Channel{struct{ Channel }{plain}}

	s.SetLEDsAll(0x03)
	if len(kb.leds) != 1 || kb.leds[0] != 0x03 {
		t.Errorf("expected LED value forwarded, got %v", kb.leds)
	}
	if len(plain.leds) != 0 {
		t.Errorf("expected no LED value on a non-keyboard channel, got %v", plain.leds)
	}
}

func TestHandleReadableDropsDeviceOnErrDeviceGone(t *testing.T) {
	s := newTestSupervisor()
	gone := &fakeChannel{node: "/dev/input/event0", fd: 10, handleErr: ErrDeviceGone}
	s.byNode["/dev/input/event0"] = []Channel{gone}

	s.HandleReadable(map[int]bool{10: true})

	if _, exists := s.byNode["/dev/input/event0"]; exists {
		t.Error("expected device removed from supervisor after ErrDeviceGone")
	}
	if !gone.closed {
		t.Error("expected channel closed on removal")
	}
}

func TestHandleReadableIgnoresUnreadableFds(t *testing.T) {
	s := newTestSupervisor()
	c := &fakeChannel{node: "/dev/input/event0", fd: 10}
	s.byNode["/dev/input/event0"] = []Channel{c}

	s.HandleReadable(map[int]bool{99: true})
	if c.handled != 0 {
		t.Errorf("expected HandlePending not called for an unreadable fd, got %d calls", c.handled)
	}
}

func TestChannelsReturnsEveryTrackedChannel(t *testing.T) {
	s := newTestSupervisor()
	s.byNode["/dev/input/event0"] = []Channel{&fakeChannel{fd: 1}, &fakeChannel{fd: 2}}
	s.byNode["/dev/input/event1"] = []Channel{&fakeChannel{fd: 3}}

	got := s.Channels()
	if len(got) != 3 {
		t.Errorf("expected 3 channels, got %d", len(got))
	}
}
