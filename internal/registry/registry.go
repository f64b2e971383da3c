// Package registry catalogs known remote Bluetooth HID hosts by address and
// by stable index, tracks their connection sockets and derived state, and
// elects the "current" remote that receives relayed input.
package registry

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/go-hidswitch/go-hidproxy/internal/config"
	"github.com/go-hidswitch/go-hidproxy/internal/l2cap"
	"github.com/go-hidswitch/go-hidproxy/internal/report"
)

// State is the derived connection state of a Remote.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Disconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	case Disconnecting:
		return "DISCONNECTING"
	default:
		return "UNKNOWN"
	}
}

// None is the sentinel "current" index meaning pass-through: no remote
// receives input, the host's own input stack sees events.
const None = -1

// Remote is one known Bluetooth HID host.
type Remote struct {
	Address string
	Index   int

	Control   *l2cap.Socket
	Interrupt *l2cap.Socket

	// everConnected becomes true the first time both sockets are present
	// and stays true until both are absent again; it disambiguates
	// Connecting from Disconnecting, both of which have exactly one
	// socket present.
	everConnected bool

	LEDState uint8

	MouseDelayMs int
	MouseSpeed   float64
}

// State derives the connection state from socket presence plus the history
// bit, per spec §4.1.
func (r *Remote) State() State {
	switch {
	case r.Control != nil && r.Interrupt != nil:
		return Connected
	case r.Control == nil && r.Interrupt == nil:
		return Disconnected
	case r.everConnected:
		return Disconnecting
	default:
		return Connecting
	}
}

func (r *Remote) String() string {
	return fmt.Sprintf("%d: %s %s", r.Index, r.Address, r.State())
}

func (r *Remote) noteSocketChange() {
	if r.Control != nil && r.Interrupt != nil {
		r.everConnected = true
	}
	if r.Control == nil && r.Interrupt == nil {
		r.everConnected = false
	}
}

// SetControl attaches sock as the control (PSM 17) socket.
func (r *Remote) SetControl(sock *l2cap.Socket) {
	r.Control = sock
	r.noteSocketChange()
}

// SetInterrupt attaches sock as the interrupt (PSM 19) socket.
func (r *Remote) SetInterrupt(sock *l2cap.Socket) {
	r.Interrupt = sock
	r.noteSocketChange()
}

// DropControl closes and clears the control socket, if any.
func (r *Remote) DropControl() {
	if r.Control == nil {
		return
	}
	r.Control.Close()
	r.Control = nil
	r.noteSocketChange()
}

// DropInterrupt closes and clears the interrupt socket, if any.
func (r *Remote) DropInterrupt() {
	if r.Interrupt == nil {
		return
	}
	r.Interrupt.Close()
	r.Interrupt = nil
	r.noteSocketChange()
}

// sendInterrupt writes a fully-formed HID frame to the interrupt socket,
// dropping the socket on any send error (per §7, transient socket errors
// drop the offending socket rather than propagating).
func (r *Remote) sendInterrupt(frame []byte) {
	if r.Interrupt == nil {
		return
	}
	if _, err := r.Interrupt.Write(frame); err != nil {
		log.WithError(err).Warnf("registry: send to remote %d (%s) failed, dropping interrupt socket", r.Index, r.Address)
		r.DropInterrupt()
	}
}

// Connector kicks off an outbound connect to a remote's control PSM. It is
// satisfied by *loop.Loop in production and faked in tests.
type Connector interface {
	ConnectControl(address string) error
}

// Grabber applies the exclusive-grab policy to every physical input device.
// Satisfied by *inputdev.Supervisor in production.
type Grabber interface {
	SetGrab(on bool)
}

// LEDSetter applies an LED bitmap to every physical keyboard.
type LEDSetter interface {
	SetLEDsAll(value uint8)
}

// Registry is the single owned catalog of known remotes plus the current
// selection. There is exactly one Registry value per process, owned by the
// composition root (spec §9: no process-wide globals).
type Registry struct {
	mu      sync.Mutex
	byIndex map[int]*Remote
	byAddr  map[string]*Remote
	current int

	cfg       *config.Store
	connector Connector
	grabber   Grabber
	leds      LEDSetter
}

// New builds an empty registry, pass-through selected, backed by cfg for
// index persistence.
func New(cfg *config.Store, connector Connector, grabber Grabber, leds LEDSetter) *Registry {
	return &Registry{
		byIndex:   make(map[int]*Remote),
		byAddr:    make(map[string]*Remote),
		current:   None,
		cfg:       cfg,
		connector: connector,
		grabber:   grabber,
		leds:      leds,
	}
}

// allocIndex returns the smallest available index, preferring pref if given
// and still free.
func (reg *Registry) allocIndex(pref *int) int {
	if pref != nil {
		if _, taken := reg.byIndex[*pref]; !taken {
			return *pref
		}
	}
	for i := 0; ; i++ {
		if _, taken := reg.byIndex[i]; !taken {
			return i
		}
	}
}

// GetOrCreate returns the registry entry for address, materializing it (and
// persisting its index) if new.
func (reg *Registry) GetOrCreate(address string) *Remote {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.getOrCreateLocked(address)
}

func (reg *Registry) getOrCreateLocked(address string) *Remote {
	if r, ok := reg.byAddr[address]; ok {
		return r
	}

	var pref *int
	delayMs := config.DefaultMouseDelayMs
	speed := config.DefaultMouseSpeed
	if reg.cfg != nil {
		if entry, ok := reg.cfg.Get(address); ok {
			pref = entry.Index
			delayMs = entry.MouseDelayMs
			speed = entry.MouseSpeed
		}
	}
	idx := reg.allocIndex(pref)

	r := &Remote{
		Address:      address,
		Index:        idx,
		MouseDelayMs: delayMs,
		MouseSpeed:   speed,
	}
	reg.byAddr[address] = r
	reg.byIndex[idx] = r
	if reg.cfg != nil {
		reg.cfg.SetIndex(address, idx)
		if err := reg.cfg.Save(); err != nil {
			log.WithError(err).Warnf("registry: persisting config store after assigning %s index %d", address, idx)
		}
	}
	log.Infof("registry: new remote %s assigned index %d", address, idx)
	return r
}

// ByIndex looks up a remote by its stable index.
func (reg *Registry) ByIndex(i int) (*Remote, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.byIndex[i]
	return r, ok
}

// ByAddress looks up a remote by address.
func (reg *Registry) ByAddress(addr string) (*Remote, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.byAddr[addr]
	return r, ok
}

// Current returns the currently-selected index (possibly None) and, if one
// is selected, its Remote.
func (reg *Registry) Current() (int, *Remote) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.current == None {
		return None, nil
	}
	return reg.current, reg.byIndex[reg.current]
}

// CurrentIndex returns just the index, cheaper than Current when the
// Remote itself isn't needed.
func (reg *Registry) CurrentIndex() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.current
}

// SetCurrent switches routing to index i (or None for pass-through).
// Precondition: i == None or the index is known. If i already equals the
// current selection, the grab, release-all and LED steps are skipped; the
// reconnect kick below still runs if that remote is DISCONNECTED.
func (reg *Registry) SetCurrent(i int) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if i != None {
		if _, ok := reg.byIndex[i]; !ok {
			return fmt.Errorf("registry: SetCurrent(%d): no such remote", i)
		}
	}

	if i != reg.current {
		log.Debugf("registry: switching current from %d to %d", reg.current, i)

		if reg.current == None && reg.grabber != nil {
			reg.grabber.SetGrab(true)
		}
		if i == None && reg.grabber != nil {
			reg.grabber.SetGrab(false)
		}

		if prev, ok := reg.byIndex[reg.current]; ok && prev.Interrupt != nil {
			var zeroKbd report.Keyboard
			var zeroMouse report.Mouse
			prev.sendInterrupt(zeroKbd.ToWire())
			prev.sendInterrupt(zeroMouse.ToWire())
		}

		reg.current = i

		var ledValue uint8
		if next, ok := reg.byIndex[i]; ok {
			ledValue = next.LEDState
		}
		if reg.leds != nil {
			reg.leds.SetLEDsAll(ledValue)
		}
	}

	// Best-effort reconnect: must fire even on the idempotent path of
	// re-selecting the already-current index, so pressing a still-current
	// remote's hotkey again retries a dropped connection (no reconnect only
	// if the target is already CONNECTED).
	if next, ok := reg.byIndex[i]; ok && next.State() == Disconnected && reg.connector != nil {
		if err := reg.connector.ConnectControl(next.Address); err != nil {
			log.WithError(err).Warnf("registry: outbound connect to %s failed", next.Address)
		}
	}

	return nil
}

// SendCurrent forwards a fully-formed HID report to the current remote's
// interrupt socket, if any.
func (reg *Registry) SendCurrent(frame []byte) {
	reg.mu.Lock()
	r, ok := reg.byIndex[reg.current]
	reg.mu.Unlock()
	if !ok {
		return
	}
	r.sendInterrupt(frame)
}

// SendAll forwards frame to every known remote. SetCurrent's release-all
// does not use it: that goes only to the previously current remote.
func (reg *Registry) SendAll(frame []byte) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for _, r := range reg.byIndex {
		r.sendInterrupt(frame)
	}
}

// MouseTuning returns the current remote's mouse delay and speed, or the
// package defaults if no remote is selected.
func (reg *Registry) MouseTuning() (delayMs int, speed float64) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.byIndex[reg.current]
	if !ok {
		return config.DefaultMouseDelayMs, config.DefaultMouseSpeed
	}
	return r.MouseDelayMs, r.MouseSpeed
}

// ApplyLED caches value on the remote that sent it and broadcasts it to
// every physical keyboard, per spec: any remote's LED output report is
// applied regardless of whether it is currently selected.
func (reg *Registry) ApplyLED(r *Remote, value uint8) {
	reg.mu.Lock()
	r.LEDState = value
	reg.mu.Unlock()
	if reg.leds != nil {
		reg.leds.SetLEDsAll(value)
	}
}

// DropStale closes and clears both sockets of the remote at address, if
// known. Wired to BlueZ-level disconnect notifications (internal/btsetup's
// DisconnectedSince) so a remote that BlueZ reports gone is dropped
// immediately instead of waiting for a failed L2CAP read to discover it.
func (reg *Registry) DropStale(address string) {
	reg.mu.Lock()
	r, ok := reg.byAddr[address]
	reg.mu.Unlock()
	if !ok {
		return
	}
	r.DropControl()
	r.DropInterrupt()
	log.Infof("registry: dropped stale sockets for %s (%d)", address, r.Index)
}

// All returns every known remote, for iteration by the readiness loop.
func (reg *Registry) All() []*Remote {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]*Remote, 0, len(reg.byIndex))
	for _, r := range reg.byIndex {
		out = append(out, r)
	}
	return out
}

// Dump logs the full registry, one line per remote, mirroring the
// original's BluetoothDevice.print().
func (reg *Registry) Dump() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	log.Info("------")
	for _, r := range reg.byIndex {
		marker := " "
		if r.Index == reg.current {
			marker = "*"
		}
		log.Infof("%s%s", marker, r)
	}
}
