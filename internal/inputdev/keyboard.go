package inputdev

import (
	evdev "github.com/gvalkov/golang-evdev"
	log "github.com/sirupsen/logrus"

	"github.com/go-hidswitch/go-hidproxy/internal/hotkey"
	"github.com/go-hidswitch/go-hidproxy/internal/keycode"
	"github.com/go-hidswitch/go-hidproxy/internal/report"
)

// Sink is the subset of *registry.Registry a channel needs: forwarding a
// finished report to whichever remote is currently selected.
type Sink interface {
	SendCurrent(frame []byte)
}

// LEDCodes, in HID output-report bit order: NumLock, CapsLock, ScrollLock,
// Compose, Kana.
var ledCodes = [5]uint16{0x00, 0x01, 0x02, 0x03, 0x04}

// KeyboardChannel decodes EV_KEY events from one grabbed keyboard-like
// device into a 10-byte HID keyboard report, detecting hotkeys before they
// ever reach the report.
type KeyboardChannel struct {
	dev    *device
	state  report.Keyboard
	sink   Sink
	table  *hotkey.Table
	dispat hotkey.Dispatcher
}

// NewKeyboardChannel opens node, applies the repeat rate, and returns a
// channel decoding its EV_KEY stream. It does not grab the device; the
// Supervisor grabs it according to its grab policy. A repeatRate of 0 skips
// the repeat-rate ioctl, restoring the teacher's configurable
// dev.SetRepeatRate call (SPEC_FULL.md supplemented feature).
func NewKeyboardChannel(node string, sink Sink, table *hotkey.Table, dispat hotkey.Dispatcher, repeatRate, repeatDelayMs uint) (*KeyboardChannel, error) {
	d, err := openDevice(node)
	if err != nil {
		return nil, err
	}
	if repeatRate > 0 {
		if err := d.handle.SetRepeatRate(repeatRate, repeatDelayMs); err != nil {
			log.WithError(err).Warnf("inputdev: failed to set repeat rate on %s", node)
		}
	}
	return &KeyboardChannel{dev: d, sink: sink, table: table, dispat: dispat}, nil
}

func (c *KeyboardChannel) Node() string   { return c.dev.node }
func (c *KeyboardChannel) Fd() int        { return c.dev.Fd() }
func (c *KeyboardChannel) Grab() error    { return c.dev.grab() }
func (c *KeyboardChannel) Release() error { return c.dev.ungrab() }
func (c *KeyboardChannel) Close()         { c.dev.close() }

// SetLEDs writes bits 0..4 of value (NumLock, CapsLock, ScrollLock,
// Compose, Kana, in HID order) to this keyboard's LEDs.
func (c *KeyboardChannel) SetLEDs(value uint8) {
	for i, code := range ledCodes {
		on := value&(1<<uint(i)) != 0
		writeLED(c.dev, code, on)
	}
}

// HandlePending drains every event currently readable on the device and
// feeds each through the decoder. An ENODEV read error is returned as
// ErrDeviceGone so the supervisor can recognize device removal.
func (c *KeyboardChannel) HandlePending() error {
	for {
		ev, err := c.dev.handle.ReadOne()
		if err != nil {
			if te := translateReadErr(err); te != ErrWouldBlock {
				return te
			}
			return nil
		}
		c.decode(ev)
	}
}

func (c *KeyboardChannel) decode(ev *evdev.InputEvent) {
	if ev.Type != evdev.EV_KEY || ev.Value > 1 {
		return
	}
	code := uint16(ev.Code)
	pressed := ev.Value == 1

	if bit, ok := keycode.Modifier[code]; ok {
		if pressed {
			c.state.Modifier |= bit
		} else {
			c.state.Modifier &^= bit
		}
		c.sink.SendCurrent(c.state.ToWire())
		return
	}

	usage, ok := keycode.Usage[code]
	if !ok {
		log.Warnf("inputdev: unknown evdev key code %d", code)
		return
	}

	isFirstPress := pressed && c.state.Idle()
	var combo uint16
	if isFirstPress {
		combo = uint16(c.state.Modifier)<<8 | uint16(usage)
	}

	if pressed {
		c.state.SetKey(usage)
	} else {
		c.state.ClearKey(usage)
	}

	if isFirstPress {
		if action, ok := c.table.Lookup(combo); ok {
			c.dispat.Dispatch(action)
			return
		}
	}

	c.sink.SendCurrent(c.state.ToWire())
}
