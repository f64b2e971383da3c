// Package inputdev supervises Linux evdev input devices: udev-driven
// enumeration and hot-plug, exclusive grab while relaying, keyboard/mouse
// event decoding into HID report deltas, and LED feedback writeback.
package inputdev

import (
	"encoding/binary"
	"fmt"
	"regexp"
	"time"

	evdev "github.com/gvalkov/golang-evdev"
	log "github.com/sirupsen/logrus"
)

// eventNodeRE matches the device nodes the supervisor cares about, per
// spec §4.3: "a device node is of interest iff its path matches
// event<digits>".
var eventNodeRE = regexp.MustCompile(`event\d+$`)

// device is the shared record behind both channel variants: an open evdev
// handle, its node path, and grab bookkeeping. Spec §9 replaces the
// original's multiple-inheritance InputDevice with exactly this shape —
// one shared record plus a channel variant selecting the decoder.
type device struct {
	node    string
	handle  *evdev.InputDevice
	grabbed bool
}

func openDevice(node string) (*device, error) {
	handle, err := evdev.Open(node)
	if err != nil {
		return nil, fmt.Errorf("inputdev: open %s: %w", node, err)
	}
	return &device{node: node, handle: handle}, nil
}

func (d *device) Fd() int {
	return int(d.handle.File.Fd())
}

func (d *device) grab() error {
	if d.grabbed {
		return nil
	}
	if err := d.handle.Grab(); err != nil {
		return err
	}
	d.grabbed = true
	return nil
}

func (d *device) ungrab() error {
	if !d.grabbed {
		return nil
	}
	if err := d.handle.Release(); err != nil {
		return err
	}
	d.grabbed = false
	return nil
}

func (d *device) close() {
	d.ungrab()
	d.handle.File.Close()
}

// Channel is one decoding channel (keyboard or mouse) over a device node.
type Channel interface {
	Node() string
	Fd() int
	Grab() error
	Release() error
	HandlePending() error
	Close()
}

// inputEvent mirrors struct input_event from <linux/input.h>: a timeval
// followed by type/code/value. Used only for writing the LED output event
// directly to the device node (the kernel, not the evdev wrapper library,
// defines this layout, so bypassing the wrapper here is the correct layer
// to own the struct).
type inputEvent struct {
	Sec, Usec int64
	Type      uint16
	Code      uint16
	Value     int32
}

const evLED = 0x11

// writeLED emits a single EV_LED event followed by an EV_SYN report, the
// standard kernel protocol for setting an LED on an input device.
func writeLED(d *device, code uint16, on bool) error {
	var value int32
	if on {
		value = 1
	}
	now := time.Now()
	ev := inputEvent{Sec: now.Unix(), Usec: int64(now.Nanosecond() / 1000), Type: evLED, Code: code, Value: value}
	syn := inputEvent{Sec: now.Unix(), Usec: int64(now.Nanosecond() / 1000), Type: 0x00, Code: 0, Value: 0}

	buf := make([]byte, 0, 48)
	buf = appendEvent(buf, ev)
	buf = appendEvent(buf, syn)

	_, err := d.handle.File.Write(buf)
	if err != nil {
		log.WithError(err).Debugf("inputdev: failed to set LED on %s", d.node)
	}
	return err
}

func appendEvent(buf []byte, ev inputEvent) []byte {
	tmp := make([]byte, 24)
	binary.LittleEndian.PutUint64(tmp[0:8], uint64(ev.Sec))
	binary.LittleEndian.PutUint64(tmp[8:16], uint64(ev.Usec))
	binary.LittleEndian.PutUint16(tmp[16:18], ev.Type)
	binary.LittleEndian.PutUint16(tmp[18:20], ev.Code)
	binary.LittleEndian.PutUint32(tmp[20:24], uint32(ev.Value))
	return append(buf, tmp...)
}
