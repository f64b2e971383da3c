package inputdev

import (
	"time"

	evdev "github.com/gvalkov/golang-evdev"

	"github.com/go-hidswitch/go-hidproxy/internal/report"
)

// Tuner supplies the current remote's mouse tuning, since the rate limit
// and speed multiplier are per-remote (§3), not per-device.
type Tuner interface {
	MouseTuning() (delayMs int, speed float64)
}

// MouseChannel decodes EV_REL/EV_KEY/EV_SYN events from one grabbed
// mouse-like device into a 6-byte HID mouse report, coalescing relative
// motion between EV_SYN emit boundaries and rate-limiting emits per §4.3.2.
type MouseChannel struct {
	dev  *device
	sink Sink
	tune Tuner

	buttons uint8
	x, y, z int

	pendingButtonChange bool
	lastEmit            time.Time
}

// NewMouseChannel opens node and returns a channel decoding its pointer
// event stream. It does not grab the device; the Supervisor grabs it
// according to its grab policy.
func NewMouseChannel(node string, sink Sink, tune Tuner) (*MouseChannel, error) {
	d, err := openDevice(node)
	if err != nil {
		return nil, err
	}
	return &MouseChannel{dev: d, sink: sink, tune: tune}, nil
}

func (c *MouseChannel) Node() string   { return c.dev.node }
func (c *MouseChannel) Fd() int        { return c.dev.Fd() }
func (c *MouseChannel) Grab() error    { return c.dev.grab() }
func (c *MouseChannel) Release() error { return c.dev.ungrab() }
func (c *MouseChannel) Close()         { c.dev.close() }

// SetLEDs is a no-op: mice have no LEDs in this report set, mirroring the
// original's MouseInput.set_leds pass.
func (c *MouseChannel) SetLEDs(uint8) {}

func (c *MouseChannel) HandlePending() error {
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

func (c *MouseChannel) decode(ev *evdev.InputEvent) {
	switch ev.Type {
	case evdev.EV_REL:
		switch ev.Code {
		case 0:
			c.x += int(ev.Value)
		case 1:
			c.y += int(ev.Value)
		case 8:
			c.z += int(ev.Value)
		}
	case evdev.EV_KEY:
		if ev.Code >= 272 && ev.Code <= 276 && (ev.Value == 0 || ev.Value == 1) {
			bit := uint8(1) << uint(ev.Code-272)
			if ev.Value == 1 {
				c.buttons |= bit
			} else {
				c.buttons &^= bit
			}
			c.pendingButtonChange = true
		}
	case evdev.EV_SYN:
		c.emit()
	}
}

func (c *MouseChannel) emit() {
	delayMs, speed := c.tune.MouseTuning()
	delay := time.Duration(delayMs) * time.Millisecond

	now := time.Now()
	if !c.lastEmit.IsZero() && now.Sub(c.lastEmit) < delay && !c.pendingButtonChange {
		return
	}

	rep := report.Mouse{
		Buttons: c.buttons,
		DX:      report.Clamp8(float64(c.x) * speed),
		DY:      report.Clamp8(float64(c.y) * speed),
		Wheel:   report.Clamp8(float64(c.z)),
	}

	c.x, c.y, c.z = 0, 0, 0
	c.pendingButtonChange = false
	c.lastEmit = now

	c.sink.SendCurrent(rep.ToWire())
}
