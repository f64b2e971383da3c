// Package report builds fixed-size HID input report records and their wire
// framing for the keyboard and mouse collections this relay emits.
package report

const (
	transportInput  byte = 0xA1
	keyboardReportID     = 0x01
	mouseReportID        = 0x02
)

// Keyboard is the 10-byte HID keyboard input report: transport prefix,
// report ID, modifier byte, reserved byte, and six key-usage slots.
type Keyboard struct {
	Modifier uint8
	Keys     [6]uint8
}

// ToWire renders the report as the 10-byte frame
// `A1 01 <mod> 00 <k1> <k2> <k3> <k4> <k5> <k6>`.
func (k Keyboard) ToWire() []byte {
	out := make([]byte, 10)
	out[0] = transportInput
	out[1] = keyboardReportID
	out[2] = k.Modifier
	out[3] = 0x00
	copy(out[4:10], k.Keys[:])
	return out
}

// SetKey writes usage into the first free slot, following a first-free
// policy. Returns false if all six slots are occupied.
func (k *Keyboard) SetKey(usage uint8) bool {
	for i := range k.Keys {
		if k.Keys[i] == usage {
			return true
		}
	}
	for i := range k.Keys {
		if k.Keys[i] == 0 {
			k.Keys[i] = usage
			return true
		}
	}
	return false
}

// ClearKey clears every slot equal to usage (clear-in-place on release).
func (k *Keyboard) ClearKey(usage uint8) {
	for i := range k.Keys {
		if k.Keys[i] == usage {
			k.Keys[i] = 0
		}
	}
}

// Idle reports whether no key-usage slot is occupied. Used to detect the
// "no other non-modifier key currently held" precondition for hotkeys.
func (k Keyboard) Idle() bool {
	for _, v := range k.Keys {
		if v != 0 {
			return false
		}
	}
	return true
}

// Mouse is the 6-byte HID mouse input report: transport prefix, report ID,
// button bitmap, and signed dx/dy/wheel.
type Mouse struct {
	Buttons uint8
	DX      int8
	DY      int8
	Wheel   int8
}

// ToWire renders the report as the 6-byte frame
// `A1 02 <buttons> <dx> <dy> <wheel>`.
func (m Mouse) ToWire() []byte {
	return []byte{
		transportInput,
		mouseReportID,
		m.Buttons,
		byte(m.DX),
		byte(m.DY),
		byte(m.Wheel),
	}
}

// Clamp8 truncates v into the signed 8-bit range [-127, 127] (HID mouse
// reports reserve -128 and treat the range as symmetric).
func Clamp8(v float64) int8 {
	if v > 127 {
		v = 127
	}
	if v < -127 {
		v = -127
	}
	return int8(v)
}
