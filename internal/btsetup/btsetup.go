// Package btsetup performs the one-time Bluetooth adapter and BlueZ HID
// profile setup the relay depends on but never re-touches at runtime: class
// and name configuration, ProfileManager1 registration of the bundled SDP
// record, and discoverable/pairable toggling on the LeftCtrl+Esc hotkey.
// None of this is L2CAP traffic, so it lives apart from internal/l2cap.
package btsetup

import (
	_ "embed"
	"fmt"
	"os/exec"

	"github.com/godbus/dbus/v5"
	"github.com/muka/go-bluetooth/bluez/profile/adapter"
	log "github.com/sirupsen/logrus"
)

// hidProfileUUID is the standard Bluetooth HID service class UUID, matching
// the profile the original registers.
const hidProfileUUID = "00001124-0000-1000-8000-00805f9b34fb"

//go:embed sdp_record.xml
var sdpRecord string

// Setup configures adapterID's class and friendly name, then registers the
// bundled HID profile with BlueZ's ProfileManager1 so paired remotes offer
// it during service discovery. Mirrors BluetoothDeviceManager.__init__ in
// the original.
func Setup(adapterID string) error {
	if err := hciconfig(adapterID, "class", "0x0025C0"); err != nil {
		log.WithError(err).Warn("btsetup: failed to set adapter class")
	}
	if err := hciconfig(adapterID, "name", "Pi Keyboard/Mouse"); err != nil {
		log.WithError(err).Warn("btsetup: failed to set adapter name")
	}
	return registerProfile(adapterID)
}

func hciconfig(adapterID string, args ...string) error {
	cmd := exec.Command("hciconfig", append([]string{adapterID}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("hciconfig %s: %w: %s", adapterID, err, out)
	}
	return nil
}

func registerProfile(adapterID string) error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("btsetup: connect to system bus: %w", err)
	}
	manager := conn.Object("org.bluez", dbus.ObjectPath("/org/bluez"))
	opts := map[string]dbus.Variant{
		"AutoConnect":   dbus.MakeVariant(true),
		"ServiceRecord": dbus.MakeVariant(sdpRecord),
	}
	profilePath := dbus.ObjectPath(fmt.Sprintf("/org/bluez/%s", adapterID))
	call := manager.Call("org.bluez.ProfileManager1.RegisterProfile", 0, profilePath, hidProfileUUID, opts)
	if call.Err != nil {
		return fmt.Errorf("btsetup: RegisterProfile: %w", call.Err)
	}
	log.Infof("btsetup: registered HID profile on %s", adapterID)
	return nil
}

// EnterPairable makes adapterID discoverable and pairable, restoring the
// LeftCtrl+Esc hotkey's connect_all behavior. go-bluetooth's adapter wrapper
// is used where available; hciconfig piscan remains the fallback the
// original relied on exclusively.
func EnterPairable(adapterID string) error {
	a, err := adapter.GetAdapter(adapterID)
	if err == nil {
		if serr := a.SetDiscoverable(true); serr != nil {
			log.WithError(serr).Warn("btsetup: SetDiscoverable failed, falling back to hciconfig piscan")
		} else if serr := a.SetPairable(true); serr != nil {
			log.WithError(serr).Warn("btsetup: SetPairable failed, falling back to hciconfig piscan")
		} else {
			log.Infof("btsetup: %s is now discoverable and pairable", adapterID)
			return nil
		}
	}
	return hciconfig(adapterID, "piscan")
}

// DisconnectedSince asks BlueZ for adapterID's current device list and
// returns the addresses of any listed device BlueZ now reports disconnected,
// restoring the teacher's GetDisconnectedDevices polling (which matched on
// device name) so a udev bluetooth hot-plug event can drop a remote's stale
// L2CAP sockets proactively instead of waiting for a failed read. Addresses
// are used here rather than names since the registry is keyed by address.
func DisconnectedSince(adapterID string) ([]string, error) {
	a, err := adapter.GetAdapter(adapterID)
	if err != nil {
		return nil, fmt.Errorf("btsetup: get adapter %s: %w", adapterID, err)
	}
	devices, err := a.GetDevices()
	if err != nil {
		return nil, fmt.Errorf("btsetup: list devices on %s: %w", adapterID, err)
	}

	var disconnected []string
	seen := map[string]bool{}
	for _, dev := range devices {
		address, err := dev.GetAddress()
		if err != nil {
			continue
		}
		isConnected, err := dev.GetConnected()
		if err != nil {
			continue
		}
		if !isConnected && !seen[address] {
			seen[address] = true
			disconnected = append(disconnected, address)
		}
	}
	return disconnected, nil
}
