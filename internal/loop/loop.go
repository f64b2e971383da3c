// Package loop runs the single-threaded readiness loop that multiplexes
// every input-device fd, both PSM listeners, every remote's control and
// interrupt sockets, and pending outbound connects, dispatching each
// readable or writable fd in turn. Grounded on
// original_source/keyboardswitcher.py's event_loop: same descriptor-set
// rebuild-per-iteration structure and the same dispatch order (pending
// connects, hotplug, device reads, control/interrupt reads, accepts).
package loop

import (
	"fmt"
	"time"

	"github.com/loov/hrtime"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/go-hidswitch/go-hidproxy/internal/inputdev"
	"github.com/go-hidswitch/go-hidproxy/internal/l2cap"
	"github.com/go-hidswitch/go-hidproxy/internal/registry"
)

// pollInterval bounds how long a single select(2) call blocks. The
// hot-plug monitors (internal/inputdev's udev channels) surface events on a
// Go channel rather than a raw fd, so there is nothing to add to the
// descriptor set for them; a short timeout lets the loop drain them
// between syscalls instead of going without a wakeup until I/O activity
// happens to occur elsewhere. See inputdev.Supervisor.DrainHotplug's doc
// comment for the other half of this reconciliation.
const pollInterval = 50 * time.Millisecond

const readBufSize = 1024

// pendingConnect is one outbound connect still awaiting completion,
// mirroring the original's BluetoothDevice.connecting_sockets list.
type pendingConnect struct {
	sock    *l2cap.Socket
	address string
	psm     uint16
}

// Loop owns the registry, the input-device supervisor, and both PSM
// listeners, and drives them all from one goroutine. There is no
// synchronization inside Loop itself: everything it touches is either
// owned exclusively by this goroutine or, like *registry.Registry, already
// safe for concurrent use.
type Loop struct {
	reg          *registry.Registry
	sup          *inputdev.Supervisor
	ctrlListener *l2cap.Socket
	intrListener *l2cap.Socket

	pending map[int]*pendingConnect
}

// New constructs an unbound Loop. Call Bind once the registry exists, since
// the registry's Connector (this Loop) must exist before the registry does.
func New() *Loop {
	return &Loop{pending: make(map[int]*pendingConnect)}
}

// Bind attaches the collaborators a Loop needs once they all exist.
func (l *Loop) Bind(reg *registry.Registry, sup *inputdev.Supervisor, ctrlListener, intrListener *l2cap.Socket) {
	l.reg = reg
	l.sup = sup
	l.ctrlListener = ctrlListener
	l.intrListener = intrListener
}

// ConnectControl begins an outbound connect to address's control PSM,
// satisfying registry.Connector. The interrupt PSM is dialed once the
// control connect completes, per spec §4.1/§4.2.
func (l *Loop) ConnectControl(address string) error {
	return l.dial(address, l2cap.PSMControl)
}

func (l *Loop) dial(address string, psm uint16) error {
	sock, err := l2cap.Dial(address, psm)
	if err != nil {
		return err
	}
	l.pending[sock.Fd()] = &pendingConnect{sock: sock, address: address, psm: psm}
	return nil
}

// Run drives the readiness loop until an unrecoverable select(2) error
// occurs; otherwise this runs for the life of the process, same as the
// original (no graceful shutdown path).
func (l *Loop) Run() error {
	for {
		if err := l.iterate(); err != nil {
			return err
		}
	}
}

func (l *Loop) iterate() error {
	readSet := newFdSet()
	writeSet := newFdSet()

	for _, c := range l.sup.Channels() {
		readSet.add(c.Fd())
	}
	readSet.add(l.ctrlListener.Fd())
	readSet.add(l.intrListener.Fd())
	for _, r := range l.reg.All() {
		readSet.add(r.Control.Fd())
		readSet.add(r.Interrupt.Fd())
	}
	for fd := range l.pending {
		writeSet.add(fd)
	}

	nfds := readSet.max
	if writeSet.max > nfds {
		nfds = writeSet.max
	}
	nfds++

	timeout := unix.NsecToTimeval(pollInterval.Nanoseconds())
	_, err := unix.Select(nfds, &readSet.set, &writeSet.set, nil, &timeout)
	if err != nil && err != unix.EINTR {
		return fmt.Errorf("loop: select: %w", err)
	}

	l.handlePendingConnects(writeSet)
	l.sup.DrainHotplug()
	l.sup.DrainBluetoothEvents()

	readable := make(map[int]bool)
	for _, c := range l.sup.Channels() {
		if readSet.isSet(c.Fd()) {
			readable[c.Fd()] = true
		}
	}
	l.sup.HandleReadable(readable)

	for _, r := range l.reg.All() {
		if readSet.isSet(r.Control.Fd()) {
			l.handleControlData(r)
		}
		if readSet.isSet(r.Interrupt.Fd()) {
			l.handleInterruptData(r)
		}
	}

	if readSet.isSet(l.intrListener.Fd()) {
		l.acceptOn(l.intrListener, l2cap.PSMInterrupt)
	}
	if readSet.isSet(l.ctrlListener.Fd()) {
		l.acceptOn(l.ctrlListener, l2cap.PSMControl)
	}

	return nil
}

func (l *Loop) handlePendingConnects(writeSet *fdSet) {
	for fd, p := range l.pending {
		if !writeSet.isSet(fd) {
			continue
		}
		delete(l.pending, fd)

		if err := p.sock.CheckError(); err != nil {
			log.WithError(err).Warnf("loop: connect to %s PSM %d failed", p.address, p.psm)
			p.sock.Close()
			continue
		}

		log.Debugf("loop: connected to %s PSM %d", p.address, p.psm)
		r := l.reg.GetOrCreate(p.address)
		switch p.psm {
		case l2cap.PSMControl:
			r.SetControl(p.sock)
			if err := l.dial(p.address, l2cap.PSMInterrupt); err != nil {
				log.WithError(err).Warnf("loop: dialing interrupt PSM to %s", p.address)
			}
		case l2cap.PSMInterrupt:
			r.SetInterrupt(p.sock)
		}
	}
}

func (l *Loop) handleControlData(r *registry.Remote) {
	buf := make([]byte, readBufSize)
	n, err := r.Control.Read(buf)
	if err != nil {
		if err != unix.EAGAIN {
			log.WithError(err).Debugf("loop: control read error for %s", r.Address)
		}
		r.DropControl()
		return
	}
	if n == 0 {
		r.DropControl()
		return
	}
	// A single 0x71 byte is the remote's handshake probe and is answered
	// with a single 0x00 byte; any other payload is logged and ignored,
	// matching the original's literal behavior.
	if n == 1 && buf[0] == 0x71 {
		if _, err := r.Control.Write([]byte{0x00}); err != nil {
			log.WithError(err).Debugf("loop: control handshake reply to %s failed", r.Address)
		}
	} else {
		log.Debugf("loop: ignoring control payload % x from %s", buf[:n], r.Address)
	}
}

func (l *Loop) handleInterruptData(r *registry.Remote) {
	buf := make([]byte, readBufSize)
	n, err := r.Interrupt.Read(buf)
	if err != nil {
		if err != unix.EAGAIN {
			log.WithError(err).Debugf("loop: interrupt read error for %s", r.Address)
		}
		r.DropInterrupt()
		return
	}
	if n == 0 {
		r.DropInterrupt()
		return
	}
	if n >= 3 && buf[0] == 0xa2 && buf[1] == 0x01 {
		l.reg.ApplyLED(r, buf[2])
	}
}

func (l *Loop) acceptOn(listener *l2cap.Socket, psm uint16) {
	start := hrtime.Now()
	sock, addr, err := listener.Accept()
	if err != nil {
		log.WithError(err).Warnf("loop: accept on PSM %d failed", psm)
		return
	}

	r := l.reg.GetOrCreate(addr)
	switch psm {
	case l2cap.PSMControl:
		r.SetControl(sock)
	case l2cap.PSMInterrupt:
		r.SetInterrupt(sock)
	}
	l.reg.Dump()
	log.Infof("loop: accepted PSM %d from %s (%v)", psm, addr, hrtime.Since(start))
}
