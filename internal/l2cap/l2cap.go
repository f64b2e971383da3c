// Package l2cap wraps raw AF_BLUETOOTH/BTPROTO_L2CAP SOCK_SEQPACKET sockets:
// listening sockets on a fixed PSM, and asynchronous outbound connects whose
// completion is observed by a readiness loop rather than by blocking.
//
// The standard library has no notion of L2CAP addresses, so this is built
// directly on golang.org/x/sys/unix, the same way every Bluetooth-over-raw-
// socket Go program in the wild does it.
package l2cap

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// PSM numbers for the HID profile.
const (
	PSMControl   = 17
	PSMInterrupt = 19
)

// sockaddrL2 is the raw sockaddr_l2 layout the kernel expects for
// AF_BLUETOOTH/BTPROTO_L2CAP, which golang.org/x/sys/unix does not define
// directly.
type sockaddrL2 struct {
	Family uint16
	PSM    uint16
	Bdaddr [6]byte
	// CID and BdaddrType trail the struct on Linux but are left zero for
	// our purposes (PSM-based, not fixed-channel, connections).
	CID        uint16
	BdaddrType uint8
}

func parseAddress(addr string) ([6]byte, error) {
	var out [6]byte
	var b [6]int
	n, err := fmt.Sscanf(addr, "%02x:%02x:%02x:%02x:%02x:%02x", &b[0], &b[1], &b[2], &b[3], &b[4], &b[5])
	if err != nil || n != 6 {
		return out, fmt.Errorf("l2cap: invalid Bluetooth address %q", addr)
	}
	// The kernel expects the address little-endian (reversed octet order).
	for i := 0; i < 6; i++ {
		out[i] = byte(b[5-i])
	}
	return out, nil
}

func formatAddress(b [6]byte) string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", b[5], b[4], b[3], b[2], b[1], b[0])
}

// Socket is one open (or listening) L2CAP socket.
type Socket struct {
	fd int
}

// Fd returns the raw file descriptor, for readiness-loop registration.
func (s *Socket) Fd() int {
	if s == nil {
		return -1
	}
	return s.fd
}

// Read reads one datagram from the socket (SOCK_SEQPACKET preserves
// message boundaries, matching the HID report/frame-per-read model).
func (s *Socket) Read(buf []byte) (int, error) {
	return unix.Read(s.fd, buf)
}

// Write writes one datagram to the socket.
func (s *Socket) Write(buf []byte) (int, error) {
	return unix.Write(s.fd, buf)
}

// Close closes the underlying file descriptor. Safe to call on a socket
// whose fd is already closed or zero-valued (tests construct bare
// &Socket{} values as presence markers without opening a real fd).
func (s *Socket) Close() error {
	if s == nil || s.fd == 0 {
		return nil
	}
	fd := s.fd
	s.fd = 0
	return unix.Close(fd)
}

// Listen creates a bound, listening SOCK_SEQPACKET L2CAP socket on psm,
// any local address, with the given backlog and SO_REUSEADDR enabled.
func Listen(psm uint16, backlog int) (*Socket, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_SEQPACKET, unix.BTPROTO_L2CAP)
	if err != nil {
		return nil, fmt.Errorf("l2cap: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("l2cap: SO_REUSEADDR: %w", err)
	}

	sa := rawSockaddr(psm, [6]byte{})
	if err := bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("l2cap: bind PSM %d: %w", psm, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("l2cap: listen PSM %d: %w", psm, err)
	}
	return &Socket{fd: fd}, nil
}

// Accept blocks until a peer connects (the readiness loop calls it only
// once it has seen the listener readable), and returns the accepted
// socket plus its address in blocking mode, matching spec §4.2 ("accepts
// run in blocking mode on the accepted sockets").
func (s *Socket) Accept() (*Socket, string, error) {
	nfd, sa, err := accept(s.fd)
	if err != nil {
		return nil, "", fmt.Errorf("l2cap: accept: %w", err)
	}
	if err := setBlocking(nfd, true); err != nil {
		unix.Close(nfd)
		return nil, "", err
	}
	return &Socket{fd: nfd}, formatAddress(sa.Bdaddr), nil
}

// Dial begins a non-blocking outbound connect to (address, psm). A
// successful call may still mean the connect is merely in progress
// (EINPROGRESS); the caller registers the returned socket for write-
// readiness and later calls CheckError.
func Dial(address string, psm uint16) (*Socket, error) {
	bdaddr, err := parseAddress(address)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_SEQPACKET, unix.BTPROTO_L2CAP)
	if err != nil {
		return nil, fmt.Errorf("l2cap: socket: %w", err)
	}
	if err := setBlocking(fd, false); err != nil {
		unix.Close(fd)
		return nil, err
	}

	sa := rawSockaddr(psm, bdaddr)
	err = connect(fd, sa)
	if err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		return nil, fmt.Errorf("l2cap: connect %s PSM %d: %w", address, psm, err)
	}
	return &Socket{fd: fd}, nil
}

// CheckError reads and clears SO_ERROR on the socket, returning nil if the
// pending connect completed successfully.
func (s *Socket) CheckError() error {
	errno, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno != 0 {
		return unix.Errno(errno)
	}
	return nil
}

// PeerAddress returns the Bluetooth address of the connected peer.
func (s *Socket) PeerAddress() (string, error) {
	sa, err := getpeername(s.fd)
	if err != nil {
		return "", err
	}
	return formatAddress(sa.Bdaddr), nil
}
