//go:build linux

package l2cap

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

var sockaddrL2Size = uint32(unsafe.Sizeof(sockaddrL2{}))

func rawSockaddr(psm uint16, bdaddr [6]byte) sockaddrL2 {
	return sockaddrL2{
		Family: unix.AF_BLUETOOTH,
		PSM:    psm,
		Bdaddr: bdaddr,
	}
}

func bind(fd int, sa sockaddrL2) error {
	_, _, errno := unix.Syscall(unix.SYS_BIND, uintptr(fd), uintptr(unsafe.Pointer(&sa)), uintptr(sockaddrL2Size))
	if errno != 0 {
		return errno
	}
	return nil
}

func connect(fd int, sa sockaddrL2) error {
	_, _, errno := unix.Syscall(unix.SYS_CONNECT, uintptr(fd), uintptr(unsafe.Pointer(&sa)), uintptr(sockaddrL2Size))
	if errno != 0 {
		return errno
	}
	return nil
}

func accept(fd int) (int, sockaddrL2, error) {
	var sa sockaddrL2
	sa.Family = unix.AF_BLUETOOTH
	size := uint32(sockaddrL2Size)
	nfd, _, errno := unix.Syscall(unix.SYS_ACCEPT, uintptr(fd), uintptr(unsafe.Pointer(&sa)), uintptr(unsafe.Pointer(&size)))
	if errno != 0 {
		return -1, sockaddrL2{}, errno
	}
	return int(nfd), sa, nil
}

func getpeername(fd int) (sockaddrL2, error) {
	var sa sockaddrL2
	size := uint32(sockaddrL2Size)
	_, _, errno := unix.Syscall(unix.SYS_GETPEERNAME, uintptr(fd), uintptr(unsafe.Pointer(&sa)), uintptr(unsafe.Pointer(&size)))
	if errno != 0 {
		return sockaddrL2{}, errno
	}
	return sa, nil
}

func setBlocking(fd int, block bool) error {
	return unix.SetNonblock(fd, !block)
}
