package inputdev

import (
	"errors"
	"strings"
	"syscall"
)

// ErrDeviceGone is returned by HandlePending when the underlying node has
// disappeared (ENODEV on read), per spec §4.3 "Device disappeared".
var ErrDeviceGone = errors.New("inputdev: device disappeared")

// ErrWouldBlock is returned when no event is currently pending; the caller
// should stop draining for this iteration rather than treat it as an error.
var ErrWouldBlock = errors.New("inputdev: no event pending")

func translateReadErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.ENODEV) {
		return ErrDeviceGone
	}
	if strings.Contains(err.Error(), "i/o timeout") || errors.Is(err, syscall.EAGAIN) {
		return ErrWouldBlock
	}
	return err
}
