//go:build linux

package loop

import "golang.org/x/sys/unix"

// fdSet mirrors the teacher's "rebuild descriptor sets every iteration"
// structure, in Go terms: golang.org/x/sys/unix.FdSet exposes only the raw
// bit array, with no set/clear/isset helpers of its own.
type fdSet struct {
	set unix.FdSet
	max int
}

func newFdSet() *fdSet {
	return &fdSet{max: -1}
}

func (f *fdSet) add(fd int) {
	if fd < 0 {
		return
	}
	f.set.Bits[fd/64] |= 1 << (uint(fd) % 64)
	if fd > f.max {
		f.max = fd
	}
}

func (f *fdSet) isSet(fd int) bool {
	if fd < 0 {
		return false
	}
	return f.set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}
