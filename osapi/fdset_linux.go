//go:build linux

package osapi

import "golang.org/x/sys/unix"

// unixFdSet wraps golang.org/x/sys/unix.FdSet, which on Linux is a
// [16]int64 array covering fd values 0..1023 (FD_SETSIZE).
type unixFdSet struct {
	raw unix.FdSet
}

func newUnixFdSet() *unixFdSet { return &unixFdSet{} }

const fdSetSize = 16 * 64 // matches unix.FdSet{Bits [16]int64} on linux

func (s *unixFdSet) Add(fd int) error {
	if fd < 0 || fd >= fdSetSize {
		return ErrFDDomain
	}
	s.raw.Bits[fd/64] |= 1 << uint(fd%64)
	return nil
}

func (s *unixFdSet) Remove(fd int) {
	if fd < 0 || fd >= fdSetSize {
		return
	}
	s.raw.Bits[fd/64] &^= 1 << uint(fd%64)
}

func (s *unixFdSet) Test(fd int) bool {
	if fd < 0 || fd >= fdSetSize {
		return false
	}
	return s.raw.Bits[fd/64]&(1<<uint(fd%64)) != 0
}

func (s *unixFdSet) Clear() {
	s.raw = unix.FdSet{}
}

func (s *unixFdSet) MaxValue() int { return fdSetSize }
