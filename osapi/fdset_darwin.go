//go:build darwin

package osapi

import "golang.org/x/sys/unix"

// unixFdSet wraps golang.org/x/sys/unix.FdSet, which on Darwin is a
// [32]int32 array covering fd values 0..1023 (FD_SETSIZE).
type unixFdSet struct {
	raw unix.FdSet
}

func newUnixFdSet() *unixFdSet { return &unixFdSet{} }

const fdSetSize = 32 * 32 // matches unix.FdSet{Bits [32]int32} on darwin

func (s *unixFdSet) Add(fd int) error {
	if fd < 0 || fd >= fdSetSize {
		return ErrFDDomain
	}
	s.raw.Bits[fd/32] |= 1 << uint(fd%32)
	return nil
}

func (s *unixFdSet) Remove(fd int) {
	if fd < 0 || fd >= fdSetSize {
		return
	}
	s.raw.Bits[fd/32] &^= 1 << uint(fd%32)
}

func (s *unixFdSet) Test(fd int) bool {
	if fd < 0 || fd >= fdSetSize {
		return false
	}
	return s.raw.Bits[fd/32]&(1<<uint(fd%32)) != 0
}

func (s *unixFdSet) Clear() {
	s.raw = unix.FdSet{}
}

func (s *unixFdSet) MaxValue() int { return fdSetSize }
