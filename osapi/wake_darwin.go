//go:build darwin

package osapi

import "golang.org/x/sys/unix"

// createWakeFD creates a non-blocking self-pipe for pselect wake-up
// notifications (Darwin has no eventfd).
func createWakeFD() (int, int, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return -1, -1, err
	}
	for _, fd := range fds {
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return -1, -1, err
		}
	}
	return fds[0], fds[1], nil
}
