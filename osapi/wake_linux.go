//go:build linux

package osapi

import "golang.org/x/sys/unix"

// createWakeFD creates an eventfd for pselect wake-up notifications.
// Read and write ends are the same descriptor.
func createWakeFD() (int, int, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return -1, -1, err
	}
	return fd, fd, nil
}
