//go:build windows

package transport

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/windows"
)

// setSocketOptions configures platform-specific socket options for Windows.
// Windows has no SO_REUSEPORT; its SO_REUSEADDR already permits multiple
// processes to bind the same port, which is the closest equivalent.
func setSocketOptions(fd uintptr) error {
	if err := windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1); err != nil {
		return fmt.Errorf("failed to set SO_REUSEADDR: %w", err)
	}
	return nil
}

// KernelVersion returns "" on Windows; socket option support there is not
// version-gated the way SO_REUSEPORT is on Linux.
func KernelVersion() string {
	return ""
}

// Control function for net.ListenConfig on Windows.
// NewUDPListener and NewTCPListener install it, through PlatformControl,
// as the Control hook of their net.ListenConfig.
func platformControl(network, address string, c syscall.RawConn) error {
	var sockoptErr error
	err := c.Control(func(fd uintptr) {
		sockoptErr = setSocketOptions(fd)
	})
	if err != nil {
		return fmt.Errorf("raw conn control failed: %w", err)
	}
	return sockoptErr
}

// PlatformControl returns the platform-specific control function for net.ListenConfig.
// This is the public API for other packages to use socket options.
func PlatformControl(network, address string, c syscall.RawConn) error {
	return platformControl(network, address, c)
}
