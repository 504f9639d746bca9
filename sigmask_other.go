//go:build !linux

package capture

import "syscall"

// DefaultSignals is empty where the thread signal mask is not managed.
var DefaultSignals []syscall.Signal

// NewSignalBlocker returns NoSignalBlocker outside Linux.
func NewSignalBlocker(...syscall.Signal) SignalBlocker {
	return NoSignalBlocker
}
