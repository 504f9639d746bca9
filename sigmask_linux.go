package capture

import (
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DefaultSignals are held off while a buffer changes hands.
var DefaultSignals = []unix.Signal{
	unix.SIGCHLD,
	unix.SIGALRM,
	unix.SIGUSR1,
	unix.SIGTERM,
	unix.SIGHUP,
}

type threadSignalBlocker struct {
	set unix.Sigset_t
}

// NewSignalBlocker blocks sigs with pthread_sigmask. The goroutine is
// locked to its thread until restore runs.
func NewSignalBlocker(sigs ...unix.Signal) SignalBlocker {
	b := &threadSignalBlocker{}
	bits := int(unsafe.Sizeof(b.set.Val[0])) * 8
	for _, sig := range sigs {
		n := int(sig) - 1
		b.set.Val[n/bits] |= 1 << (uint(n) % uint(bits))
	}
	return b
}

func (b *threadSignalBlocker) Block() (func(), error) {
	runtime.LockOSThread()
	var old unix.Sigset_t
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &b.set, &old); err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}
	return func() {
		unix.PthreadSigmask(unix.SIG_SETMASK, &old, nil)
		runtime.UnlockOSThread()
	}, nil
}
