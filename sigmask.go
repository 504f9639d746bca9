package capture

// SignalBlocker suspends delivery of a set of signals to the calling
// goroutine's thread. restore must be called exactly once.
type SignalBlocker interface {
	Block() (restore func(), err error)
}

type noSignalBlocker struct{}

func (noSignalBlocker) Block() (func(), error) { return func() {}, nil }

// NoSignalBlocker leaves the signal mask alone.
var NoSignalBlocker SignalBlocker = noSignalBlocker{}
