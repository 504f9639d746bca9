package capture

import (
	"errors"
	"fmt"

	"github.com/adamlouis/capture/v4l2"
)

var (
	// ErrNoCompatibleFormat means the device advertises no layout from the
	// format table.
	ErrNoCompatibleFormat = errors.New("no compatible pixel format")
	// ErrFormatMismatch means the device would deliver a different layout
	// than the one requested.
	ErrFormatMismatch = errors.New("device changed pixel format")
	// ErrOddFrameSize means the device will not settle on an even frame
	// size, which 4:2:0 chroma needs.
	ErrOddFrameSize = errors.New("frame size must be even")
	// ErrNotStreaming is returned by frame operations outside the
	// streaming state.
	ErrNotStreaming = errors.New("session is not streaming")
	// ErrUnknownControl means the control was not found by Discover.
	ErrUnknownControl = errors.New("control not discovered")
	// ErrUnsupportedControlType means the control is neither integer nor boolean.
	ErrUnsupportedControlType = errors.New("unsupported control type")
)

// DeviceError is a failed device request or memory mapping.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	if e.Err == nil {
		return e.Op + " failed"
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

func deviceError(op string, err error) error {
	return &DeviceError{Op: op, Err: err}
}

// FormatError is a pixel format negotiation failure.
type FormatError struct {
	Format v4l2.PixelFormat
	Err    error
}

func (e *FormatError) Error() string {
	if e.Format == 0 {
		return fmt.Sprintf("format negotiation: %v", e.Err)
	}
	return fmt.Sprintf("format negotiation %s: %v", e.Format, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ControlError is a rejected control write.
type ControlError struct {
	ID  v4l2.ControlID
	Err error
}

func (e *ControlError) Error() string {
	return fmt.Sprintf("control %#08x: %v", uint32(e.ID), e.Err)
}

func (e *ControlError) Unwrap() error { return e.Err }

// FrameErrorKind classifies a per-frame failure.
type FrameErrorKind int

const (
	// FrameLayoutMismatch means the caller's buffer cannot hold a frame.
	// It is fatal for the session.
	FrameLayoutMismatch FrameErrorKind = iota
	// FrameDecodeFailed means one frame was corrupt.
	FrameDecodeFailed
	// FrameUnhandledFormat means no conversion exists for the layout.
	FrameUnhandledFormat
)

func (k FrameErrorKind) String() string {
	switch k {
	case FrameLayoutMismatch:
		return "layout mismatch"
	case FrameDecodeFailed:
		return "decode failed"
	case FrameUnhandledFormat:
		return "unhandled format"
	}
	return fmt.Sprintf("FrameErrorKind(%d)", int(k))
}

// FrameError is a failure to produce one canonical frame.
type FrameError struct {
	Kind FrameErrorKind
	Err  error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %s: %v", e.Kind, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

// Recoverable reports whether the caller may keep requesting frames.
func (e *FrameError) Recoverable() bool {
	return e.Kind != FrameLayoutMismatch
}

// IsRecoverable reports whether err is a FrameError the session survives.
func IsRecoverable(err error) bool {
	var fe *FrameError
	return errors.As(err, &fe) && fe.Recoverable()
}
