// Package capture runs a single Video4Linux2 capture session: it selects
// the input, negotiates a pixel format, maps a buffer ring and turns each
// captured buffer into a planar YUV 4:2:0 frame.
package capture

import (
	"errors"
	"fmt"

	"github.com/adamlouis/capture/frame"
	"github.com/adamlouis/capture/v4l2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the lifecycle stage of a Session.
type State int

const (
	Unstarted State = iota
	Configured
	Streaming
	Stopped
)

func (s State) String() string {
	switch s {
	case Unstarted:
		return "unstarted"
	case Configured:
		return "configured"
	case Streaming:
		return "streaming"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// PictureSettings are picture control targets on a 0..255 scale.
type PictureSettings struct {
	Brightness int
	Contrast   int
	Saturation int
	Hue        int
	AutoBright bool
}

// PictureState records the picture control values last written.
type PictureState struct {
	Brightness int
	Contrast   int
	Saturation int
	Hue        int
}

// Settings is what a caller asks of a session.
type Settings struct {
	Width          int
	Height         int
	Input          InputParams
	Picture        PictureSettings
	RoundRobinSkip int
}

// Options customizes a Session. Zero values select the defaults.
type Options struct {
	ID         string
	Logger     *zap.Logger
	Formats    FormatTable
	Controls   []v4l2.ControlID
	Buffers    int
	Signals    SignalBlocker
	Dispatcher *frame.Dispatcher
	Exposure   ExposureControl
}

// Session drives one device from start to stop. It is not safe for
// concurrent use; closing the device from another goroutine is the only
// way to interrupt a blocked NextFrame.
type Session struct {
	id  string
	dev v4l2.Device
	log *zap.Logger

	formats    FormatTable
	candidates []v4l2.ControlID
	buffers    int
	signals    SignalBlocker
	exposure   ExposureControl
	dispatcher *frame.Dispatcher

	state    State
	caps     v4l2.Capability
	inputs   *InputSelector
	controls *ControlRegistry
	ring     *Ring
	format   NegotiatedFormat
	active   Settings
	picture  PictureState
	closed   bool
	closeErr error
}

// NewSession wraps an open device. The session owns dev and closes it
// in Stop.
func NewSession(dev v4l2.Device, opts Options) *Session {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Formats == nil {
		opts.Formats = DefaultFormatTable()
	}
	if opts.Controls == nil {
		opts.Controls = DefaultControlCandidates()
	}
	if opts.Buffers == 0 {
		opts.Buffers = TargetBuffers
	}
	if opts.Signals == nil {
		opts.Signals = NewSignalBlocker(DefaultSignals...)
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = frame.NewDispatcher()
	}
	if opts.Exposure == nil {
		opts.Exposure = NewAutoBrightness()
	}
	log := opts.Logger.With(zap.String("session", opts.ID))
	return &Session{
		id:         opts.ID,
		dev:        dev,
		log:        log,
		formats:    opts.Formats,
		candidates: opts.Controls,
		buffers:    opts.Buffers,
		signals:    opts.Signals,
		exposure:   opts.Exposure,
		dispatcher: opts.Dispatcher,
		inputs:     NewInputSelector(dev, log),
		controls:   NewControlRegistry(dev, log),
	}
}

func (s *Session) ID() string                  { return s.id }
func (s *Session) State() State                { return s.state }
func (s *Session) Capability() v4l2.Capability { return s.caps }
func (s *Session) Format() NegotiatedFormat    { return s.format }
func (s *Session) Picture() PictureState       { return s.picture }
func (s *Session) Controls() []*Control        { return s.controls.Controls() }
func (s *Session) Ring() *Ring                 { return s.ring }

// FrameSize is the length of one canonical frame at the negotiated size.
func (s *Session) FrameSize() int {
	return frame.Size(s.format.Width, s.format.Height)
}

// Start configures the device and starts streaming. It returns the frame
// size the device agreed to, which may differ from the one asked for.
// On failure every acquired resource is released and the session is
// Stopped.
func (s *Session) Start(settings Settings) (width, height int, err error) {
	if s.state != Unstarted {
		return 0, 0, fmt.Errorf("start: session is %s", s.state)
	}
	defer func() {
		if err != nil {
			s.log.Error("start failed", zap.Error(err))
			s.Teardown()
			s.Stop()
		}
	}()

	if s.caps, err = queryCapability(s.dev, s.log); err != nil {
		return 0, 0, err
	}
	s.ring = NewRing(s.dev, s.caps, s.signals, s.log)

	if _, err = s.inputs.Select(settings.Input); err != nil {
		return 0, 0, err
	}
	if err = s.negotiate(settings.Width, settings.Height); err != nil {
		return 0, 0, err
	}
	s.state = Configured

	s.controls.Discover(s.candidates)

	if err = s.ring.Establish(s.buffers); err != nil {
		return 0, 0, err
	}
	s.state = Streaming
	s.active = settings

	if settings.Picture.AutoBright {
		s.seedBrightness(settings.Picture.Brightness)
	}
	s.applyPicture(settings.Picture, nil)
	return s.format.Width, s.format.Height, nil
}

func (s *Session) negotiate(width, height int) error {
	n := NewFormatNegotiator(s.dev, s.formats, s.dispatcher, s.log)
	format, err := n.Negotiate(width, height)
	if err != nil {
		return err
	}
	if !s.dispatcher.Handles(format.Format) {
		return &FormatError{Format: format.Format, Err: frame.ErrUnhandledFormat}
	}
	s.format = format
	return nil
}

// Reconfigure switches input or frame size when they differ from the
// active settings and reapplies picture controls. dst holds the most
// recent frame, feeds auto brightness and receives skipped frames.
func (s *Session) Reconfigure(settings Settings, dst []byte) error {
	if s.state != Streaming {
		return ErrNotStreaming
	}

	resized := settings.Width != s.active.Width || settings.Height != s.active.Height
	switched := inputIndex(settings.Input.Index) != inputIndex(s.active.Input.Index) ||
		settings.Input.Frequency != s.active.Input.Frequency ||
		settings.Input.TunerNumber != s.active.Input.TunerNumber
	if !resized && !switched {
		s.applyPicture(settings.Picture, s.luma(dst))
		return nil
	}

	if _, err := s.inputs.Select(settings.Input); err != nil {
		return err
	}
	if resized {
		if err := s.resize(settings.Width, settings.Height); err != nil {
			s.Teardown()
			s.Stop()
			return err
		}
	}
	s.active = settings
	s.applyPicture(settings.Picture, s.luma(dst))

	if len(dst) < s.FrameSize() {
		dst = make([]byte, s.FrameSize())
	}
	for i := 0; i < settings.RoundRobinSkip; i++ {
		if err := s.NextFrame(dst); err != nil && !IsRecoverable(err) {
			return err
		}
	}
	return nil
}

// resize renegotiates the format, which needs a fresh buffer ring.
func (s *Session) resize(width, height int) error {
	s.log.Info("renegotiating format", zap.Int("width", width), zap.Int("height", height))
	s.ring.Teardown()
	s.dispatcher.Stop()
	s.state = Configured
	if err := s.negotiate(width, height); err != nil {
		return err
	}
	if err := s.ring.Establish(s.buffers); err != nil {
		return err
	}
	s.state = Streaming
	return nil
}

func (s *Session) luma(buf []byte) []byte {
	n := s.format.Width * s.format.Height
	if len(buf) < n {
		return nil
	}
	return buf[:n]
}

func (s *Session) seedBrightness(target int) {
	if target == 0 {
		target = autoBrightTarget
	}
	s.picture.Brightness = target
	s.setBrightness(target)
}

func (s *Session) applyPicture(p PictureSettings, luma []byte) {
	for _, c := range []struct {
		id   v4l2.ControlID
		want int
		last *int
	}{
		{v4l2.CIDContrast, p.Contrast, &s.picture.Contrast},
		{v4l2.CIDSaturation, p.Saturation, &s.picture.Saturation},
		{v4l2.CIDHue, p.Hue, &s.picture.Hue},
	} {
		if c.want == 0 || c.want == *c.last {
			continue
		}
		*c.last = c.want
		if _, err := s.controls.Set(c.id, c.want); err != nil {
			s.log.Warn("picture control not applied", zap.Error(err))
		}
	}

	if p.AutoBright {
		if next, changed := s.exposure.Adjust(luma, s.picture.Brightness, p.Brightness); changed {
			s.picture.Brightness = next
			s.setBrightness(next)
		}
		return
	}
	if p.Brightness != 0 && p.Brightness != s.picture.Brightness {
		s.picture.Brightness = p.Brightness
		s.setBrightness(p.Brightness)
	}
}

// setBrightness falls back to gain on devices without a brightness control.
func (s *Session) setBrightness(v int) {
	_, err := s.controls.Set(v4l2.CIDBrightness, v)
	if err == nil {
		return
	}
	s.log.Debug("brightness not applied, trying gain", zap.Error(err))
	if _, err := s.controls.Set(v4l2.CIDGain, v); err != nil {
		s.log.Warn("gain not applied", zap.Error(err))
	}
}

// SetControl writes one control on the 0..255 scale.
func (s *Session) SetControl(id v4l2.ControlID, normalized int) (int32, error) {
	return s.controls.Set(id, normalized)
}

// NextFrame blocks for the next captured buffer and writes it to dst as
// planar YUV 4:2:0. Device failures are returned as *DeviceError; frame
// failures as *FrameError, of which only a layout mismatch is fatal.
func (s *Session) NextFrame(dst []byte) error {
	if s.state != Streaming {
		return ErrNotStreaming
	}
	if need := s.FrameSize(); len(dst) < need {
		return &FrameError{
			Kind: FrameLayoutMismatch,
			Err:  fmt.Errorf("frame buffer holds %d bytes, %dx%d needs %d", len(dst), s.format.Width, s.format.Height, need),
		}
	}

	buf, err := s.ring.AcquireNext()
	if err != nil {
		return err
	}
	err = s.dispatcher.Convert(s.format.Format, dst, buf.Frame(), s.format.Width, s.format.Height)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, frame.ErrUnhandledFormat):
		return &FrameError{Kind: FrameUnhandledFormat, Err: err}
	default:
		s.log.Debug("frame dropped", zap.Int("buffer", buf.Index), zap.Error(err))
		return &FrameError{Kind: FrameDecodeFailed, Err: err}
	}
}

// Stop ends streaming and closes the device. Later calls return the
// first result.
func (s *Session) Stop() error {
	if s.closed {
		return s.closeErr
	}
	if s.ring != nil {
		s.ring.StreamOff()
	}
	s.dispatcher.Stop()
	s.closed = true
	s.closeErr = s.dev.Close()
	s.state = Stopped
	s.log.Info("session stopped")
	return s.closeErr
}

// Teardown unmaps the buffer ring and forgets the discovered controls, leaving
// the session Stopped. It is safe in any state.
func (s *Session) Teardown() {
	if s.ring != nil {
		s.ring.Teardown()
	}
	s.controls.Reset()
	s.state = Stopped
}
