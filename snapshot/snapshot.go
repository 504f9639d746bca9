// Package snapshot runs a capture session on its own goroutine and keeps
// the most recent frame for stills.
package snapshot

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/adamlouis/capture"
	"github.com/adamlouis/capture/frame"
	"github.com/adamlouis/capture/v4l2"
	"go.uber.org/zap"
)

// ErrClosed is returned once the capture loop has ended.
var ErrClosed = errors.New("snapper closed")

const defaultGrace = time.Second

// Status describes a running Snapper.
type Status struct {
	ID      string `json:"id"`
	Card    string `json:"card"`
	Driver  string `json:"driver"`
	Format  string `json:"format"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Frames  uint64 `json:"frames"`
	Dropped uint64 `json:"dropped"`
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

// Snapper owns a capture.Session. Only the capture goroutine touches the
// session; other goroutines reach it through requests served between
// frames.
type Snapper struct {
	dev     v4l2.Device
	session *capture.Session
	log     *zap.Logger

	// Grace is how long Close waits for the loop before closing the
	// device under it.
	Grace time.Duration

	requests chan func(*capture.Session)
	stop     chan struct{}
	ready    chan struct{}
	done     chan struct{}
	once     sync.Once

	// owned by the capture goroutine
	settings capture.Settings
	buf      []byte

	mu      sync.Mutex
	status  Status
	latest  []byte
	latestW int
	latestH int
	loopErr error
}

// Open starts a session on dev and begins capturing.
func Open(dev v4l2.Device, settings capture.Settings, opts capture.Options) (*Snapper, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	session := capture.NewSession(dev, opts)
	w, h, err := session.Start(settings)
	if err != nil {
		return nil, err
	}

	caps := session.Capability()
	s := &Snapper{
		dev:      dev,
		session:  session,
		log:      opts.Logger.With(zap.String("session", session.ID())),
		Grace:    defaultGrace,
		settings: settings,
		requests: make(chan func(*capture.Session)),
		stop:     make(chan struct{}),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
		status: Status{
			ID:      session.ID(),
			Card:    caps.Card,
			Driver:  caps.Driver,
			Format:  session.Format().Format.String(),
			Width:   w,
			Height:  h,
			Running: true,
		},
	}
	go s.capture()
	return s, nil
}

// Close stops the capture loop and releases the device.
func (s *Snapper) Close() error {
	s.once.Do(func() {
		close(s.stop)
		select {
		case <-s.done:
		case <-time.After(s.Grace):
			// NextFrame is blocked in the driver; closing the device
			// wakes it up.
			s.log.Debug("capture loop busy, closing device")
			s.dev.Close()
			<-s.done
		}
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	if errors.Is(s.loopErr, ErrClosed) {
		return nil
	}
	return s.loopErr
}

// Snap waits for a frame to be available and returns a copy of the most
// recent one.
func (s *Snapper) Snap(ctx context.Context) (*image.YCbCr, error) {
	select {
	case <-s.ready:
	case <-s.done:
		return nil, s.err()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(s.latest))
	copy(buf, s.latest)
	return frame.Image(buf, s.latestW, s.latestH), nil
}

// Status returns a snapshot of the loop's counters.
func (s *Snapper) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Controls returns copies of the discovered device controls.
func (s *Snapper) Controls(ctx context.Context) ([]capture.Control, error) {
	var out []capture.Control
	err := s.do(ctx, func(session *capture.Session) {
		for _, c := range session.Controls() {
			out = append(out, *c)
		}
	})
	return out, err
}

// SetControl writes one control on the 0..255 scale between frames.
func (s *Snapper) SetControl(ctx context.Context, id v4l2.ControlID, normalized int) (int32, error) {
	var value int32
	var setErr error
	err := s.do(ctx, func(session *capture.Session) {
		value, setErr = session.SetControl(id, normalized)
	})
	if err != nil {
		return 0, err
	}
	return value, setErr
}

// Reconfigure applies new settings between frames.
func (s *Snapper) Reconfigure(ctx context.Context, settings capture.Settings) error {
	var cfgErr error
	err := s.do(ctx, func(session *capture.Session) {
		if cfgErr = session.Reconfigure(settings, s.buf); cfgErr == nil {
			s.settings = settings
			s.setFormat(session.Format())
		}
	})
	if err != nil {
		return err
	}
	return cfgErr
}

// do runs fn on the capture goroutine and waits for it to finish.
func (s *Snapper) do(ctx context.Context, fn func(*capture.Session)) error {
	finished := make(chan struct{})
	req := func(session *capture.Session) {
		defer close(finished)
		fn(session)
	}
	select {
	case s.requests <- req:
	case <-s.done:
		return s.err()
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

func (s *Snapper) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loopErr == nil {
		return ErrClosed
	}
	return s.loopErr
}

func (s *Snapper) setFormat(f capture.NegotiatedFormat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Format = f.Format.String()
	s.status.Width = f.Width
	s.status.Height = f.Height
}

// capture reads frames until stopped or a fatal error, serving requests
// between frames.
func (s *Snapper) capture() {
	defer close(s.done)
	defer func() {
		if err := s.session.Stop(); err != nil {
			s.log.Debug("close device", zap.Error(err))
		}
		s.session.Teardown()
	}()

	s.buf = make([]byte, s.session.FrameSize())
	ready := false
	for {
		select {
		case <-s.stop:
			s.finish(ErrClosed)
			return
		case req := <-s.requests:
			req(s.session)
			if n := s.session.FrameSize(); len(s.buf) != n {
				s.buf = make([]byte, n)
			}
			continue
		default:
		}

		err := s.session.NextFrame(s.buf)
		if err != nil {
			if capture.IsRecoverable(err) {
				s.mu.Lock()
				s.status.Dropped++
				s.mu.Unlock()
				continue
			}
			select {
			case <-s.stop:
				err = ErrClosed
			default:
				s.log.Error("capture stopped", zap.Error(err))
			}
			s.finish(err)
			return
		}

		f := s.session.Format()
		s.mu.Lock()
		if len(s.latest) != len(s.buf) {
			s.latest = make([]byte, len(s.buf))
		}
		copy(s.latest, s.buf)
		s.latestW, s.latestH = f.Width, f.Height
		s.status.Frames++
		s.mu.Unlock()

		if s.settings.Picture.AutoBright {
			if err := s.session.Reconfigure(s.settings, s.buf); err != nil {
				s.log.Warn("auto brightness", zap.Error(err))
			}
		}
		if !ready {
			ready = true
			close(s.ready)
		}
	}
}

func (s *Snapper) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loopErr = err
	s.status.Running = false
	if !errors.Is(err, ErrClosed) {
		s.status.Error = err.Error()
	}
}
