// Package frame converts captured buffers into the canonical planar
// YUV 4:2:0 layout, dispatching on the negotiated pixel format.
package frame

import (
	"errors"
	"fmt"

	"github.com/adamlouis/capture/v4l2"
)

var (
	// ErrDecode means a compressed frame could not be decoded. The next
	// frame may well succeed.
	ErrDecode = errors.New("frame decode failed")
	// ErrShortFrame means the source buffer is smaller than the layout needs.
	ErrShortFrame = errors.New("short frame")
	// ErrUnhandledFormat means no route is registered for the layout.
	ErrUnhandledFormat = errors.New("unhandled pixel format")
)

// Size returns the length of a canonical YUV 4:2:0 frame.
func Size(width, height int) int {
	return width * height * 3 / 2
}

// Converter writes one canonical frame into dst from a raw buffer.
type Converter func(dst, src []byte, width, height int) error

// Decoder turns a compressed frame into packed RGB24. scratch is reused
// when large enough.
type Decoder interface {
	Start(width, height int) error
	Decode(src, scratch []byte, width, height int) ([]byte, error)
	Stop()
}

// DemosaicFunc fills dst with RGB24 from an 8-bit Bayer mosaic.
type DemosaicFunc func(dst, src []byte, width, height int)

// DecompressFunc expands a vendor compressed frame into an 8-bit Bayer mosaic.
type DecompressFunc func(dst, src []byte, width, height int) error

// Dispatcher routes raw frames to a converter by pixel format.
// It is not safe for concurrent use.
type Dispatcher struct {
	routes     map[v4l2.PixelFormat]Converter
	decoder    Decoder
	demosaic   DemosaicFunc
	decompress DecompressFunc

	rgb     []byte
	bayer   []byte
	started bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithDecoder replaces the JPEG decoder used for MJPEG and JPEG frames.
func WithDecoder(d Decoder) Option {
	return func(fd *Dispatcher) { fd.decoder = d }
}

// WithDemosaic replaces the Bayer demosaic routine.
func WithDemosaic(f DemosaicFunc) Option {
	return func(fd *Dispatcher) { fd.demosaic = f }
}

// WithDecompress replaces the SN9C10x decompressor.
func WithDecompress(f DecompressFunc) Option {
	return func(fd *Dispatcher) { fd.decompress = f }
}

// NewDispatcher returns a dispatcher with routes for every layout of the
// default format table.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		routes:     map[v4l2.PixelFormat]Converter{},
		decoder:    &JPEGDecoder{},
		demosaic:   BayerToRGB24,
		decompress: SonixDecompress,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.Register(v4l2.PixelFormatYUV420, copyYUV420)
	d.Register(v4l2.PixelFormatRGB24, checked(3, RGB24ToYUV420))
	d.Register(v4l2.PixelFormatYUYV, checked(2, YUYVToYUV420))
	d.Register(v4l2.PixelFormatYUV422P, checked(2, YUV422PToYUV420))
	d.Register(v4l2.PixelFormatMJPEG, d.convertCompressed)
	d.Register(v4l2.PixelFormatJPEG, d.convertCompressed)
	d.Register(v4l2.PixelFormatSBGGR8, d.convertBayer)
	d.Register(v4l2.PixelFormatSN9C10X, d.convertSonix)
	return d
}

// Register installs conv for format, replacing any earlier route.
func (d *Dispatcher) Register(format v4l2.PixelFormat, conv Converter) {
	d.routes[format] = conv
}

// Handles reports whether a route exists for format.
func (d *Dispatcher) Handles(format v4l2.PixelFormat) bool {
	_, ok := d.routes[format]
	return ok
}

// Start opens a codec session for compressed formats. It is a no-op for
// the others.
func (d *Dispatcher) Start(format v4l2.PixelFormat, width, height int) error {
	if !format.Compressed() || d.decoder == nil {
		return nil
	}
	if d.started {
		d.decoder.Stop()
		d.started = false
	}
	if err := d.decoder.Start(width, height); err != nil {
		return fmt.Errorf("start %s decoder: %w", format, err)
	}
	d.started = true
	return nil
}

// Stop ends the codec session, if any. Safe to call more than once.
func (d *Dispatcher) Stop() {
	if d.started {
		d.decoder.Stop()
		d.started = false
	}
}

// Convert writes the canonical frame for src into dst.
func (d *Dispatcher) Convert(format v4l2.PixelFormat, dst, src []byte, width, height int) error {
	conv, ok := d.routes[format]
	if !ok {
		return fmt.Errorf("%s: %w", format, ErrUnhandledFormat)
	}
	if len(dst) < Size(width, height) {
		return fmt.Errorf("destination holds %d bytes, need %d: %w", len(dst), Size(width, height), ErrShortFrame)
	}
	return conv(dst, src, width, height)
}

func checked(bytesPerPixel int, conv func(dst, src []byte, width, height int)) Converter {
	return func(dst, src []byte, width, height int) error {
		if need := width * height * bytesPerPixel; len(src) < need {
			return fmt.Errorf("got %d bytes, need %d: %w", len(src), need, ErrShortFrame)
		}
		conv(dst, src, width, height)
		return nil
	}
}

func copyYUV420(dst, src []byte, width, height int) error {
	n := Size(width, height)
	if len(src) < n {
		return fmt.Errorf("got %d bytes, need %d: %w", len(src), n, ErrShortFrame)
	}
	copy(dst[:n], src[:n])
	return nil
}

func (d *Dispatcher) convertCompressed(dst, src []byte, width, height int) error {
	if d.decoder == nil {
		return fmt.Errorf("no decoder: %w", ErrUnhandledFormat)
	}
	rgb, err := d.decoder.Decode(src, d.rgb, width, height)
	if err != nil {
		if errors.Is(err, ErrDecode) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	d.rgb = rgb
	if len(rgb) < width*height*3 {
		return fmt.Errorf("decoder returned %d bytes: %w", len(rgb), ErrDecode)
	}
	RGB24ToYUV420(dst, rgb, width, height)
	return nil
}

func (d *Dispatcher) convertBayer(dst, src []byte, width, height int) error {
	if len(src) < width*height {
		return fmt.Errorf("got %d bytes, need %d: %w", len(src), width*height, ErrShortFrame)
	}
	d.rgb = grow(d.rgb, width*height*3)
	d.demosaic(d.rgb, src, width, height)
	RGB24ToYUV420(dst, d.rgb, width, height)
	return nil
}

func (d *Dispatcher) convertSonix(dst, src []byte, width, height int) error {
	d.bayer = grow(d.bayer, width*height)
	if err := d.decompress(d.bayer, src, width, height); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	d.rgb = grow(d.rgb, width*height*3)
	d.demosaic(d.rgb, d.bayer, width, height)
	RGB24ToYUV420(dst, d.rgb, width, height)
	return nil
}

func grow(b []byte, n int) []byte {
	if cap(b) < n {
		return make([]byte, n)
	}
	return b[:n]
}
