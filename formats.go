package capture

import (
	"fmt"

	"github.com/adamlouis/capture/v4l2"
	"go.uber.org/zap"
)

// FormatCandidate is one entry of a format preference table.
type FormatCandidate struct {
	Format v4l2.PixelFormat
	Rank   int
}

// FormatTable lists the layouts a session accepts. Higher rank wins, and
// between equal ranks the later entry wins.
type FormatTable []FormatCandidate

// DefaultFormatTable prefers layouts that need the least work to reach
// planar YUV 4:2:0.
func DefaultFormatTable() FormatTable {
	order := []v4l2.PixelFormat{
		v4l2.PixelFormatSN9C10X,
		v4l2.PixelFormatSBGGR8,
		v4l2.PixelFormatMJPEG,
		v4l2.PixelFormatJPEG,
		v4l2.PixelFormatRGB24,
		v4l2.PixelFormatYUYV,
		v4l2.PixelFormatYUV422P,
		v4l2.PixelFormatYUV420,
	}
	table := make(FormatTable, len(order))
	for i, f := range order {
		table[i] = FormatCandidate{Format: f, Rank: i}
	}
	return table
}

// Choose returns the preferred table entry among advertised. The result
// does not depend on the order of advertised.
func (t FormatTable) Choose(advertised []v4l2.PixelFormat) (FormatCandidate, bool) {
	best, bestIndex := FormatCandidate{}, -1
	for _, f := range advertised {
		for i, c := range t {
			if c.Format != f {
				continue
			}
			if bestIndex < 0 || c.Rank > best.Rank || (c.Rank == best.Rank && i > bestIndex) {
				best, bestIndex = c, i
			}
		}
	}
	return best, bestIndex >= 0
}

// NegotiatedFormat is the layout and size the device committed to.
type NegotiatedFormat struct {
	Format       v4l2.PixelFormat
	Width        int
	Height       int
	BytesPerLine int
	SizeImage    int
}

// CodecStarter opens a codec session for compressed layouts.
type CodecStarter interface {
	Start(format v4l2.PixelFormat, width, height int) error
}

// FormatNegotiator picks and commits the capture format.
type FormatNegotiator struct {
	dev   v4l2.Device
	table FormatTable
	codec CodecStarter
	log   *zap.Logger
}

func NewFormatNegotiator(dev v4l2.Device, table FormatTable, codec CodecStarter, log *zap.Logger) *FormatNegotiator {
	if log == nil {
		log = zap.NewNop()
	}
	return &FormatNegotiator{dev: dev, table: table, codec: codec, log: log}
}

// Advertised enumerates the device's pixel formats.
func (n *FormatNegotiator) Advertised() []v4l2.FormatDesc {
	var formats []v4l2.FormatDesc
	for i := uint32(0); ; i++ {
		desc, err := n.dev.EnumFormat(i)
		if err != nil {
			return formats
		}
		formats = append(formats, desc)
	}
}

// Negotiate chooses a layout and commits width x height. The device may
// correct the size; the corrected size is returned.
func (n *FormatNegotiator) Negotiate(width, height int) (NegotiatedFormat, error) {
	var advertised []v4l2.PixelFormat
	for _, desc := range n.Advertised() {
		n.log.Info("supported palette",
			zap.Uint32("index", desc.Index),
			zap.Stringer("fourcc", desc.PixelFormat),
			zap.String("description", desc.Description))
		advertised = append(advertised, desc.PixelFormat)
	}

	choice, ok := n.table.Choose(advertised)
	if !ok {
		return NegotiatedFormat{}, &FormatError{Err: ErrNoCompatibleFormat}
	}
	format := choice.Format
	log := n.log.With(zap.Stringer("format", format))
	log.Info("selected palette")
	n.logFrameSizes(log, format)

	req := v4l2.PixFormat{
		Width:       uint32(width),
		Height:      uint32(height),
		PixelFormat: format,
		Field:       v4l2.FieldAny,
	}
	tried, err := n.try(req)
	if err != nil {
		return NegotiatedFormat{}, err
	}
	if !evenSize(tried.Width, tried.Height) {
		log.Info("device offered odd frame size, retrying",
			zap.Uint32("width", tried.Width),
			zap.Uint32("height", tried.Height))
		req.Width, req.Height = tried.Width&^1, tried.Height&^1
		if tried, err = n.try(req); err != nil {
			return NegotiatedFormat{}, err
		}
		if !evenSize(tried.Width, tried.Height) {
			return NegotiatedFormat{}, &FormatError{
				Format: format,
				Err:    fmt.Errorf("%w: device offers %dx%d", ErrOddFrameSize, tried.Width, tried.Height),
			}
		}
	}
	if int(tried.Width) != width || int(tried.Height) != height {
		log.Info("adjusting resolution",
			zap.Int("requested_width", width),
			zap.Int("requested_height", height),
			zap.Uint32("width", tried.Width),
			zap.Uint32("height", tried.Height))
	}

	req.Width, req.Height = tried.Width, tried.Height
	committed, err := n.dev.SetFormat(req)
	if err != nil {
		return NegotiatedFormat{}, deviceError("VIDIOC_S_FMT", err)
	}
	if committed.Width == 0 || committed.Height == 0 {
		committed.Width, committed.Height = tried.Width, tried.Height
	}

	if !evenSize(committed.Width, committed.Height) {
		return NegotiatedFormat{}, &FormatError{
			Format: format,
			Err:    fmt.Errorf("%w: device committed %dx%d", ErrOddFrameSize, committed.Width, committed.Height),
		}
	}

	nf := NegotiatedFormat{
		Format:       format,
		Width:        int(committed.Width),
		Height:       int(committed.Height),
		BytesPerLine: int(committed.BytesPerLine),
		SizeImage:    int(committed.SizeImage),
	}

	if format.Compressed() {
		if format == v4l2.PixelFormatMJPEG {
			if err := n.dev.EnableJPEGMarkers(v4l2.JPEGMarkerDHT); err != nil {
				log.Debug("driver does not take JPEG marker settings", zap.Error(err))
			}
		}
		if n.codec != nil {
			if err := n.codec.Start(format, nf.Width, nf.Height); err != nil {
				return nf, &FormatError{Format: format, Err: err}
			}
		}
	}

	log.Info("format committed",
		zap.Int("width", nf.Width),
		zap.Int("height", nf.Height),
		zap.Int("bytes_per_line", nf.BytesPerLine),
		zap.Int("size_image", nf.SizeImage))
	return nf, nil
}

// try runs TRY_FMT and rejects a reply in another layout.
func (n *FormatNegotiator) try(req v4l2.PixFormat) (v4l2.PixFormat, error) {
	tried, err := n.dev.TryFormat(req)
	if err != nil {
		return v4l2.PixFormat{}, &FormatError{Format: req.PixelFormat, Err: deviceError("VIDIOC_TRY_FMT", err)}
	}
	if tried.PixelFormat != req.PixelFormat {
		return v4l2.PixFormat{}, &FormatError{
			Format: req.PixelFormat,
			Err:    fmt.Errorf("%w: asked %s, got %s", ErrFormatMismatch, req.PixelFormat, tried.PixelFormat),
		}
	}
	return tried, nil
}

func evenSize(width, height uint32) bool {
	return width > 0 && height > 0 && width%2 == 0 && height%2 == 0
}

func (n *FormatNegotiator) logFrameSizes(log *zap.Logger, format v4l2.PixelFormat) {
	for i := uint32(0); ; i++ {
		size, err := n.dev.EnumFrameSize(format, i)
		if err != nil {
			return
		}
		log.Debug("frame size", zap.String("size", size.GetString()))
	}
}
