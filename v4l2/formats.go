package v4l2

import "fmt"

// PixelFormat is a V4L2 fourcc pixel layout code.
type PixelFormat uint32

func fourcc(a, b, c, d byte) PixelFormat {
	return PixelFormat(uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24)
}

// Pixel layouts understood by the capture pipeline.
const (
	PixelFormatSN9C10X PixelFormat = 'S' | '9'<<8 | '1'<<16 | '0'<<24
	PixelFormatSBGGR8  PixelFormat = 'B' | 'A'<<8 | '8'<<16 | '1'<<24
	PixelFormatMJPEG   PixelFormat = 'M' | 'J'<<8 | 'P'<<16 | 'G'<<24
	PixelFormatJPEG    PixelFormat = 'J' | 'P'<<8 | 'E'<<16 | 'G'<<24
	PixelFormatRGB24   PixelFormat = 'R' | 'G'<<8 | 'B'<<16 | '3'<<24
	PixelFormatYUYV    PixelFormat = 'Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24
	PixelFormatYUV422P PixelFormat = '4' | '2'<<8 | '2'<<16 | 'P'<<24
	PixelFormatYUV420  PixelFormat = 'Y' | 'U'<<8 | '1'<<16 | '2'<<24
)

// ParsePixelFormat converts a four character code such as "YUYV".
func ParsePixelFormat(s string) (PixelFormat, error) {
	if len(s) != 4 {
		return 0, fmt.Errorf("%q: illegal fourcc", s)
	}
	return fourcc(s[0], s[1], s[2], s[3]), nil
}

// String returns the four character code.
func (f PixelFormat) String() string {
	return string([]byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)})
}

// Compressed reports whether frames of this layout need a codec.
func (f PixelFormat) Compressed() bool {
	return f == PixelFormatMJPEG || f == PixelFormatJPEG
}

// Struct that describes frame size supported by a webcam
// For fixed sizes min and max values will be the same and
// step value will be equal to '0'
type FrameSize struct {
	MinWidth  uint32
	MaxWidth  uint32
	StepWidth uint32

	MinHeight  uint32
	MaxHeight  uint32
	StepHeight uint32
}

func (s FrameSize) GetString() string {
	if s.StepWidth == 0 && s.StepHeight == 0 {
		return fmt.Sprintf("%dx%d", s.MaxWidth, s.MaxHeight)
	}
	return fmt.Sprintf("[%d-%d;%d]x[%d-%d;%d]", s.MinWidth, s.MaxWidth, s.StepWidth, s.MinHeight, s.MaxHeight, s.StepHeight)
}
