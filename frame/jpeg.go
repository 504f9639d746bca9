package frame

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
)

// JPEGDecoder decodes MJPEG and JPEG frames with image/jpeg. Frames
// without a DHT segment get the default Huffman tables inserted first,
// which is how most MJPEG webcams send them.
type JPEGDecoder struct {
	width, height int
	buf           []byte
}

var _ Decoder = (*JPEGDecoder)(nil)

func (d *JPEGDecoder) Start(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("jpeg: bad frame size %dx%d", width, height)
	}
	d.width, d.height = width, height
	return nil
}

func (d *JPEGDecoder) Stop() {
	d.buf = nil
}

func (d *JPEGDecoder) Decode(src, scratch []byte, width, height int) ([]byte, error) {
	data, err := InsertHuffmanTables(src, d.buf[:0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(data) > 0 && &data[0] != &src[0] {
		d.buf = data
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		return nil, fmt.Errorf("%w: frame is %dx%d, negotiated %dx%d", ErrDecode, b.Dx(), b.Dy(), width, height)
	}
	rgb := grow(scratch, width*height*3)
	toRGB24(rgb, img)
	return rgb, nil
}

func toRGB24(dst []byte, img image.Image) {
	b := img.Bounds()
	o := 0
	switch m := img.(type) {
	case *image.YCbCr:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				yi, ci := m.YOffset(x, y), m.COffset(x, y)
				dst[o], dst[o+1], dst[o+2] = color.YCbCrToRGB(m.Y[yi], m.Cb[ci], m.Cr[ci])
				o += 3
			}
		}
	case *image.Gray:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				g := m.Pix[m.PixOffset(x, y)]
				dst[o], dst[o+1], dst[o+2] = g, g, g
				o += 3
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
				dst[o], dst[o+1], dst[o+2] = c.R, c.G, c.B
				o += 3
			}
		}
	}
}

const (
	markerSOI = 0xD8
	markerDHT = 0xC4
	markerSOS = 0xDA
)

// InsertHuffmanTables returns src unchanged when it carries a DHT segment
// before its first SOS. Otherwise it returns a copy, built in buf, with the
// default tables placed just before the SOS.
func InsertHuffmanTables(src, buf []byte) ([]byte, error) {
	if len(src) < 4 || src[0] != 0xFF || src[1] != markerSOI {
		return nil, fmt.Errorf("missing SOI marker")
	}
	i := 2
	for {
		// skip fill bytes
		for i+1 < len(src) && src[i] == 0xFF && src[i+1] == 0xFF {
			i++
		}
		if i+3 >= len(src) || src[i] != 0xFF {
			return nil, fmt.Errorf("bad marker at offset %d", i)
		}
		switch src[i+1] {
		case markerDHT:
			return src, nil
		case markerSOS:
			out := append(buf, src[:i]...)
			out = append(out, defaultDHT...)
			return append(out, src[i:]...), nil
		}
		i += 2 + int(binary.BigEndian.Uint16(src[i+2:]))
	}
}

type huffmanSpec struct {
	class uint8 // table class in the high nibble, id in the low
	count [16]uint8
	value []uint8
}

// Annex K.3 of the JPEG standard.
var defaultHuffmanSpecs = []huffmanSpec{
	// luminance DC
	{
		0x00,
		[16]uint8{0, 1, 5, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0, 0, 0},
		[]uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	},
	// luminance AC
	{
		0x10,
		[16]uint8{0, 2, 1, 3, 3, 2, 4, 3, 5, 5, 4, 4, 0, 0, 1, 125},
		[]uint8{
			0x01, 0x02, 0x03, 0x00, 0x04, 0x11, 0x05, 0x12,
			0x21, 0x31, 0x41, 0x06, 0x13, 0x51, 0x61, 0x07,
			0x22, 0x71, 0x14, 0x32, 0x81, 0x91, 0xa1, 0x08,
			0x23, 0x42, 0xb1, 0xc1, 0x15, 0x52, 0xd1, 0xf0,
			0x24, 0x33, 0x62, 0x72, 0x82, 0x09, 0x0a, 0x16,
			0x17, 0x18, 0x19, 0x1a, 0x25, 0x26, 0x27, 0x28,
			0x29, 0x2a, 0x34, 0x35, 0x36, 0x37, 0x38, 0x39,
			0x3a, 0x43, 0x44, 0x45, 0x46, 0x47, 0x48, 0x49,
			0x4a, 0x53, 0x54, 0x55, 0x56, 0x57, 0x58, 0x59,
			0x5a, 0x63, 0x64, 0x65, 0x66, 0x67, 0x68, 0x69,
			0x6a, 0x73, 0x74, 0x75, 0x76, 0x77, 0x78, 0x79,
			0x7a, 0x83, 0x84, 0x85, 0x86, 0x87, 0x88, 0x89,
			0x8a, 0x92, 0x93, 0x94, 0x95, 0x96, 0x97, 0x98,
			0x99, 0x9a, 0xa2, 0xa3, 0xa4, 0xa5, 0xa6, 0xa7,
			0xa8, 0xa9, 0xaa, 0xb2, 0xb3, 0xb4, 0xb5, 0xb6,
			0xb7, 0xb8, 0xb9, 0xba, 0xc2, 0xc3, 0xc4, 0xc5,
			0xc6, 0xc7, 0xc8, 0xc9, 0xca, 0xd2, 0xd3, 0xd4,
			0xd5, 0xd6, 0xd7, 0xd8, 0xd9, 0xda, 0xe1, 0xe2,
			0xe3, 0xe4, 0xe5, 0xe6, 0xe7, 0xe8, 0xe9, 0xea,
			0xf1, 0xf2, 0xf3, 0xf4, 0xf5, 0xf6, 0xf7, 0xf8,
			0xf9, 0xfa,
		},
	},
	// chrominance DC
	{
		0x01,
		[16]uint8{0, 3, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0},
		[]uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	},
	// chrominance AC
	{
		0x11,
		[16]uint8{0, 2, 1, 2, 4, 4, 3, 4, 7, 5, 4, 4, 0, 1, 2, 119},
		[]uint8{
			0x00, 0x01, 0x02, 0x03, 0x11, 0x04, 0x05, 0x21,
			0x31, 0x06, 0x12, 0x41, 0x51, 0x07, 0x61, 0x71,
			0x13, 0x22, 0x32, 0x81, 0x08, 0x14, 0x42, 0x91,
			0xa1, 0xb1, 0xc1, 0x09, 0x23, 0x33, 0x52, 0xf0,
			0x15, 0x62, 0x72, 0xd1, 0x0a, 0x16, 0x24, 0x34,
			0xe1, 0x25, 0xf1, 0x17, 0x18, 0x19, 0x1a, 0x26,
			0x27, 0x28, 0x29, 0x2a, 0x35, 0x36, 0x37, 0x38,
			0x39, 0x3a, 0x43, 0x44, 0x45, 0x46, 0x47, 0x48,
			0x49, 0x4a, 0x53, 0x54, 0x55, 0x56, 0x57, 0x58,
			0x59, 0x5a, 0x63, 0x64, 0x65, 0x66, 0x67, 0x68,
			0x69, 0x6a, 0x73, 0x74, 0x75, 0x76, 0x77, 0x78,
			0x79, 0x7a, 0x82, 0x83, 0x84, 0x85, 0x86, 0x87,
			0x88, 0x89, 0x8a, 0x92, 0x93, 0x94, 0x95, 0x96,
			0x97, 0x98, 0x99, 0x9a, 0xa2, 0xa3, 0xa4, 0xa5,
			0xa6, 0xa7, 0xa8, 0xa9, 0xaa, 0xb2, 0xb3, 0xb4,
			0xb5, 0xb6, 0xb7, 0xb8, 0xb9, 0xba, 0xc2, 0xc3,
			0xc4, 0xc5, 0xc6, 0xc7, 0xc8, 0xc9, 0xca, 0xd2,
			0xd3, 0xd4, 0xd5, 0xd6, 0xd7, 0xd8, 0xd9, 0xda,
			0xe2, 0xe3, 0xe4, 0xe5, 0xe6, 0xe7, 0xe8, 0xe9,
			0xea, 0xf2, 0xf3, 0xf4, 0xf5, 0xf6, 0xf7, 0xf8,
			0xf9, 0xfa,
		},
	},
}

var defaultDHT = buildDHT(defaultHuffmanSpecs)

func buildDHT(specs []huffmanSpec) []byte {
	length := 2
	for _, s := range specs {
		length += 1 + 16 + len(s.value)
	}
	out := []byte{0xFF, markerDHT, byte(length >> 8), byte(length)}
	for _, s := range specs {
		out = append(out, s.class)
		out = append(out, s.count[:]...)
		out = append(out, s.value...)
	}
	return out
}
