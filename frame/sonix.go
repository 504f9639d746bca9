package frame

import "fmt"

type sonixCode struct {
	value    int
	length   int
	absolute bool
}

var sonixTable [256]sonixCode

func init() {
	for i := range sonixTable {
		c := &sonixTable[i]
		switch {
		case i&0x80 == 0: // 0
			c.value, c.length = 0, 1
		case i&0xE0 == 0x80: // 100
			c.value, c.length = 4, 3
		case i&0xE0 == 0xA0: // 101
			c.value, c.length = -4, 3
		case i&0xF0 == 0xD0: // 1101
			c.value, c.length = 11, 4
		case i&0xF0 == 0xF0: // 1111
			c.value, c.length = -11, 4
		case i&0xF8 == 0xC8: // 11001
			c.value, c.length = 20, 5
		case i&0xFC == 0xC0: // 110000
			c.value, c.length = -20, 6
		case i&0xFC == 0xC4: // 110001xx, meaning unknown
			c.value, c.length = 0, 8
		case i&0xF0 == 0xE0: // 1110xxxx
			c.value, c.length, c.absolute = (i&0x0F)<<4, 8, true
		}
	}
}

// SonixDecompress expands an SN9C10x compressed frame into an 8-bit
// Bayer mosaic of width*height bytes. Codes are relative to the pixel of
// the same color to the left, above, or their mean.
func SonixDecompress(dst, src []byte, width, height int) error {
	if len(dst) < width*height {
		return fmt.Errorf("sonix: destination holds %d bytes, need %d", len(dst), width*height)
	}
	byteAt := func(i int) int {
		if i < len(src) {
			return int(src[i])
		}
		return 0
	}
	bitpos := 0
	next := func() uint8 {
		addr := bitpos >> 3
		shift := uint(bitpos & 7)
		return uint8(byteAt(addr)<<shift | byteAt(addr+1)>>(8-shift))
	}

	out := 0
	for row := 0; row < height; row++ {
		col := 0
		// the first two pixels of the first two rows are raw
		if row < 2 {
			dst[out] = next()
			bitpos += 8
			out++
			dst[out] = next()
			bitpos += 8
			out++
			col += 2
		}

		for ; col < width; col++ {
			code := sonixTable[next()]
			bitpos += code.length

			val := code.value
			if !code.absolute {
				switch {
				case col < 2:
					val += int(dst[out-2*width])
				case row < 2:
					val += int(dst[out-2])
				default:
					val += (int(dst[out-2]) + int(dst[out-2*width])) / 2
				}
			}
			dst[out] = clamp(val)
			out++
		}
	}
	return nil
}
