package frame

// BayerToRGB24 demosaics an 8-bit BGGR mosaic into packed RGB24 by
// bilinear interpolation. Edges are mirrored so the pattern phase holds.
func BayerToRGB24(dst, src []byte, width, height int) {
	at := func(x, y int) int {
		if x < 0 {
			x = -x
		} else if x >= width {
			x = 2*width - 2 - x
		}
		if y < 0 {
			y = -y
		} else if y >= height {
			y = 2*height - 2 - y
		}
		return int(src[y*width+x])
	}
	cross := func(x, y int) uint8 {
		return uint8((at(x-1, y) + at(x+1, y) + at(x, y-1) + at(x, y+1)) / 4)
	}
	diagonal := func(x, y int) uint8 {
		return uint8((at(x-1, y-1) + at(x+1, y-1) + at(x-1, y+1) + at(x+1, y+1)) / 4)
	}
	horizontal := func(x, y int) uint8 {
		return uint8((at(x-1, y) + at(x+1, y)) / 2)
	}
	vertical := func(x, y int) uint8 {
		return uint8((at(x, y-1) + at(x, y+1)) / 2)
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			o := (y*width + x) * 3
			self := uint8(at(x, y))
			switch {
			case y&1 == 0 && x&1 == 0: // blue
				dst[o], dst[o+1], dst[o+2] = diagonal(x, y), cross(x, y), self
			case y&1 == 0: // green on a blue row
				dst[o], dst[o+1], dst[o+2] = vertical(x, y), self, horizontal(x, y)
			case x&1 == 0: // green on a red row
				dst[o], dst[o+1], dst[o+2] = horizontal(x, y), self, vertical(x, y)
			default: // red
				dst[o], dst[o+1], dst[o+2] = self, cross(x, y), diagonal(x, y)
			}
		}
	}
}
