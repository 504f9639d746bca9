package frame

// RGB24ToYUV420 converts packed RGB24 to planar YUV 4:2:0. Chroma is the
// mean of each 2x2 block. width and height must be even.
func RGB24ToYUV420(dst, src []byte, width, height int) {
	planeY := dst[:width*height]
	planeU := dst[width*height : width*height+width*height/4]
	planeV := dst[width*height+width*height/4 : Size(width, height)]

	for y := 0; y < height; y += 2 {
		for x := 0; x < width; x += 2 {
			var u, v int
			for _, p := range [4][2]int{{x, y}, {x + 1, y}, {x, y + 1}, {x + 1, y + 1}} {
				i := p[1]*width + p[0]
				r := int(src[i*3])
				g := int(src[i*3+1])
				b := int(src[i*3+2])
				planeY[i] = uint8((9796*r + 19235*g + 3736*b) >> 15)
				u += -4784*r - 9437*g + 14221*b
				v += 20218*r - 16941*g - 3277*b
			}
			c := (y/2)*(width/2) + x/2
			planeU[c] = clamp((u >> 17) + 128)
			planeV[c] = clamp((v >> 17) + 128)
		}
	}
}

// YUYVToYUV420 converts packed 4:2:2 to planar 4:2:0, averaging the
// chroma of each pair of rows.
func YUYVToYUV420(dst, src []byte, width, height int) {
	planeY := dst[:width*height]
	planeU := dst[width*height : width*height+width*height/4]
	planeV := dst[width*height+width*height/4 : Size(width, height)]
	stride := width * 2

	for i := 0; i < width*height; i++ {
		planeY[i] = src[i*2]
	}
	for y := 0; y < height; y += 2 {
		row0 := src[y*stride:]
		row1 := src[(y+1)*stride:]
		for x := 0; x < width; x += 2 {
			c := (y/2)*(width/2) + x/2
			planeU[c] = uint8((int(row0[x*2+1]) + int(row1[x*2+1])) >> 1)
			planeV[c] = uint8((int(row0[x*2+3]) + int(row1[x*2+3])) >> 1)
		}
	}
}

// YUV422PToYUV420 converts planar 4:2:2 to planar 4:2:0.
func YUV422PToYUV420(dst, src []byte, width, height int) {
	n := width * height
	half := width / 2
	copy(dst[:n], src[:n])

	inU := src[n : n+n/2]
	inV := src[n+n/2 : 2*n]
	planeU := dst[n : n+n/4]
	planeV := dst[n+n/4 : Size(width, height)]
	for y := 0; y < height; y += 2 {
		for x := 0; x < half; x++ {
			c := (y/2)*half + x
			planeU[c] = uint8((int(inU[y*half+x]) + int(inU[(y+1)*half+x])) >> 1)
			planeV[c] = uint8((int(inV[y*half+x]) + int(inV[(y+1)*half+x])) >> 1)
		}
	}
}

func clamp(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
