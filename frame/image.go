package frame

import "image"

// Image wraps a canonical frame as an image without copying.
func Image(buf []byte, width, height int) *image.YCbCr {
	n := width * height
	c := n / 4
	return &image.YCbCr{
		Y:              buf[:n],
		Cb:             buf[n : n+c],
		Cr:             buf[n+c : n+2*c],
		YStride:        width,
		CStride:        width / 2,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, width, height),
	}
}
