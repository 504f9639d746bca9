//go:build linux && (amd64 || arm64)

package v4l2

import "unsafe"

// Each line fails to compile if the mirror drifts from the kernel ABI.
var (
	_ [0]struct{} = [unsafe.Sizeof(v4l2_capability{}) - 104]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2_input{}) - 80]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2_standard{}) - 72]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2_tuner{}) - 84]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2_frequency{}) - 44]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2_jpegcompression{}) - 140]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2_fmtdesc{}) - 64]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2_frmsizeenum{}) - 44]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2_format{}) - 208]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2_requestbuffers{}) - 20]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2_buffer{}) - 88]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2_queryctrl{}) - 68]struct{}{}
	_ [0]struct{} = [unsafe.Sizeof(v4l2_control{}) - 8]struct{}{}
)
