package v4l2

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/adamlouis/capture/ioctl"
	"golang.org/x/sys/unix"
)

// Capability bits reported by VIDIOC_QUERYCAP.
const (
	CapVideoCapture uint32 = 0x00000001
	CapVideoOutput  uint32 = 0x00000002
	CapVideoOverlay uint32 = 0x00000004
	CapVBICapture   uint32 = 0x00000010
	CapVBIOutput    uint32 = 0x00000020
	CapRDSCapture   uint32 = 0x00000100
	CapTuner        uint32 = 0x00010000
	CapAudio        uint32 = 0x00020000
	CapRadio        uint32 = 0x00040000
	CapReadWrite    uint32 = 0x01000000
	CapAsyncIO      uint32 = 0x02000000
	CapStreaming    uint32 = 0x04000000
	CapDeviceCaps   uint32 = 0x80000000
)

const (
	bufTypeVideoCapture uint32 = 1
	memoryMmap          uint32 = 1

	// FieldAny lets the driver pick the field order.
	FieldAny uint32 = 0
)

const (
	frmsizeTypeDiscrete   uint32 = 1
	frmsizeTypeContinuous uint32 = 2
	frmsizeTypeStepwise   uint32 = 3
)

// Input types and status.
const (
	InputTypeTuner  uint32 = 1
	InputTypeCamera uint32 = 2

	TunerAnalogTV uint32 = 2
)

// StdID is a bitmask of analog video standards.
type StdID uint64

const (
	StdPAL   StdID = 0x000000FF
	StdNTSC  StdID = 0x0000B000
	StdSECAM StdID = 0x00FF0000
)

// JPEGMarkerDHT asks the driver to include Huffman tables in every frame.
const JPEGMarkerDHT uint32 = 1 << 3

// ControlID identifies a device control.
type ControlID uint32

const (
	CIDBase         ControlID = 0x00980900
	CIDBrightness             = CIDBase + 0
	CIDContrast               = CIDBase + 1
	CIDSaturation             = CIDBase + 2
	CIDHue                    = CIDBase + 3
	CIDAutoWhiteBal           = CIDBase + 12
	CIDRedBalance             = CIDBase + 14
	CIDBlueBalance            = CIDBase + 15
	CIDExposure               = CIDBase + 17
	CIDAutogain               = CIDBase + 18
	CIDGain                   = CIDBase + 19
	CIDPrivateBase  ControlID = 0x08000000

	// ZC301 vendor controls.
	CIDDACMagnitude = CIDPrivateBase
	CIDGreenBalance = CIDPrivateBase + 1
)

// Control types and flags.
const (
	CtrlTypeInteger uint32 = 1
	CtrlTypeBoolean uint32 = 2
	CtrlTypeMenu    uint32 = 3
	CtrlTypeButton  uint32 = 4

	CtrlFlagDisabled uint32 = 0x0001
)

var (
	VIDIOC_QUERYCAP        = ioctl.IoR(uintptr('V'), 0, unsafe.Sizeof(v4l2_capability{}))
	VIDIOC_ENUM_FMT        = ioctl.IoRW(uintptr('V'), 2, unsafe.Sizeof(v4l2_fmtdesc{}))
	VIDIOC_S_FMT           = ioctl.IoRW(uintptr('V'), 5, unsafe.Sizeof(v4l2_format{}))
	VIDIOC_REQBUFS         = ioctl.IoRW(uintptr('V'), 8, unsafe.Sizeof(v4l2_requestbuffers{}))
	VIDIOC_QUERYBUF        = ioctl.IoRW(uintptr('V'), 9, unsafe.Sizeof(v4l2_buffer{}))
	VIDIOC_QBUF            = ioctl.IoRW(uintptr('V'), 15, unsafe.Sizeof(v4l2_buffer{}))
	VIDIOC_DQBUF           = ioctl.IoRW(uintptr('V'), 17, unsafe.Sizeof(v4l2_buffer{}))
	VIDIOC_G_STD           = ioctl.IoR(uintptr('V'), 23, unsafe.Sizeof(StdID(0)))
	VIDIOC_S_STD           = ioctl.IoW(uintptr('V'), 24, unsafe.Sizeof(StdID(0)))
	VIDIOC_ENUMSTD         = ioctl.IoRW(uintptr('V'), 25, unsafe.Sizeof(v4l2_standard{}))
	VIDIOC_ENUMINPUT       = ioctl.IoRW(uintptr('V'), 26, unsafe.Sizeof(v4l2_input{}))
	VIDIOC_G_CTRL          = ioctl.IoRW(uintptr('V'), 27, unsafe.Sizeof(v4l2_control{}))
	VIDIOC_S_CTRL          = ioctl.IoRW(uintptr('V'), 28, unsafe.Sizeof(v4l2_control{}))
	VIDIOC_G_TUNER         = ioctl.IoRW(uintptr('V'), 29, unsafe.Sizeof(v4l2_tuner{}))
	VIDIOC_QUERYCTRL       = ioctl.IoRW(uintptr('V'), 36, unsafe.Sizeof(v4l2_queryctrl{}))
	VIDIOC_S_INPUT         = ioctl.IoRW(uintptr('V'), 39, 4)
	VIDIOC_S_FREQUENCY     = ioctl.IoW(uintptr('V'), 57, unsafe.Sizeof(v4l2_frequency{}))
	VIDIOC_G_JPEGCOMP      = ioctl.IoR(uintptr('V'), 61, unsafe.Sizeof(v4l2_jpegcompression{}))
	VIDIOC_S_JPEGCOMP      = ioctl.IoW(uintptr('V'), 62, unsafe.Sizeof(v4l2_jpegcompression{}))
	VIDIOC_TRY_FMT         = ioctl.IoRW(uintptr('V'), 64, unsafe.Sizeof(v4l2_format{}))
	VIDIOC_ENUM_FRAMESIZES = ioctl.IoRW(uintptr('V'), 74, unsafe.Sizeof(v4l2_frmsizeenum{}))
	//sizeof int32
	VIDIOC_STREAMON  = ioctl.IoW(uintptr('V'), 18, 4)
	VIDIOC_STREAMOFF = ioctl.IoW(uintptr('V'), 19, 4)

	NativeByteOrder = getNativeByteOrder()
)

type v4l2_capability struct {
	driver       [16]uint8
	card         [32]uint8
	bus_info     [32]uint8
	version      uint32
	capabilities uint32
	device_caps  uint32
	reserved     [3]uint32
}

type v4l2_input struct {
	index        uint32
	name         [32]uint8
	_type        uint32
	audioset     uint32
	tuner        uint32
	std          uint64
	status       uint32
	capabilities uint32
	reserved     [3]uint32
}

type v4l2_fract struct {
	numerator   uint32
	denominator uint32
}

type v4l2_standard struct {
	index       uint32
	id          uint64
	name        [24]uint8
	frameperiod v4l2_fract
	framelines  uint32
	reserved    [4]uint32
}

type v4l2_tuner struct {
	index      uint32
	name       [32]uint8
	_type      uint32
	capability uint32
	rangelow   uint32
	rangehigh  uint32
	rxsubchans uint32
	audmode    uint32
	signal     int32
	afc        int32
	reserved   [4]uint32
}

type v4l2_frequency struct {
	tuner     uint32
	_type     uint32
	frequency uint32
	reserved  [8]uint32
}

type v4l2_jpegcompression struct {
	quality      int32
	appn         int32
	app_len      int32
	app_data     [60]uint8
	com_len      int32
	com_data     [60]uint8
	jpeg_markers uint32
}

type v4l2_fmtdesc struct {
	index       uint32
	_type       uint32
	flags       uint32
	description [32]uint8
	pixelformat uint32
	reserved    [4]uint32
}

type v4l2_frmsizeenum struct {
	index        uint32
	pixel_format uint32
	_type        uint32
	union        [24]uint8
	reserved     [2]uint32
}

type v4l2_frmsize_discrete struct {
	Width  uint32
	Height uint32
}

type v4l2_frmsize_stepwise struct {
	Min_width   uint32
	Max_width   uint32
	Step_width  uint32
	Min_height  uint32
	Max_height  uint32
	Step_height uint32
}

// The kernel union holds pointers, so it is 8-byte aligned.
type v4l2_format_aligned_union struct {
	_    [0]uint64
	data [200]byte
}

type v4l2_format struct {
	_type uint32
	union v4l2_format_aligned_union
}

type v4l2_pix_format struct {
	Width        uint32
	Height       uint32
	Pixelformat  uint32
	Field        uint32
	Bytesperline uint32
	Sizeimage    uint32
	Colorspace   uint32
	Priv         uint32
	Flags        uint32
	Ycbcr_enc    uint32
	Quantization uint32
	Xfer_func    uint32
}

type v4l2_requestbuffers struct {
	count    uint32
	_type    uint32
	memory   uint32
	reserved [2]uint32
}

type v4l2_buffer struct {
	index     uint32
	_type     uint32
	bytesused uint32
	flags     uint32
	field     uint32
	timestamp unix.Timeval
	timecode  v4l2_timecode
	sequence  uint32
	memory    uint32
	union     [unsafe.Sizeof(uintptr(0))]uint8
	length    uint32
	reserved2 uint32
	reserved  uint32
}

type v4l2_timecode struct {
	_type    uint32
	flags    uint32
	frames   uint8
	seconds  uint8
	minutes  uint8
	hours    uint8
	userbits [4]uint8
}

type v4l2_queryctrl struct {
	id            uint32
	_type         uint32
	name          [32]uint8
	minimum       int32
	maximum       int32
	step          int32
	default_value int32
	flags         uint32
	reserved      [2]uint32
}

type v4l2_control struct {
	id    uint32
	value int32
}

func encodePixFormat(f *v4l2_format, pix PixFormat) error {
	raw := v4l2_pix_format{
		Width:        pix.Width,
		Height:       pix.Height,
		Pixelformat:  uint32(pix.PixelFormat),
		Field:        pix.Field,
		Bytesperline: pix.BytesPerLine,
		Sizeimage:    pix.SizeImage,
	}
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, NativeByteOrder, raw); err != nil {
		return err
	}
	copy(f.union.data[:], buf.Bytes())
	return nil
}

func decodePixFormat(f *v4l2_format) (PixFormat, error) {
	raw := &v4l2_pix_format{}
	if err := binary.Read(bytes.NewReader(f.union.data[:]), NativeByteOrder, raw); err != nil {
		return PixFormat{}, err
	}
	return PixFormat{
		Width:        raw.Width,
		Height:       raw.Height,
		PixelFormat:  PixelFormat(raw.Pixelformat),
		Field:        raw.Field,
		BytesPerLine: raw.Bytesperline,
		SizeImage:    raw.Sizeimage,
		Colorspace:   raw.Colorspace,
	}, nil
}

func decodeFrameSize(e *v4l2_frmsizeenum) (FrameSize, error) {
	var fs FrameSize
	switch e._type {
	case frmsizeTypeDiscrete:
		discrete := &v4l2_frmsize_discrete{}
		if err := binary.Read(bytes.NewReader(e.union[:]), NativeByteOrder, discrete); err != nil {
			return fs, err
		}
		fs.MinWidth, fs.MaxWidth = discrete.Width, discrete.Width
		fs.MinHeight, fs.MaxHeight = discrete.Height, discrete.Height

	case frmsizeTypeContinuous, frmsizeTypeStepwise:
		stepwise := &v4l2_frmsize_stepwise{}
		if err := binary.Read(bytes.NewReader(e.union[:]), NativeByteOrder, stepwise); err != nil {
			return fs, err
		}
		fs.MinWidth = stepwise.Min_width
		fs.MaxWidth = stepwise.Max_width
		fs.StepWidth = stepwise.Step_width
		fs.MinHeight = stepwise.Min_height
		fs.MaxHeight = stepwise.Max_height
		fs.StepHeight = stepwise.Step_height
	}
	return fs, nil
}

// bufferOffset reads the mmap offset member of the v4l2_buffer union.
func bufferOffset(b *v4l2_buffer) uint32 {
	return *(*uint32)(unsafe.Pointer(&b.union[0]))
}

func getNativeByteOrder() binary.ByteOrder {
	var i int32 = 0x01020304
	u := unsafe.Pointer(&i)
	pb := (*byte)(u)
	b := *pb
	if b == 0x04 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// CToGoString converts a NUL terminated byte array to a string.
func CToGoString(c []byte) string {
	n := -1
	for i, b := range c {
		if b == 0 {
			break
		}
		n = i
	}
	return string(c[:n+1])
}
