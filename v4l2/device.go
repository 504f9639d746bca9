package v4l2

// Capability is the result of VIDIOC_QUERYCAP.
type Capability struct {
	Driver       string
	Card         string
	BusInfo      string
	Version      uint32
	Capabilities uint32
	DeviceCaps   uint32
}

// Effective returns the capability mask of the opened node. Drivers that
// set CapDeviceCaps report it separately from the physical device.
func (c Capability) Effective() uint32 {
	if c.Capabilities&CapDeviceCaps != 0 {
		return c.DeviceCaps
	}
	return c.Capabilities
}

// Has reports whether every bit of mask is set in the effective mask.
func (c Capability) Has(mask uint32) bool {
	return c.Effective()&mask == mask
}

// Input describes one video input.
type Input struct {
	Index        uint32
	Name         string
	Type         uint32
	AudioSet     uint32
	Tuner        uint32
	Std          StdID
	Status       uint32
	Capabilities uint32
}

// Standard is one entry of the standards enumeration.
type Standard struct {
	Index      uint32
	ID         StdID
	Name       string
	FrameLines uint32
}

// Tuner describes a tuner attached to an input.
type Tuner struct {
	Index     uint32
	Name      string
	Type      uint32
	RangeLow  uint32
	RangeHigh uint32
	Signal    int32
}

// Frequency is a tuner frequency in units of 62.5 kHz.
type Frequency struct {
	Tuner     uint32
	Type      uint32
	Frequency uint32
}

// FormatDesc is one pixel layout advertised by the device.
type FormatDesc struct {
	Index       uint32
	Flags       uint32
	Description string
	PixelFormat PixelFormat
}

// PixFormat is the single-planar capture format.
type PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  PixelFormat
	Field        uint32
	BytesPerLine uint32
	SizeImage    uint32
	Colorspace   uint32
}

// BufferInfo is the subset of v4l2_buffer the ring needs.
type BufferInfo struct {
	Index     uint32
	Offset    uint32
	Length    uint32
	BytesUsed uint32
	Sequence  uint32
}

// ControlInfo is the result of VIDIOC_QUERYCTRL.
type ControlInfo struct {
	ID      ControlID
	Type    uint32
	Name    string
	Min     int32
	Max     int32
	Step    int32
	Default int32
	Flags   uint32
}

// Device is the catalog of requests a capture session issues against
// a video node. Webcam implements it against a real file descriptor.
type Device interface {
	Capability() (Capability, error)

	EnumInput(index uint32) (Input, error)
	SetInput(index uint32) error
	Standard() (StdID, error)
	EnumStandard(index uint32) (Standard, error)
	SetStandard(id StdID) error
	Tuner(index uint32) (Tuner, error)
	SetFrequency(f Frequency) error

	EnumFormat(index uint32) (FormatDesc, error)
	EnumFrameSize(format PixelFormat, index uint32) (FrameSize, error)
	TryFormat(f PixFormat) (PixFormat, error)
	SetFormat(f PixFormat) (PixFormat, error)
	// EnableJPEGMarkers ORs markers into the driver's JPEG marker set.
	EnableJPEGMarkers(markers uint32) error

	RequestBuffers(count uint32) (uint32, error)
	QueryBuffer(index uint32) (BufferInfo, error)
	Enqueue(index uint32) error
	Dequeue() (BufferInfo, error)
	StreamOn() error
	StreamOff() error
	Mmap(offset, length uint32) ([]byte, error)
	Munmap(b []byte) error

	QueryControl(id ControlID) (ControlInfo, error)
	Control(id ControlID) (int32, error)
	SetControl(id ControlID, value int32) error

	Close() error
}
