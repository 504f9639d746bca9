// Package v4l2 talks to Video4Linux2 capture nodes.
package v4l2

import (
	"sync"
	"unsafe"

	"github.com/adamlouis/capture/ioctl"
	"golang.org/x/sys/unix"
)

// Webcam is a Device backed by an open video node.
type Webcam struct {
	fd   uintptr
	path string

	closeOnce sync.Once
	closeErr  error
}

var _ Device = (*Webcam)(nil)

// Open opens a capture node for blocking read/write access.
func Open(path string) (*Webcam, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &Webcam{fd: uintptr(fd), path: path}, nil
}

// Path returns the node the webcam was opened from.
func (w *Webcam) Path() string {
	return w.path
}

// Close closes the descriptor. It may be called from another goroutine to
// abort a blocked Dequeue; later calls return the first result.
func (w *Webcam) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = unix.Close(int(w.fd))
	})
	return w.closeErr
}

func (w *Webcam) ioctl(request uintptr, arg unsafe.Pointer) error {
	return ioctl.Ioctl(w.fd, request, arg)
}

func (w *Webcam) Capability() (Capability, error) {
	caps := &v4l2_capability{}
	if err := w.ioctl(VIDIOC_QUERYCAP, unsafe.Pointer(caps)); err != nil {
		return Capability{}, err
	}
	return Capability{
		Driver:       CToGoString(caps.driver[:]),
		Card:         CToGoString(caps.card[:]),
		BusInfo:      CToGoString(caps.bus_info[:]),
		Version:      caps.version,
		Capabilities: caps.capabilities,
		DeviceCaps:   caps.device_caps,
	}, nil
}

func (w *Webcam) EnumInput(index uint32) (Input, error) {
	in := &v4l2_input{index: index}
	if err := w.ioctl(VIDIOC_ENUMINPUT, unsafe.Pointer(in)); err != nil {
		return Input{}, err
	}
	return Input{
		Index:        in.index,
		Name:         CToGoString(in.name[:]),
		Type:         in._type,
		AudioSet:     in.audioset,
		Tuner:        in.tuner,
		Std:          StdID(in.std),
		Status:       in.status,
		Capabilities: in.capabilities,
	}, nil
}

func (w *Webcam) SetInput(index uint32) error {
	v := int32(index)
	return w.ioctl(VIDIOC_S_INPUT, unsafe.Pointer(&v))
}

func (w *Webcam) Standard() (StdID, error) {
	var id StdID
	err := w.ioctl(VIDIOC_G_STD, unsafe.Pointer(&id))
	return id, err
}

func (w *Webcam) EnumStandard(index uint32) (Standard, error) {
	std := &v4l2_standard{index: index}
	if err := w.ioctl(VIDIOC_ENUMSTD, unsafe.Pointer(std)); err != nil {
		return Standard{}, err
	}
	return Standard{
		Index:      std.index,
		ID:         StdID(std.id),
		Name:       CToGoString(std.name[:]),
		FrameLines: std.framelines,
	}, nil
}

func (w *Webcam) SetStandard(id StdID) error {
	return w.ioctl(VIDIOC_S_STD, unsafe.Pointer(&id))
}

func (w *Webcam) Tuner(index uint32) (Tuner, error) {
	t := &v4l2_tuner{index: index}
	if err := w.ioctl(VIDIOC_G_TUNER, unsafe.Pointer(t)); err != nil {
		return Tuner{}, err
	}
	return Tuner{
		Index:     t.index,
		Name:      CToGoString(t.name[:]),
		Type:      t._type,
		RangeLow:  t.rangelow,
		RangeHigh: t.rangehigh,
		Signal:    t.signal,
	}, nil
}

func (w *Webcam) SetFrequency(f Frequency) error {
	freq := &v4l2_frequency{
		tuner:     f.Tuner,
		_type:     f.Type,
		frequency: f.Frequency,
	}
	return w.ioctl(VIDIOC_S_FREQUENCY, unsafe.Pointer(freq))
}

func (w *Webcam) EnumFormat(index uint32) (FormatDesc, error) {
	fmtdesc := &v4l2_fmtdesc{
		index: index,
		_type: bufTypeVideoCapture,
	}
	if err := w.ioctl(VIDIOC_ENUM_FMT, unsafe.Pointer(fmtdesc)); err != nil {
		return FormatDesc{}, err
	}
	return FormatDesc{
		Index:       fmtdesc.index,
		Flags:       fmtdesc.flags,
		Description: CToGoString(fmtdesc.description[:]),
		PixelFormat: PixelFormat(fmtdesc.pixelformat),
	}, nil
}

func (w *Webcam) EnumFrameSize(format PixelFormat, index uint32) (FrameSize, error) {
	frmsizeenum := &v4l2_frmsizeenum{
		index:        index,
		pixel_format: uint32(format),
	}
	if err := w.ioctl(VIDIOC_ENUM_FRAMESIZES, unsafe.Pointer(frmsizeenum)); err != nil {
		return FrameSize{}, err
	}
	return decodeFrameSize(frmsizeenum)
}

func (w *Webcam) TryFormat(pix PixFormat) (PixFormat, error) {
	return w.format(VIDIOC_TRY_FMT, pix)
}

func (w *Webcam) SetFormat(pix PixFormat) (PixFormat, error) {
	return w.format(VIDIOC_S_FMT, pix)
}

func (w *Webcam) format(request uintptr, pix PixFormat) (PixFormat, error) {
	format := &v4l2_format{
		_type: bufTypeVideoCapture,
	}
	if err := encodePixFormat(format, pix); err != nil {
		return PixFormat{}, err
	}
	if err := w.ioctl(request, unsafe.Pointer(format)); err != nil {
		return PixFormat{}, err
	}
	return decodePixFormat(format)
}

func (w *Webcam) EnableJPEGMarkers(markers uint32) error {
	comp := &v4l2_jpegcompression{}
	if err := w.ioctl(VIDIOC_G_JPEGCOMP, unsafe.Pointer(comp)); err != nil {
		return err
	}
	comp.jpeg_markers |= markers
	return w.ioctl(VIDIOC_S_JPEGCOMP, unsafe.Pointer(comp))
}

func (w *Webcam) RequestBuffers(count uint32) (uint32, error) {
	req := &v4l2_requestbuffers{
		count:  count,
		_type:  bufTypeVideoCapture,
		memory: memoryMmap,
	}
	if err := w.ioctl(VIDIOC_REQBUFS, unsafe.Pointer(req)); err != nil {
		return 0, err
	}
	return req.count, nil
}

func (w *Webcam) QueryBuffer(index uint32) (BufferInfo, error) {
	buf := &v4l2_buffer{
		index:  index,
		_type:  bufTypeVideoCapture,
		memory: memoryMmap,
	}
	if err := w.ioctl(VIDIOC_QUERYBUF, unsafe.Pointer(buf)); err != nil {
		return BufferInfo{}, err
	}
	return bufferInfo(buf), nil
}

func (w *Webcam) Enqueue(index uint32) error {
	buf := &v4l2_buffer{
		index:  index,
		_type:  bufTypeVideoCapture,
		memory: memoryMmap,
	}
	return w.ioctl(VIDIOC_QBUF, unsafe.Pointer(buf))
}

func (w *Webcam) Dequeue() (BufferInfo, error) {
	buf := &v4l2_buffer{
		_type:  bufTypeVideoCapture,
		memory: memoryMmap,
	}
	if err := w.ioctl(VIDIOC_DQBUF, unsafe.Pointer(buf)); err != nil {
		return BufferInfo{}, err
	}
	return bufferInfo(buf), nil
}

func bufferInfo(buf *v4l2_buffer) BufferInfo {
	return BufferInfo{
		Index:     buf.index,
		Offset:    bufferOffset(buf),
		Length:    buf.length,
		BytesUsed: buf.bytesused,
		Sequence:  buf.sequence,
	}
}

func (w *Webcam) StreamOn() error {
	var uintPointer uint32 = bufTypeVideoCapture
	return w.ioctl(VIDIOC_STREAMON, unsafe.Pointer(&uintPointer))
}

func (w *Webcam) StreamOff() error {
	var uintPointer uint32 = bufTypeVideoCapture
	return w.ioctl(VIDIOC_STREAMOFF, unsafe.Pointer(&uintPointer))
}

// Mmap maps a driver buffer read/write and shared with the device.
func (w *Webcam) Mmap(offset, length uint32) ([]byte, error) {
	return unix.Mmap(int(w.fd), int64(offset), int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

func (w *Webcam) Munmap(b []byte) error {
	return unix.Munmap(b)
}

func (w *Webcam) QueryControl(id ControlID) (ControlInfo, error) {
	query := &v4l2_queryctrl{id: uint32(id)}
	if err := w.ioctl(VIDIOC_QUERYCTRL, unsafe.Pointer(query)); err != nil {
		return ControlInfo{}, err
	}
	return ControlInfo{
		ID:      ControlID(query.id),
		Type:    query._type,
		Name:    CToGoString(query.name[:]),
		Min:     query.minimum,
		Max:     query.maximum,
		Step:    query.step,
		Default: query.default_value,
		Flags:   query.flags,
	}, nil
}

func (w *Webcam) Control(id ControlID) (int32, error) {
	ctrl := &v4l2_control{id: uint32(id)}
	if err := w.ioctl(VIDIOC_G_CTRL, unsafe.Pointer(ctrl)); err != nil {
		return 0, err
	}
	return ctrl.value, nil
}

func (w *Webcam) SetControl(id ControlID, value int32) error {
	ctrl := &v4l2_control{
		id:    uint32(id),
		value: value,
	}
	return w.ioctl(VIDIOC_S_CTRL, unsafe.Pointer(ctrl))
}
