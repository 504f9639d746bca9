package capture

import (
	"errors"
	"fmt"

	"github.com/adamlouis/capture/v4l2"
	"golang.org/x/sys/unix"
)

type controlWrite struct {
	id    v4l2.ControlID
	value int32
}

type fakeControl struct {
	info  v4l2.ControlInfo
	value int32
}

// fakeDevice is an in-memory capture node. Buffers are plain Go memory
// handed out by Mmap at offset index<<12.
type fakeDevice struct {
	caps   v4l2.Capability
	capErr error

	inputs      []v4l2.Input
	setInputErr error
	inputSet    []uint32
	std         v4l2.StdID
	stdErr      error
	standards   []v4l2.Standard
	setStdErr   error
	stdSet      []v4l2.StdID
	tuners      map[uint32]v4l2.Tuner
	freqErr     error
	freqs       []v4l2.Frequency

	formats     []v4l2.FormatDesc
	sizes       map[v4l2.PixelFormat][]v4l2.FrameSize
	try         func(v4l2.PixFormat) (v4l2.PixFormat, error)
	setFmtErr   error
	committed   []v4l2.PixFormat
	markers     uint32
	markerCalls int

	maxBuffers  uint32
	bufLen      uint32
	reqErr      error
	queryErrAt  int
	mmapErrAt   int
	qbufErr     error
	dqbufErr    error
	streamOnErr error
	fill        func(index uint32, b []byte) uint32

	requests  []uint32
	bufs      [][]byte
	mapped    map[uint32]bool
	munmapped map[uint32]int
	queue     []uint32
	queued    map[uint32]bool
	streaming bool
	streamOns int
	dequeues  int

	controls   map[v4l2.ControlID]*fakeControl
	setCtrlErr map[v4l2.ControlID]error
	writes     []controlWrite
	queryCalls int

	closed     int
	violations []string
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		caps: v4l2.Capability{
			Driver:       "fake",
			Card:         "Fake Camera",
			BusInfo:      "platform:fake",
			Capabilities: v4l2.CapVideoCapture | v4l2.CapStreaming,
		},
		inputs: []v4l2.Input{
			{Index: 0, Name: "Camera 1", Type: v4l2.InputTypeCamera},
		},
		stdErr: unix.EINVAL,
		formats: []v4l2.FormatDesc{
			{Index: 0, Description: "YUYV 4:2:2", PixelFormat: v4l2.PixelFormatYUYV},
		},
		maxBuffers: 8,
		bufLen:     4096,
		queryErrAt: -1,
		mmapErrAt:  -1,
		mapped:     map[uint32]bool{},
		munmapped:  map[uint32]int{},
		queued:     map[uint32]bool{},
		controls:   map[v4l2.ControlID]*fakeControl{},
		setCtrlErr: map[v4l2.ControlID]error{},
	}
}

func (d *fakeDevice) addControl(id v4l2.ControlID, typ uint32, min, max, def int32) {
	d.controls[id] = &fakeControl{
		info:  v4l2.ControlInfo{ID: id, Type: typ, Name: fmt.Sprintf("ctrl-%x", uint32(id)), Min: min, Max: max, Step: 1, Default: def},
		value: def,
	}
}

func (d *fakeDevice) violate(format string, args ...interface{}) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

func (d *fakeDevice) Capability() (v4l2.Capability, error) {
	return d.caps, d.capErr
}

func (d *fakeDevice) EnumInput(index uint32) (v4l2.Input, error) {
	if int(index) >= len(d.inputs) {
		return v4l2.Input{}, unix.EINVAL
	}
	return d.inputs[index], nil
}

func (d *fakeDevice) SetInput(index uint32) error {
	if d.setInputErr != nil {
		return d.setInputErr
	}
	d.inputSet = append(d.inputSet, index)
	return nil
}

func (d *fakeDevice) Standard() (v4l2.StdID, error) {
	return d.std, d.stdErr
}

func (d *fakeDevice) EnumStandard(index uint32) (v4l2.Standard, error) {
	if int(index) >= len(d.standards) {
		return v4l2.Standard{}, unix.EINVAL
	}
	return d.standards[index], nil
}

func (d *fakeDevice) SetStandard(id v4l2.StdID) error {
	if d.setStdErr != nil {
		return d.setStdErr
	}
	d.stdSet = append(d.stdSet, id)
	return nil
}

func (d *fakeDevice) Tuner(index uint32) (v4l2.Tuner, error) {
	t, ok := d.tuners[index]
	if !ok {
		return v4l2.Tuner{}, unix.EINVAL
	}
	return t, nil
}

func (d *fakeDevice) SetFrequency(f v4l2.Frequency) error {
	if d.freqErr != nil {
		return d.freqErr
	}
	d.freqs = append(d.freqs, f)
	return nil
}

func (d *fakeDevice) EnumFormat(index uint32) (v4l2.FormatDesc, error) {
	if int(index) >= len(d.formats) {
		return v4l2.FormatDesc{}, unix.EINVAL
	}
	return d.formats[index], nil
}

func (d *fakeDevice) EnumFrameSize(format v4l2.PixelFormat, index uint32) (v4l2.FrameSize, error) {
	sizes := d.sizes[format]
	if int(index) >= len(sizes) {
		return v4l2.FrameSize{}, unix.EINVAL
	}
	return sizes[index], nil
}

func (d *fakeDevice) TryFormat(f v4l2.PixFormat) (v4l2.PixFormat, error) {
	if d.try != nil {
		return d.try(f)
	}
	return f, nil
}

func (d *fakeDevice) SetFormat(f v4l2.PixFormat) (v4l2.PixFormat, error) {
	if d.setFmtErr != nil {
		return v4l2.PixFormat{}, d.setFmtErr
	}
	d.committed = append(d.committed, f)
	return f, nil
}

func (d *fakeDevice) EnableJPEGMarkers(markers uint32) error {
	d.markerCalls++
	d.markers |= markers
	return nil
}

func (d *fakeDevice) RequestBuffers(count uint32) (uint32, error) {
	d.requests = append(d.requests, count)
	if d.reqErr != nil {
		return 0, d.reqErr
	}
	if count == 0 {
		for i := range d.bufs {
			if d.mapped[uint32(i)] {
				d.violate("REQBUFS 0 while buffer %d is mapped", i)
			}
		}
		d.bufs = nil
		d.queue = nil
		d.queued = map[uint32]bool{}
		return 0, nil
	}
	if d.streaming {
		d.violate("REQBUFS while streaming")
	}
	if count > d.maxBuffers {
		count = d.maxBuffers
	}
	d.bufs = make([][]byte, count)
	for i := range d.bufs {
		d.bufs[i] = make([]byte, d.bufLen)
	}
	d.queue = nil
	d.queued = map[uint32]bool{}
	return count, nil
}

func (d *fakeDevice) QueryBuffer(index uint32) (v4l2.BufferInfo, error) {
	if int(index) == d.queryErrAt {
		return v4l2.BufferInfo{}, unix.EINVAL
	}
	if int(index) >= len(d.bufs) {
		return v4l2.BufferInfo{}, unix.EINVAL
	}
	return v4l2.BufferInfo{Index: index, Offset: index << 12, Length: d.bufLen}, nil
}

func (d *fakeDevice) Mmap(offset, length uint32) ([]byte, error) {
	index := offset >> 12
	if int(index) == d.mmapErrAt {
		return nil, unix.ENOMEM
	}
	if int(index) >= len(d.bufs) || length != d.bufLen {
		return nil, unix.EINVAL
	}
	if d.mapped[index] {
		d.violate("buffer %d mapped twice", index)
	}
	d.mapped[index] = true
	return d.bufs[index], nil
}

func (d *fakeDevice) Munmap(b []byte) error {
	for i, buf := range d.bufs {
		if len(b) > 0 && len(buf) > 0 && &buf[0] == &b[0] {
			if !d.mapped[uint32(i)] {
				d.violate("buffer %d unmapped while not mapped", i)
			}
			d.mapped[uint32(i)] = false
			d.munmapped[uint32(i)]++
			return nil
		}
	}
	d.violate("munmap of unknown memory")
	return unix.EINVAL
}

func (d *fakeDevice) Enqueue(index uint32) error {
	if d.qbufErr != nil {
		return d.qbufErr
	}
	if int(index) >= len(d.bufs) {
		return unix.EINVAL
	}
	if d.queued[index] {
		d.violate("buffer %d queued twice", index)
	}
	d.queued[index] = true
	d.queue = append(d.queue, index)
	return nil
}

func (d *fakeDevice) Dequeue() (v4l2.BufferInfo, error) {
	if d.dqbufErr != nil {
		return v4l2.BufferInfo{}, d.dqbufErr
	}
	if !d.streaming {
		return v4l2.BufferInfo{}, unix.EINVAL
	}
	if len(d.queue) == 0 {
		return v4l2.BufferInfo{}, errors.New("dequeue would block forever")
	}
	index := d.queue[0]
	d.queue = d.queue[1:]
	d.queued[index] = false
	d.dequeues++

	used := d.bufLen
	if d.fill != nil {
		used = d.fill(index, d.bufs[index])
	}
	return v4l2.BufferInfo{Index: index, Offset: index << 12, Length: d.bufLen, BytesUsed: used}, nil
}

func (d *fakeDevice) StreamOn() error {
	if d.streamOnErr != nil {
		return d.streamOnErr
	}
	d.streaming = true
	d.streamOns++
	return nil
}

func (d *fakeDevice) StreamOff() error {
	d.streaming = false
	return nil
}

func (d *fakeDevice) QueryControl(id v4l2.ControlID) (v4l2.ControlInfo, error) {
	d.queryCalls++
	c, ok := d.controls[id]
	if !ok {
		return v4l2.ControlInfo{}, unix.EINVAL
	}
	return c.info, nil
}

func (d *fakeDevice) Control(id v4l2.ControlID) (int32, error) {
	c, ok := d.controls[id]
	if !ok {
		return 0, unix.EINVAL
	}
	return c.value, nil
}

func (d *fakeDevice) SetControl(id v4l2.ControlID, value int32) error {
	d.writes = append(d.writes, controlWrite{id, value})
	if err := d.setCtrlErr[id]; err != nil {
		return err
	}
	c, ok := d.controls[id]
	if !ok {
		return unix.EINVAL
	}
	c.value = value
	return nil
}

func (d *fakeDevice) Close() error {
	d.closed++
	return nil
}

func (d *fakeDevice) mappedCount() int {
	n := 0
	for _, m := range d.mapped {
		if m {
			n++
		}
	}
	return n
}

// countingBlocker records Block/restore pairs.
type countingBlocker struct {
	blocks, restores int
}

func (c *countingBlocker) Block() (func(), error) {
	c.blocks++
	return func() { c.restores++ }, nil
}
