package capture

import (
	"errors"
	"fmt"

	"github.com/adamlouis/capture/v4l2"
	"go.uber.org/zap"
)

const (
	// TargetBuffers is the number of buffers requested by default.
	TargetBuffers = 4
	// MinBuffers is the fewest buffers a ring can cycle with.
	MinBuffers = 2
)

// BufferState tracks who may touch a buffer.
type BufferState int

const (
	Unmapped BufferState = iota
	DeviceOwned
	ConsumerOwned
)

func (s BufferState) String() string {
	switch s {
	case Unmapped:
		return "unmapped"
	case DeviceOwned:
		return "device"
	case ConsumerOwned:
		return "consumer"
	}
	return fmt.Sprintf("BufferState(%d)", int(s))
}

// Buffer is one mapped ring slot.
type Buffer struct {
	Index  int
	Length int
	Used   int
	Data   []byte
	State  BufferState
}

// Frame returns the filled part of the buffer. Drivers that do not
// report bytes used get the whole mapping.
func (b *Buffer) Frame() []byte {
	if b.Used > 0 && b.Used <= len(b.Data) {
		return b.Data[:b.Used]
	}
	return b.Data
}

// Ring cycles mmapped buffers between the device and a single consumer.
// At most one buffer is ConsumerOwned; every other mapped buffer is queued.
type Ring struct {
	dev     v4l2.Device
	caps    v4l2.Capability
	signals SignalBlocker
	log     *zap.Logger

	buffers   []*Buffer
	owned     int
	requested bool
	streaming bool
}

func NewRing(dev v4l2.Device, caps v4l2.Capability, signals SignalBlocker, log *zap.Logger) *Ring {
	if log == nil {
		log = zap.NewNop()
	}
	if signals == nil {
		signals = NoSignalBlocker
	}
	return &Ring{dev: dev, caps: caps, signals: signals, log: log, owned: -1}
}

// Buffers returns the ring slots.
func (r *Ring) Buffers() []*Buffer {
	return r.buffers
}

// Owned returns the index of the ConsumerOwned buffer, or -1.
func (r *Ring) Owned() int {
	return r.owned
}

// Streaming reports whether the stream is on.
func (r *Ring) Streaming() bool {
	return r.streaming
}

// Establish maps count buffers, queues them all and starts the stream.
// On failure nothing stays mapped or requested.
func (r *Ring) Establish(count int) error {
	if len(r.buffers) > 0 {
		return deviceError("VIDIOC_REQBUFS", errors.New("ring already established"))
	}
	if count < MinBuffers {
		return deviceError("VIDIOC_REQBUFS", fmt.Errorf("asked for %d buffers, need at least %d", count, MinBuffers))
	}
	if !r.caps.Has(v4l2.CapStreaming) {
		return deviceError("VIDIOC_QUERYCAP", errors.New("device does not support streaming"))
	}

	granted, err := r.dev.RequestBuffers(uint32(count))
	if err != nil {
		return deviceError("VIDIOC_REQBUFS", err)
	}
	r.requested = true
	if granted < MinBuffers {
		r.release()
		return deviceError("VIDIOC_REQBUFS", fmt.Errorf("insufficient buffer memory: got %d buffers", granted))
	}
	r.log.Debug("buffers granted", zap.Uint32("requested", uint32(count)), zap.Uint32("granted", granted))

	for i := uint32(0); i < granted; i++ {
		info, err := r.dev.QueryBuffer(i)
		if err != nil {
			r.release()
			return deviceError("VIDIOC_QUERYBUF", err)
		}
		data, err := r.dev.Mmap(info.Offset, info.Length)
		if err != nil {
			r.release()
			return deviceError("mmap", err)
		}
		r.buffers = append(r.buffers, &Buffer{
			Index:  int(i),
			Length: int(info.Length),
			Data:   data,
			State:  Unmapped,
		})
	}

	for _, b := range r.buffers {
		if err := r.dev.Enqueue(uint32(b.Index)); err != nil {
			r.release()
			return deviceError("VIDIOC_QBUF", err)
		}
		b.State = DeviceOwned
	}

	if err := r.dev.StreamOn(); err != nil {
		r.release()
		return deviceError("VIDIOC_STREAMON", err)
	}
	r.streaming = true
	r.log.Info("streaming", zap.Int("buffers", len(r.buffers)))
	return nil
}

// AcquireNext hands the consumer's buffer back to the device and blocks
// until the next one is filled. The exchange runs with the ring's signal
// set blocked.
func (r *Ring) AcquireNext() (*Buffer, error) {
	if !r.streaming {
		return nil, ErrNotStreaming
	}
	restore, err := r.signals.Block()
	if err != nil {
		return nil, deviceError("pthread_sigmask", err)
	}
	defer restore()

	if r.owned >= 0 {
		b := r.buffers[r.owned]
		if err := r.dev.Enqueue(uint32(b.Index)); err != nil {
			return nil, deviceError("VIDIOC_QBUF", err)
		}
		b.State = DeviceOwned
		b.Used = 0
		r.owned = -1
	}

	info, err := r.dev.Dequeue()
	if err != nil {
		return nil, deviceError("VIDIOC_DQBUF", err)
	}
	if int(info.Index) >= len(r.buffers) {
		return nil, deviceError("VIDIOC_DQBUF", fmt.Errorf("buffer index %d out of range", info.Index))
	}
	b := r.buffers[info.Index]
	if b.State != DeviceOwned {
		return nil, deviceError("VIDIOC_DQBUF", fmt.Errorf("buffer %d is %s owned", b.Index, b.State))
	}
	if int(info.BytesUsed) > b.Length {
		return nil, deviceError("VIDIOC_DQBUF", fmt.Errorf("bytesused %d exceeds buffer length %d", info.BytesUsed, b.Length))
	}
	b.Used = int(info.BytesUsed)
	b.State = ConsumerOwned
	r.owned = b.Index
	return b, nil
}

// StreamOff stops the stream if it is on. Errors are logged.
func (r *Ring) StreamOff() {
	if !r.streaming {
		return
	}
	r.streaming = false
	if err := r.dev.StreamOff(); err != nil {
		r.log.Warn("VIDIOC_STREAMOFF failed", zap.Error(err))
	}
}

// Teardown stops the stream and unmaps every buffer. It is safe to call
// on an empty ring.
func (r *Ring) Teardown() {
	r.StreamOff()
	r.release()
}

func (r *Ring) release() {
	for _, b := range r.buffers {
		if b.Data == nil {
			continue
		}
		if err := r.dev.Munmap(b.Data); err != nil {
			r.log.Warn("munmap failed", zap.Int("buffer", b.Index), zap.Error(err))
		}
		b.Data = nil
		b.State = Unmapped
	}
	r.buffers = nil
	r.owned = -1
	if r.requested {
		r.requested = false
		if _, err := r.dev.RequestBuffers(0); err != nil {
			r.log.Debug("releasing buffers failed", zap.Error(err))
		}
	}
}
