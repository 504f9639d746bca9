package capture

import (
	"errors"
	"reflect"
	"testing"

	"github.com/adamlouis/capture/v4l2"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sys/unix"
)

func TestSelectDefaultInputIsZero(t *testing.T) {
	run := func(index int) *fakeDevice {
		dev := newFakeDevice()
		dev.std = v4l2.StdPAL
		dev.stdErr = nil
		if _, err := NewInputSelector(dev, zaptest.NewLogger(t)).Select(InputParams{Index: index, Norm: NormNTSC}); err != nil {
			t.Fatalf("input %d: %v", index, err)
		}
		return dev
	}
	eight, zero := run(DefaultInput), run(0)
	if !reflect.DeepEqual(eight.inputSet, zero.inputSet) || !reflect.DeepEqual(eight.stdSet, zero.stdSet) {
		t.Errorf("input 8 issued %v/%v, input 0 issued %v/%v", eight.inputSet, eight.stdSet, zero.inputSet, zero.stdSet)
	}
	if !reflect.DeepEqual(eight.inputSet, []uint32{0}) {
		t.Errorf("S_INPUT calls = %v", eight.inputSet)
	}
}

func TestSelectInputFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeDevice)
		index int
		op    string
	}{
		{"not enumerable", func(*fakeDevice) {}, 3, "VIDIOC_ENUMINPUT"},
		{"rejected", func(d *fakeDevice) { d.setInputErr = unix.EBUSY }, 0, "VIDIOC_S_INPUT"},
		{"standard rejected", func(d *fakeDevice) {
			d.std, d.stdErr = v4l2.StdNTSC, nil
			d.setStdErr = unix.EINVAL
		}, 0, "VIDIOC_S_STD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newFakeDevice()
			tt.setup(dev)
			_, err := NewInputSelector(dev, zaptest.NewLogger(t)).Select(InputParams{Index: tt.index})
			var de *DeviceError
			if !errors.As(err, &de) {
				t.Fatalf("got %v, want *DeviceError", err)
			}
			if de.Op != tt.op {
				t.Errorf("op = %q, want %q", de.Op, tt.op)
			}
		})
	}
}

func TestSelectUnknownStandard(t *testing.T) {
	dev := newFakeDevice()
	dev.stdErr = unix.ENOTTY
	if _, err := NewInputSelector(dev, zaptest.NewLogger(t)).Select(InputParams{Norm: NormSECAM}); err != nil {
		t.Fatal(err)
	}
	if len(dev.stdSet) != 0 {
		t.Errorf("standard set on a device without standards: %v", dev.stdSet)
	}
}

func TestSelectNorm(t *testing.T) {
	tests := []struct {
		norm int
		want v4l2.StdID
	}{
		{NormPAL, v4l2.StdPAL},
		{NormNTSC, v4l2.StdNTSC},
		{NormSECAM, v4l2.StdSECAM},
		{7, v4l2.StdPAL},
	}
	for _, tt := range tests {
		dev := newFakeDevice()
		dev.std, dev.stdErr = v4l2.StdPAL|v4l2.StdNTSC, nil
		dev.standards = []v4l2.Standard{
			{Index: 0, ID: v4l2.StdPAL, Name: "PAL"},
			{Index: 1, ID: v4l2.StdNTSC, Name: "NTSC"},
			{Index: 2, ID: v4l2.StdSECAM, Name: "SECAM"},
		}
		if _, err := NewInputSelector(dev, zaptest.NewLogger(t)).Select(InputParams{Norm: tt.norm}); err != nil {
			t.Fatal(err)
		}
		if len(dev.stdSet) != 1 || dev.stdSet[0] != tt.want {
			t.Errorf("norm %d: set %v, want %#x", tt.norm, dev.stdSet, uint64(tt.want))
		}
	}
}

func tunerDevice() *fakeDevice {
	dev := newFakeDevice()
	dev.inputs = []v4l2.Input{
		{Index: 0, Name: "Composite", Type: v4l2.InputTypeCamera},
		{Index: 1, Name: "Television", Type: v4l2.InputTypeTuner, Tuner: 2},
	}
	dev.tuners = map[uint32]v4l2.Tuner{2: {Index: 2, Name: "Tuner 2", Type: v4l2.TunerAnalogTV}}
	return dev
}

func TestSelectTunerFrequency(t *testing.T) {
	dev := tunerDevice()
	_, err := NewInputSelector(dev, zaptest.NewLogger(t)).Select(InputParams{Index: 1, Frequency: 217250000, TunerNumber: 5})
	if err != nil {
		t.Fatal(err)
	}
	want := []v4l2.Frequency{{Tuner: 2, Type: v4l2.TunerAnalogTV, Frequency: 217250 * 16}}
	if !reflect.DeepEqual(dev.freqs, want) {
		t.Errorf("frequencies = %+v, want %+v", dev.freqs, want)
	}
}

func TestSelectTunerFailuresSwallowed(t *testing.T) {
	dev := tunerDevice()
	dev.tuners = nil
	sel := NewInputSelector(dev, zaptest.NewLogger(t))
	if _, err := sel.Select(InputParams{Index: 1, Frequency: 100000000}); err != nil {
		t.Errorf("missing tuner: %v", err)
	}
	if len(dev.freqs) != 0 {
		t.Errorf("frequency set without tuner: %v", dev.freqs)
	}

	dev = tunerDevice()
	dev.freqErr = unix.EINVAL
	sel = NewInputSelector(dev, zaptest.NewLogger(t))
	if _, err := sel.Select(InputParams{Index: 1, Frequency: 100000000}); err != nil {
		t.Errorf("rejected frequency: %v", err)
	}
}

func TestTunerFrequency(t *testing.T) {
	if got := TunerFrequency(55250000); got != 884000 {
		t.Errorf("got %d", got)
	}
	if got := TunerFrequency(999); got != 0 {
		t.Errorf("sub-kHz got %d", got)
	}
}
