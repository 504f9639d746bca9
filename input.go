package capture

import (
	"github.com/adamlouis/capture/v4l2"
	"go.uber.org/zap"
)

// Video norm selectors accepted in InputParams.
const (
	NormPAL   = 0
	NormNTSC  = 1
	NormSECAM = 2
)

// DefaultInput is the legacy input index that selects input 0.
const DefaultInput = 8

// InputParams selects the input, video standard and tuner.
type InputParams struct {
	Index int
	Norm  int
	// Frequency is the tuner frequency in Hz, written whenever the input
	// is a tuner.
	Frequency uint64
	// TunerNumber only participates in change detection; the tuner that
	// is programmed is the one the input reports.
	TunerNumber int
}

// InputSelector programs input, standard and tuner frequency.
type InputSelector struct {
	dev v4l2.Device
	log *zap.Logger
}

func NewInputSelector(dev v4l2.Device, log *zap.Logger) *InputSelector {
	if log == nil {
		log = zap.NewNop()
	}
	return &InputSelector{dev: dev, log: log}
}

func inputIndex(i int) int {
	if i == DefaultInput {
		return 0
	}
	return i
}

// NormStandard maps a norm selector to a standard mask. Anything that is
// not NTSC or SECAM is PAL.
func NormStandard(norm int) v4l2.StdID {
	switch norm {
	case NormNTSC:
		return v4l2.StdNTSC
	case NormSECAM:
		return v4l2.StdSECAM
	default:
		return v4l2.StdPAL
	}
}

// TunerFrequency converts Hz to the 62.5 kHz units V4L2 tuners use.
func TunerFrequency(hz uint64) uint32 {
	return uint32((hz / 1000) * 16)
}

// Select makes p the active input. Standard and tuner failures other
// than the standard commit are logged and ignored.
func (s *InputSelector) Select(p InputParams) (v4l2.Input, error) {
	index := inputIndex(p.Index)

	input, err := s.dev.EnumInput(uint32(index))
	if err != nil {
		return input, deviceError("VIDIOC_ENUMINPUT", err)
	}
	log := s.log.With(zap.Int("input", index), zap.String("name", input.Name))
	log.Info("input",
		zap.Uint32("type", input.Type),
		zap.Uint32("status", input.Status),
		zap.Bool("tuner", input.Type&v4l2.InputTypeTuner != 0),
		zap.Bool("camera", input.Type&v4l2.InputTypeCamera != 0))

	if err := s.dev.SetInput(uint32(index)); err != nil {
		return input, deviceError("VIDIOC_S_INPUT", err)
	}

	std, err := s.dev.Standard()
	if err != nil {
		log.Info("device does not report a video standard", zap.Error(err))
		std = 0
	}
	if std != 0 {
		for i := uint32(0); ; i++ {
			standard, err := s.dev.EnumStandard(i)
			if err != nil {
				break
			}
			if standard.ID&std != 0 {
				log.Info("supported standard", zap.String("standard", standard.Name))
			}
		}
		want := NormStandard(p.Norm)
		if err := s.dev.SetStandard(want); err != nil {
			return input, deviceError("VIDIOC_S_STD", err)
		}
		log.Debug("standard set", zap.Uint64("std", uint64(want)))
	}

	if input.Type&v4l2.InputTypeTuner != 0 {
		s.tune(log, input.Tuner, p.Frequency)
	}
	return input, nil
}

func (s *InputSelector) tune(log *zap.Logger, index uint32, hz uint64) {
	tuner, err := s.dev.Tuner(index)
	if err != nil {
		log.Debug("VIDIOC_G_TUNER failed", zap.Uint32("tuner", index), zap.Error(err))
		return
	}
	freq := v4l2.Frequency{
		Tuner:     index,
		Type:      v4l2.TunerAnalogTV,
		Frequency: TunerFrequency(hz),
	}
	if err := s.dev.SetFrequency(freq); err != nil {
		log.Debug("VIDIOC_S_FREQUENCY failed", zap.String("tuner", tuner.Name), zap.Error(err))
		return
	}
	log.Info("tuner frequency set", zap.String("tuner", tuner.Name), zap.Uint64("hz", hz))
}
