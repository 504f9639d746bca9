package capture

import (
	"fmt"

	"github.com/adamlouis/capture/v4l2"
	"go.uber.org/zap"
)

// DefaultControlCandidates is the list of controls discovered at start.
func DefaultControlCandidates() []v4l2.ControlID {
	return []v4l2.ControlID{
		v4l2.CIDBrightness,
		v4l2.CIDContrast,
		v4l2.CIDSaturation,
		v4l2.CIDHue,
		v4l2.CIDRedBalance,
		v4l2.CIDBlueBalance,
		v4l2.CIDExposure,
		v4l2.CIDAutogain,
		v4l2.CIDGain,
		v4l2.CIDDACMagnitude,
		v4l2.CIDGreenBalance,
	}
}

// Control is a discovered device control.
type Control struct {
	ID       v4l2.ControlID
	Name     string
	Type     uint32
	Min      int32
	Max      int32
	Step     int32
	Default  int32
	Value    int32
	Disabled bool
}

// Scale maps a 0..255 value onto the control's native range.
func (c *Control) Scale(normalized int) int32 {
	if normalized < 0 {
		normalized = 0
	} else if normalized > 255 {
		normalized = 255
	}
	return int32(int64(c.Min) + int64(normalized)*(int64(c.Max)-int64(c.Min))/256)
}

// ControlRegistry holds the controls a device answered for.
type ControlRegistry struct {
	dev      v4l2.Device
	log      *zap.Logger
	controls []*Control
}

func NewControlRegistry(dev v4l2.Device, log *zap.Logger) *ControlRegistry {
	if log == nil {
		log = zap.NewNop()
	}
	return &ControlRegistry{dev: dev, log: log}
}

// Discover queries every candidate and keeps the ones the device knows,
// in candidate order. It replaces any earlier discovery.
func (r *ControlRegistry) Discover(candidates []v4l2.ControlID) []*Control {
	r.controls = nil
	for _, id := range candidates {
		info, err := r.dev.QueryControl(id)
		if err != nil {
			continue
		}
		c := &Control{
			ID:       id,
			Name:     info.Name,
			Type:     info.Type,
			Min:      info.Min,
			Max:      info.Max,
			Step:     info.Step,
			Default:  info.Default,
			Value:    info.Default,
			Disabled: info.Flags&v4l2.CtrlFlagDisabled != 0,
		}
		if v, err := r.dev.Control(id); err == nil {
			c.Value = v
		}
		r.log.Info("control",
			zap.String("name", c.Name),
			zap.Uint32("id", uint32(c.ID)),
			zap.Int32("min", c.Min),
			zap.Int32("max", c.Max),
			zap.Int32("default", c.Default),
			zap.Int32("value", c.Value),
			zap.Bool("disabled", c.Disabled))
		r.controls = append(r.controls, c)
	}
	return r.controls
}

// Controls returns the discovered controls.
func (r *ControlRegistry) Controls() []*Control {
	return r.controls
}

// Lookup returns the discovered control with id, or nil.
func (r *ControlRegistry) Lookup(id v4l2.ControlID) *Control {
	for _, c := range r.controls {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Set writes normalized (0..255) to control id and returns the native
// value written.
func (r *ControlRegistry) Set(id v4l2.ControlID, normalized int) (int32, error) {
	c := r.Lookup(id)
	if c == nil {
		return 0, &ControlError{ID: id, Err: ErrUnknownControl}
	}
	if c.Disabled {
		r.log.Warn("control is disabled", zap.String("name", c.Name))
	}

	var value int32
	switch c.Type {
	case v4l2.CtrlTypeInteger:
		value = c.Scale(normalized)
	case v4l2.CtrlTypeBoolean:
		if normalized != 0 {
			value = 1
		}
	default:
		return 0, &ControlError{ID: id, Err: fmt.Errorf("%w %d", ErrUnsupportedControlType, c.Type)}
	}

	if err := r.dev.SetControl(id, value); err != nil {
		return 0, &ControlError{ID: id, Err: deviceError("VIDIOC_S_CTRL", err)}
	}
	c.Value = value
	r.log.Debug("control set", zap.String("name", c.Name), zap.Int32("value", value))
	return value, nil
}

// Reset forgets every discovered control.
func (r *ControlRegistry) Reset() {
	r.controls = nil
}
