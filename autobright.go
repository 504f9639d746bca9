package capture

// ExposureControl decides brightness from the luma plane of the last
// frame. current is the brightness last applied and target the configured
// one (0 for none). It returns the new brightness and whether it changed.
type ExposureControl interface {
	Adjust(luma []byte, current, target int) (int, bool)
}

const (
	autoBrightHysteresis = 10
	autoBrightDamper     = 5
	autoBrightMin        = 0
	autoBrightMax        = 255
	autoBrightStride     = 101
	autoBrightTarget     = 128
)

// AutoBrightness steers mean luma into a window around the target,
// moving brightness by a damped step each call. A zero Damper uses the
// default.
type AutoBrightness struct {
	Hysteresis int
	Damper     int
}

func NewAutoBrightness() *AutoBrightness {
	return &AutoBrightness{Hysteresis: autoBrightHysteresis, Damper: autoBrightDamper}
}

func (a *AutoBrightness) Adjust(luma []byte, current, target int) (int, bool) {
	if len(luma) == 0 {
		return current, false
	}
	if target == 0 {
		target = autoBrightTarget
	}
	damper := a.Damper
	if damper <= 0 {
		damper = autoBrightDamper
	}
	hysteresis := max(a.Hysteresis, 0)
	high := min(target+hysteresis, autoBrightMax)
	low := max(target-hysteresis, 1)

	sum, n := 0, 0
	for i := 0; i < len(luma); i += autoBrightStride {
		sum += int(luma[i])
		n++
	}
	avg := sum / n

	switch {
	case avg > high:
		step := min((avg-target)/damper+1, current-autoBrightMin)
		if current > step+1-autoBrightMin {
			return current - step, true
		}
	case avg < low:
		step := min((target-avg)/damper+1, autoBrightMax-current)
		if current < autoBrightMax-step {
			return current + step, true
		}
	}
	return current, false
}
