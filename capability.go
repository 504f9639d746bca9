package capture

import (
	"errors"
	"fmt"

	"github.com/adamlouis/capture/v4l2"
	"go.uber.org/zap"
)

var capabilityNames = []struct {
	bit  uint32
	name string
}{
	{v4l2.CapVideoCapture, "video capture"},
	{v4l2.CapVideoOutput, "video output"},
	{v4l2.CapVideoOverlay, "video overlay"},
	{v4l2.CapVBICapture, "VBI capture"},
	{v4l2.CapVBIOutput, "VBI output"},
	{v4l2.CapRDSCapture, "RDS capture"},
	{v4l2.CapTuner, "tuner"},
	{v4l2.CapAudio, "audio"},
	{v4l2.CapRadio, "radio"},
	{v4l2.CapReadWrite, "read/write"},
	{v4l2.CapAsyncIO, "async I/O"},
	{v4l2.CapStreaming, "streaming"},
}

// CapabilityNames lists the names of the set bits of mask.
func CapabilityNames(mask uint32) []string {
	var names []string
	for _, c := range capabilityNames {
		if mask&c.bit != 0 {
			names = append(names, c.name)
		}
	}
	return names
}

func queryCapability(dev v4l2.Device, log *zap.Logger) (v4l2.Capability, error) {
	caps, err := dev.Capability()
	if err != nil {
		return caps, deviceError("VIDIOC_QUERYCAP", err)
	}

	log.Info("device capabilities",
		zap.String("driver", caps.Driver),
		zap.String("card", caps.Card),
		zap.String("bus", caps.BusInfo),
		zap.String("version", versionString(caps.Version)),
		zap.Uint32("capabilities", caps.Effective()))
	for _, name := range CapabilityNames(caps.Effective()) {
		log.Info("capability", zap.String("name", name))
	}

	if !caps.Has(v4l2.CapVideoCapture) {
		return caps, deviceError("VIDIOC_QUERYCAP", errors.New("not a video capture device"))
	}
	return caps, nil
}

func versionString(v uint32) string {
	return fmt.Sprintf("%d.%d.%d", v>>16, (v>>8)&0xff, v&0xff)
}
