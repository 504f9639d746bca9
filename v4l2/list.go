package v4l2

import (
	"os"
	"path/filepath"
	"sort"
)

const VIDEO4LINUX_DIR = "/dev"

// ListDevices returns the card name of every capture node under /dev,
// keyed by path. Nodes that cannot be opened or queried are skipped.
func ListDevices() (map[string]string, error) {
	paths, err := filepath.Glob(filepath.Join(VIDEO4LINUX_DIR, "video*"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	devices := map[string]string{}
	for _, path := range paths {
		if fi, err := os.Stat(path); err != nil || fi.Mode()&os.ModeCharDevice == 0 {
			continue
		}
		cam, err := Open(path)
		if err != nil {
			continue
		}
		caps, err := cam.Capability()
		cam.Close()
		if err != nil || !caps.Has(CapVideoCapture) {
			continue
		}
		devices[path] = caps.Card
	}
	return devices, nil
}
