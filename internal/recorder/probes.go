package recorder

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// fileProbe reads a single integer-valued sysfs counter.
type fileProbe struct {
	name string
	path string
}

func (p fileProbe) Name() string { return p.name }

func (p fileProbe) Read() (float64, error) {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return 0, err
	}
	return v, nil
}

// FileProbe exposes one counter file under the given metric name.
func FileProbe(name, path string) Probe {
	return fileProbe{name: name, path: path}
}

// DiscoverProbes enumerates the counters a stress run cares about under the
// sysfs root: per-cluster current CPU frequency, devfreq current frequency,
// and every thermal zone temperature. Absent subsystems simply contribute
// no probes.
func DiscoverProbes(root string) []Probe {
	var probes []Probe

	policies, _ := filepath.Glob(filepath.Join(root, "devices/system/cpu/cpufreq/policy*"))
	for _, dir := range policies {
		probes = append(probes, fileProbe{
			name: "cpufreq." + filepath.Base(dir),
			path: filepath.Join(dir, "scaling_cur_freq"),
		})
	}

	nodes, _ := filepath.Glob(filepath.Join(root, "class/devfreq/*"))
	for _, dir := range nodes {
		probes = append(probes, fileProbe{
			name: "devfreq." + filepath.Base(dir),
			path: filepath.Join(dir, "cur_freq"),
		})
	}

	zones, _ := filepath.Glob(filepath.Join(root, "class/thermal/thermal_zone*"))
	for _, dir := range zones {
		probes = append(probes, fileProbe{
			name: "thermal." + filepath.Base(dir),
			path: filepath.Join(dir, "temp"),
		})
	}

	return probes
}
