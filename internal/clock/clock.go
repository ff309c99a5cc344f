// Package clock pins CPU and memory clock frequencies through cpufreq and
// devfreq sysfs knobs. A profile is a pair of opaque indices into a
// device-specific frequency table; the engine never interprets them.
package clock

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DefaultSysfsRoot is the mount point of sysfs on a live device.
const DefaultSysfsRoot = "/sys"

// Off disables one half of a profile.
const Off = -1

// ErrUnknownDevice is returned when no frequency table exists for a device.
var ErrUnknownDevice = errors.New("unknown device")

// Profile selects CPU and RAM operating points by table index. Off skips
// that half entirely.
type Profile struct {
	CPU int
	RAM int
}

// Controller applies and reverts a clock profile. Apply is called once per
// run before load starts; Revert is best-effort, idempotent, and called
// exactly once after all load has stopped.
type Controller interface {
	Apply(p Profile) error
	Revert()
}

// deviceTable maps clock indices to concrete frequencies for one phone model.
type deviceTable struct {
	// policies lists the cpufreq policy directory per cluster, little to big.
	policies []string
	// cpuKHz holds the available frequencies per cluster, ascending. A clock
	// index selects one row across all clusters, clamped per cluster.
	cpuKHz [][]int
	// mifNode is the devfreq node governing the memory interface.
	mifNode string
	// ramKHz holds the available memory frequencies, ascending.
	ramKHz []int
}

var devices = map[string]deviceTable{
	"Pixel9": {
		policies: []string{"policy0", "policy4", "policy7"},
		cpuKHz: [][]int{
			{324000, 610000, 820000, 955000, 1098000, 1197000, 1328000, 1425000, 1548000, 1704000, 1844000, 1950000},
			{402000, 578000, 697000, 910000, 1082000, 1221000, 1328000, 1418000, 1549000, 1795000, 1945000, 2130000, 2245000, 2367000, 2600000},
			{500000, 880000, 1164000, 1396000, 1557000, 1745000, 1945000, 2130000, 2363000, 2556000, 2687000, 2802000, 2914000, 3015000, 3105000},
		},
		mifNode: "17000010.devfreq_mif",
		ramKHz:  []int{421000, 546000, 676000, 845000, 1014000, 1352000, 1539000, 1716000, 2028000, 2288000, 2730000, 3172000, 3744000},
	},
	"S24": {
		policies: []string{"policy0", "policy4", "policy6", "policy9"},
		cpuKHz: [][]int{
			{400000, 576000, 672000, 768000, 864000, 960000, 1056000, 1152000, 1248000, 1344000, 1440000, 1536000, 1632000, 1728000, 1824000, 1959000},
			{672000, 768000, 864000, 960000, 1056000, 1152000, 1248000, 1344000, 1440000, 1536000, 1632000, 1728000, 1824000, 1920000, 2016000, 2112000, 2208000, 2304000, 2400000, 2496000, 2592000},
			{672000, 768000, 864000, 960000, 1056000, 1152000, 1248000, 1344000, 1440000, 1536000, 1632000, 1728000, 1824000, 1920000, 2016000, 2112000, 2208000, 2304000, 2400000, 2496000, 2592000, 2688000, 2803000, 2902000},
			{672000, 864000, 1056000, 1248000, 1440000, 1632000, 1824000, 2016000, 2208000, 2400000, 2592000, 2784000, 2956000, 3110000, 3207000},
		},
		mifNode: "17000010.devfreq_mif",
		ramKHz:  []int{421000, 676000, 845000, 1014000, 1352000, 1539000, 1716000, 2028000, 2288000, 2730000, 3172000, 3738000, 4206000},
	},
}

// Devices returns the names with a known frequency table, sorted.
func Devices() []string {
	names := make([]string, 0, len(devices))
	for name := range devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KnownDevice reports whether a frequency table exists for name.
func KnownDevice(name string) bool {
	_, ok := devices[name]
	return ok
}

// Compile-time interface satisfaction check.
var _ Controller = (*SysfsController)(nil)

// SysfsController implements Controller by writing frequency bounds under a
// sysfs root. Apply records the bounds it replaces so Revert can restore
// them; Revert after a failed or skipped Apply restores whatever was saved.
type SysfsController struct {
	table  deviceTable
	root   string
	logger *slog.Logger
	saved  map[string]string
}

// NewSysfs builds a controller for the named device. root is the sysfs mount
// point (DefaultSysfsRoot outside tests).
func NewSysfs(device, root string, logger *slog.Logger) (*SysfsController, error) {
	table, ok := devices[device]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownDevice, device, strings.Join(Devices(), ", "))
	}
	return &SysfsController{
		table:  table,
		root:   root,
		logger: logger,
		saved:  make(map[string]string),
	}, nil
}

// CPUFreqs resolves a clock index to one frequency per cluster, clamping the
// index into each cluster's table. A negative index yields nil.
func (c *SysfsController) CPUFreqs(idx int) []int {
	if idx < 0 {
		return nil
	}
	freqs := make([]int, len(c.table.cpuKHz))
	for i, cluster := range c.table.cpuKHz {
		j := idx
		if j >= len(cluster) {
			j = len(cluster) - 1
		}
		freqs[i] = cluster[j]
	}
	return freqs
}

// RAMFreq resolves a memory clock index, clamped into the table. A negative
// index yields Off.
func (c *SysfsController) RAMFreq(idx int) int {
	if idx < 0 {
		return Off
	}
	if idx >= len(c.table.ramKHz) {
		idx = len(c.table.ramKHz) - 1
	}
	return c.table.ramKHz[idx]
}

// Apply pins every cluster (and the memory interface, if requested) to the
// frequency the profile resolves to, by collapsing the min/max bounds onto a
// single operating point. The first write error aborts and is returned; any
// bounds already replaced stay recorded for Revert.
func (c *SysfsController) Apply(p Profile) error {
	for i, freq := range c.CPUFreqs(p.CPU) {
		dir := filepath.Join(c.root, "devices/system/cpu/cpufreq", c.table.policies[i])
		if err := c.pin(dir, "scaling_min_freq", "scaling_max_freq", freq); err != nil {
			return fmt.Errorf("pin cpu %s: %w", c.table.policies[i], err)
		}
	}

	if freq := c.RAMFreq(p.RAM); freq != Off {
		dir := filepath.Join(c.root, "class/devfreq", c.table.mifNode)
		if err := c.pin(dir, "min_freq", "max_freq", freq); err != nil {
			return fmt.Errorf("pin mif: %w", err)
		}
	}
	return nil
}

// Revert restores every bound Apply replaced. Failures are logged and
// skipped so one stuck knob cannot block the rest of the teardown; restored
// entries are forgotten, making a second call a no-op.
func (c *SysfsController) Revert() {
	for path, value := range c.saved {
		if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
			c.logger.Warn("clock revert failed", "path", path, "error", err)
		}
		delete(c.saved, path)
	}
}

// pin collapses the [minFile, maxFile] bounds in dir onto freq, saving prior
// values. Write order follows the direction of the move so the bounds never
// invert mid-update; some cpufreq drivers reject an inverted interval.
func (c *SysfsController) pin(dir, minFile, maxFile string, freq int) error {
	minPath := filepath.Join(dir, minFile)
	prevMin, err := os.ReadFile(minPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", minFile, err)
	}

	order := []string{maxFile, minFile}
	if minFirst(freq, string(prevMin)) {
		order = []string{minFile, maxFile}
	}

	value := fmt.Sprintf("%d", freq)
	for _, name := range order {
		path := filepath.Join(dir, name)
		prev, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		if _, dup := c.saved[path]; !dup {
			c.saved[path] = strings.TrimSpace(string(prev))
		}
	}
	return nil
}

// minFirst reports whether the floor must be lowered before the ceiling:
// dropping the max below the current min would invert the interval. An
// unreadable current min keeps the default max-first order.
func minFirst(freq int, prevMin string) bool {
	cur, err := strconv.Atoi(strings.TrimSpace(prevMin))
	if err != nil {
		return false
	}
	return freq < cur
}
