package freshness

import (
	"fmt"
	"os"
	"strings"
)

// UptimeFunc returns system uptime in seconds.
type UptimeFunc func() (float64, error)

const procUptimePath = "/proc/uptime"

// SystemUptime reads the first field of /proc/uptime, falling back to the
// sysinfo syscall where procfs is unavailable.
func SystemUptime() (float64, error) {
	if v, err := readProcUptime(procUptimePath); err == nil {
		return v, nil
	}
	return sysinfoUptime()
}

func readProcUptime(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return parseProcUptime(string(data))
}

func parseProcUptime(content string) (float64, error) {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty uptime")
	}
	v, ok := ParseUptime(fields[0])
	if !ok {
		return 0, fmt.Errorf("invalid uptime %q", fields[0])
	}
	return v, nil
}
