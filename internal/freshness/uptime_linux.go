package freshness

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func sysinfoUptime() (float64, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, fmt.Errorf("sysinfo: %w", err)
	}
	return float64(info.Uptime), nil
}
