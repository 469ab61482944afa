//go:build !linux

package freshness

import "fmt"

func sysinfoUptime() (float64, error) {
	return 0, fmt.Errorf("system uptime is not available on this platform")
}
