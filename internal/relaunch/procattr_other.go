//go:build !linux

package relaunch

import "syscall"

// sysProcAttr puts the replacement in its own process group.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid: true,
	}
}
