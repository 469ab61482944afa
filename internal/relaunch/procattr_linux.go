package relaunch

import "syscall"

// sysProcAttr starts the replacement in its own session so it outlives the
// exiting parent and is not signalled with the parent's process group.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setsid: true,
	}
}
