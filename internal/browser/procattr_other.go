//go:build !linux

package browser

import (
	"os"
	"syscall"
)

// sysProcAttr puts the browser in its own process group. Pdeathsig is not
// available on non-Linux platforms.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid: true,
	}
}

func signalGroup(p *os.Process, sig syscall.Signal) error {
	return p.Signal(sig)
}
