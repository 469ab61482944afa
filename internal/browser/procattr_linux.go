package browser

import (
	"os"
	"syscall"
)

// sysProcAttr puts the browser in its own process group so its renderer
// children can be signalled together. Pdeathsig stops the browser if the
// kiosk dies without cleaning up.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}
}

func signalGroup(p *os.Process, sig syscall.Signal) error {
	return syscall.Kill(-p.Pid, sig)
}
