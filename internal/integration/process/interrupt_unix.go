//go:build !windows

package process

import "syscall"

// Interrupt asks the process to stop with SIGINT, as a terminal would
// on Ctrl+C.
func (p *Process) Interrupt() error {
	return p.Signal(syscall.SIGINT)
}
