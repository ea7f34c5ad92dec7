//go:build windows

package process

// Interrupt terminates the process. Windows has no SIGINT that can be
// delivered to an arbitrary child, so this is equivalent to Kill.
func (p *Process) Interrupt() error {
	return p.Kill()
}
