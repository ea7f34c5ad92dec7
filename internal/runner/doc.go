// Package runner implements the run engine behind the editor's output
// pane.
//
// A Controller launches the file being edited (or an interactive shell)
// as a child process, streams its stdout and stderr into a Sink, forwards
// submitted input lines to the process's stdin and delivers interrupts.
// For interpreters with a remediation rule it also recognizes a missing
// module error, installs the module and retries the run exactly once.
//
// # Ownership
//
// A Controller is owned by a single goroutine. That goroutine calls Run,
// Submit, CloseInput, Interrupt and Clear, and feeds every value
// received from Events back into Dispatch:
//
//	ctrl := runner.NewController(sink, runner.Options{})
//	defer ctrl.Close()
//
//	ctrl.Run("script.py", source)
//	for {
//	    select {
//	    case ev := <-ctrl.Events():
//	        ctrl.Dispatch(ev)
//	    case line := <-submitted:
//	        ctrl.Submit(line)
//	    case <-ctx.Done():
//	        return
//	    }
//	}
//
// Pumps, waiters and stdin writers run on their own goroutines but never
// touch the Sink; they only send events. All Sink mutation therefore
// happens on the owning goroutine and needs no locking.
//
// # Lifecycle
//
// Each Run creates a Session that moves through
//
//	Idle → Starting → [Compiling →] Running → (Remediating → Restarting → Starting → Running)? → Exited
//
// Starting a new Run while a Session is live stops the old one first.
package runner
