// Package process provides child process management for the run engine.
//
// The process package starts the child processes a run session needs
// (the user's program, a compiler, a dependency installer) and exposes
// their standard streams to the session controller.
//
// # Spawner
//
// The Spawner starts commands with piped stdio and tracks them until
// they have been waited on:
//
//	spawner := process.NewSpawner()
//	defer spawner.Shutdown(2 * time.Second)
//
//	proc, err := spawner.Start("python3", process.Spec{
//	    Argv: []string{"python3", "script.py"},
//	})
//	if err != nil {
//	    return err
//	}
//
// # Pump
//
// A Pump forwards one output stream to a consumer on its own goroutine.
// Chunks are delivered in read order and never split a UTF-8 sequence:
//
//	pump := process.NewPump(process.StreamStdout, proc.Stdout(), onChunk, onEnd)
//	pump.Start()
//	<-pump.Done()
//
// Stopping a pump only stops delivery. Closing the stream is the job of
// whoever owns the process.
//
// # Waiting
//
// Stdout and stderr are plain OS pipes, so Process.Wait returns as soon as
// the child exits, even while a background grandchild keeps the write end
// open. Callers that want the tail of the output keep reading after Wait
// and Close the process once they are done or tired of waiting.
package process
