package runner

import "github.com/dshills/runstorm/internal/integration/process"

// Event is a message from a background task to the owning goroutine.
// Events are opaque; the owner passes them to Controller.Dispatch.
type Event interface {
	stepID() uint64
}

type spawnedEvent struct {
	step   uint64
	handle Handle
	err    error
}

type chunkEvent struct {
	step   uint64
	stream process.Stream
	text   string
}

type streamEndEvent struct {
	step   uint64
	stream process.Stream
	err    error
}

type exitEvent struct {
	step uint64
	code int
	err  error
}

type inputFailedEvent struct {
	step uint64
	err  error
}

type taskFailedEvent struct {
	step uint64
	err  error
}

func (e spawnedEvent) stepID() uint64     { return e.step }
func (e chunkEvent) stepID() uint64       { return e.step }
func (e streamEndEvent) stepID() uint64   { return e.step }
func (e exitEvent) stepID() uint64        { return e.step }
func (e inputFailedEvent) stepID() uint64 { return e.step }
func (e taskFailedEvent) stepID() uint64  { return e.step }
