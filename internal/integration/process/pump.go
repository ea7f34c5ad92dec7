package process

import (
	"errors"
	"io"
	"io/fs"
	"strings"
	"sync/atomic"
	"unicode/utf8"
)

// pumpBufferSize is the size of a single read from the stream.
const pumpBufferSize = 4096

// Stream identifies the source stream.
type Stream int

const (
	// StreamStdout is standard output.
	StreamStdout Stream = iota
	// StreamStderr is standard error.
	StreamStderr
)

// String returns the stream name.
func (s Stream) String() string {
	switch s {
	case StreamStdout:
		return "stdout"
	case StreamStderr:
		return "stderr"
	default:
		return "unknown"
	}
}

// Pump forwards decoded text from one stream to a consumer.
//
// Chunks are delivered from a single goroutine in the order they were
// read. A multi-byte UTF-8 sequence split across two reads is held back
// until it is complete.
type Pump struct {
	stream  Stream
	r       io.Reader
	onChunk func(string)
	onEnd   func(error)

	started atomic.Bool
	stopped atomic.Bool
	done    chan struct{}
}

// NewPump creates a pump for r. onChunk receives each decoded chunk.
// onEnd, if set, is called once when the stream ends: with nil at end
// of stream or when the reader was closed by its owner, or with the read
// error if the stream failed. Neither is
// called after Stop.
func NewPump(stream Stream, r io.Reader, onChunk func(string), onEnd func(error)) *Pump {
	return &Pump{
		stream:  stream,
		r:       r,
		onChunk: onChunk,
		onEnd:   onEnd,
		done:    make(chan struct{}),
	}
}

// Stream returns the stream this pump reads.
func (p *Pump) Stream() Stream { return p.stream }

// Start begins reading on a new goroutine. Calling Start more than once
// has no effect.
func (p *Pump) Start() {
	if p.started.Swap(true) {
		return
	}
	go p.run()
}

// Stop stops delivery. It does not close the underlying stream, so the
// reading goroutine exits once the owner closes it or it reaches EOF.
func (p *Pump) Stop() {
	p.stopped.Store(true)
}

// Stopped reports whether Stop has been called.
func (p *Pump) Stopped() bool {
	return p.stopped.Load()
}

// Done returns a channel that is closed when the reading goroutine exits.
func (p *Pump) Done() <-chan struct{} {
	return p.done
}

func (p *Pump) run() {
	defer close(p.done)

	buf := make([]byte, pumpBufferSize)
	var pending []byte

	for {
		n, err := p.r.Read(buf)
		if n > 0 {
			data := append(pending, buf[:n]...)
			cut := completePrefix(data)
			p.deliver(data[:cut])
			pending = append([]byte(nil), data[cut:]...)
		}

		if err != nil {
			// Flush a dangling partial sequence lossily.
			p.deliver(pending)
			p.finish(err)
			return
		}
	}
}

func (p *Pump) deliver(b []byte) {
	if len(b) == 0 || p.stopped.Load() || p.onChunk == nil {
		return
	}
	p.onChunk(strings.ToValidUTF8(string(b), string(utf8.RuneError)))
}

func (p *Pump) finish(err error) {
	if p.stopped.Load() || p.onEnd == nil {
		return
	}
	if errors.Is(err, io.EOF) || errors.Is(err, fs.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		err = nil
	}
	p.onEnd(err)
}

// completePrefix returns the length of the longest prefix of b that does
// not end inside an incomplete UTF-8 sequence.
func completePrefix(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return len(b)
		}
		return i
	}
	return len(b)
}
