package runner

import "strings"

// maxCarry bounds the text held for a line that has not ended yet.
const maxCarry = 64 * 1024

// segment is a piece of a chunk up to and including a newline, or the
// chunk's unterminated tail.
type segment struct {
	// text is the piece to display.
	text string
	// line is the whole logical line so far, including text carried
	// over from earlier chunks, without the line terminator.
	line string
	// start is true when text begins a new line.
	start bool
	// complete is true when text ends with a newline.
	complete bool
}

// framer splits one stream's chunks into line segments.
type framer struct {
	carry string
}

func (f *framer) feed(chunk string) []segment {
	var segs []segment
	for chunk != "" {
		start := f.carry == ""
		i := strings.IndexByte(chunk, '\n')
		if i < 0 {
			f.carry += chunk
			if len(f.carry) > maxCarry {
				f.carry = f.carry[len(f.carry)-maxCarry:]
			}
			segs = append(segs, segment{text: chunk, line: f.carry, start: start})
			break
		}

		line := strings.TrimSuffix(f.carry+chunk[:i], "\r")
		f.carry = ""
		segs = append(segs, segment{text: chunk[:i+1], line: line, start: start, complete: true})
		chunk = chunk[i+1:]
	}
	return segs
}
