package console

import (
	"strings"

	"github.com/dshills/runstorm/internal/runner"
)

// Span is a styled range of the buffer, in runes.
type Span struct {
	Start int
	End   int
	Style runner.Style
}

// Buffer is the text of the output pane.
//
// Everything before the boundary is history. The user may only move the
// caret and edit within [boundary, Len()]. Appended output is inserted
// at the boundary, so input the user is still typing stays at the end
// and stays editable.
//
// Buffer is not safe for concurrent use; it belongs to the goroutine
// that owns the runner.Controller.
type Buffer struct {
	text     []rune
	spans    []Span
	boundary int
	caret    int
	editable bool
}

// NewBuffer creates an empty, read-only buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append inserts output at the boundary and moves the boundary past it.
func (b *Buffer) Append(text string, style runner.Style) {
	if text == "" {
		return
	}
	ins := []rune(text)
	n := len(ins)
	at := b.boundary

	b.text = append(b.text[:at], append(ins, b.text[at:]...)...)
	for i := range b.spans {
		if b.spans[i].Start >= at {
			b.spans[i].Start += n
			b.spans[i].End += n
		}
	}
	if style != runner.StyleNone {
		b.spans = append(b.spans, Span{Start: at, End: at + n, Style: style})
	}

	b.boundary += n
	b.caret += n
}

// SetEditableFrom moves the boundary forward to offset. The boundary
// never moves backwards; only Clear resets it.
func (b *Buffer) SetEditableFrom(offset int) {
	if offset > len(b.text) {
		offset = len(b.text)
	}
	if offset <= b.boundary {
		return
	}
	b.boundary = offset
	if b.caret < b.boundary {
		b.caret = b.boundary
	}
}

// SetEditable enables or disables user edits.
func (b *Buffer) SetEditable(editable bool) {
	b.editable = editable
}

// Clear drops all text.
func (b *Buffer) Clear() {
	b.text = b.text[:0]
	b.spans = b.spans[:0]
	b.boundary = 0
	b.caret = 0
}

// Len returns the length of the buffer in runes.
func (b *Buffer) Len() int { return len(b.text) }

// Boundary returns the prompt boundary.
func (b *Buffer) Boundary() int { return b.boundary }

// Caret returns the caret offset.
func (b *Buffer) Caret() int { return b.caret }

// Editable reports whether user edits are accepted.
func (b *Buffer) Editable() bool { return b.editable }

// String returns the whole buffer.
func (b *Buffer) String() string { return string(b.text) }

// Input returns the text the user has typed after the boundary.
func (b *Buffer) Input() string { return string(b.text[b.boundary:]) }

// StyleAt returns the style of the rune at offset.
func (b *Buffer) StyleAt(offset int) runner.Style {
	for i := len(b.spans) - 1; i >= 0; i-- {
		if s := b.spans[i]; offset >= s.Start && offset < s.End {
			return s.Style
		}
	}
	return runner.StyleNone
}

// MoveCaret moves the caret to offset, clamped to the editable region,
// and returns the effective position.
func (b *Buffer) MoveCaret(offset int) int {
	b.caret = b.clamp(offset)
	return b.caret
}

func (b *Buffer) clamp(offset int) int {
	if offset < b.boundary {
		return b.boundary
	}
	if offset > len(b.text) {
		return len(b.text)
	}
	return offset
}

// Insert types s at the caret. It reports false if the buffer is not
// editable.
func (b *Buffer) Insert(s string) bool {
	if !b.editable || s == "" {
		return false
	}
	b.caret = b.clamp(b.caret)
	ins := []rune(strings.ReplaceAll(s, "\n", ""))
	b.text = append(b.text[:b.caret], append(ins, b.text[b.caret:]...)...)
	b.caret += len(ins)
	return true
}

// Backspace deletes the rune before the caret unless that would cross
// the boundary.
func (b *Buffer) Backspace() bool {
	if !b.editable || b.caret <= b.boundary {
		return false
	}
	b.text = append(b.text[:b.caret-1], b.text[b.caret:]...)
	b.caret--
	return true
}

// Delete deletes the rune at the caret.
func (b *Buffer) Delete() bool {
	if !b.editable || b.caret < b.boundary || b.caret >= len(b.text) {
		return false
	}
	b.text = append(b.text[:b.caret], b.text[b.caret+1:]...)
	return true
}

// Commit turns the typed input into history and returns it. The caller
// hands the line to runner.Controller.Submit.
func (b *Buffer) Commit() string {
	line := b.Input()
	b.boundary = len(b.text)
	b.caret = b.boundary
	return line
}

// Lines splits the buffer into lines. Each line records the offset of
// its first rune.
func (b *Buffer) Lines() []Line {
	var lines []Line
	start := 0
	for i, r := range b.text {
		if r == '\n' {
			lines = append(lines, Line{Start: start, Text: b.text[start:i]})
			start = i + 1
		}
	}
	return append(lines, Line{Start: start, Text: b.text[start:]})
}

// Line is one line of the buffer, without its newline.
type Line struct {
	Start int
	Text  []rune
}

// Width returns the number of runes in the line.
func (l Line) Width() int { return len(l.Text) }
