package console

import (
	"github.com/gdamore/tcell/v2"

	"github.com/dshills/runstorm/internal/runner"
)

// Action is what a key press asks the application to do.
type Action int

const (
	// ActionNone means the event was handled by the buffer, if at all.
	ActionNone Action = iota
	// ActionSubmit carries a committed input line.
	ActionSubmit
	// ActionInterrupt asks to interrupt the running process.
	ActionInterrupt
	// ActionClear asks to clear the pane.
	ActionClear
	// ActionRerun asks to run the file again.
	ActionRerun
	// ActionQuit asks to exit.
	ActionQuit
)

// row is one screen row of wrapped buffer text.
type row struct {
	start int
	text  []rune
}

// Screen draws a Buffer on a tcell screen.
type Screen struct {
	screen tcell.Screen
	buf    *Buffer
	styles map[runner.Style]tcell.Style
	status string

	// top and rows describe the last frame, for mapping mouse clicks.
	top  int
	rows []row
}

// NewScreen wraps a tcell screen. The screen is not initialized until
// Init is called.
func NewScreen(screen tcell.Screen) *Screen {
	return &Screen{
		screen: screen,
		buf:    NewBuffer(),
		styles: map[runner.Style]tcell.Style{
			runner.StyleNone:    tcell.StyleDefault,
			runner.StyleError:   tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true),
			runner.StyleWarning: tcell.StyleDefault.Foreground(tcell.ColorOrange).Bold(true),
		},
	}
}

// Init initializes the terminal.
func (s *Screen) Init() error {
	if err := s.screen.Init(); err != nil {
		return err
	}
	s.screen.EnableMouse()
	s.screen.EnablePaste()
	return nil
}

// Fini restores the terminal.
func (s *Screen) Fini() {
	s.screen.Fini()
}

// Buffer returns the pane's text model.
func (s *Screen) Buffer() *Buffer { return s.buf }

// Append implements runner.Sink.
func (s *Screen) Append(text string, style runner.Style) { s.buf.Append(text, style) }

// SetEditableFrom implements runner.Sink.
func (s *Screen) SetEditableFrom(offset int) { s.buf.SetEditableFrom(offset) }

// SetEditable implements runner.Sink.
func (s *Screen) SetEditable(editable bool) { s.buf.SetEditable(editable) }

// Clear implements runner.Sink.
func (s *Screen) Clear() { s.buf.Clear() }

// SetStatus sets the text of the bottom status row.
func (s *Screen) SetStatus(status string) { s.status = status }

// PollEvents forwards terminal events to a channel until quit is closed
// or the screen is finalized.
func (s *Screen) PollEvents(quit <-chan struct{}) <-chan tcell.Event {
	events := make(chan tcell.Event)
	go func() {
		defer close(events)
		for {
			ev := s.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}()
	return events
}

// Handle applies an event to the buffer and returns the action it asks
// for. For ActionSubmit the committed line is returned as well.
func (s *Screen) Handle(ev tcell.Event) (Action, string) {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return s.handleKey(ev)
	case *tcell.EventMouse:
		if ev.Buttons()&tcell.Button1 != 0 {
			x, y := ev.Position()
			s.buf.MoveCaret(s.offsetAt(x, y))
		}
	case *tcell.EventResize:
		s.screen.Sync()
	}
	return ActionNone, ""
}

func (s *Screen) handleKey(ev *tcell.EventKey) (Action, string) {
	b := s.buf
	switch ev.Key() {
	case tcell.KeyEnter:
		if !b.Editable() {
			return ActionNone, ""
		}
		return ActionSubmit, b.Commit()
	case tcell.KeyCtrlC:
		return ActionInterrupt, ""
	case tcell.KeyCtrlL:
		return ActionClear, ""
	case tcell.KeyCtrlR:
		return ActionRerun, ""
	case tcell.KeyCtrlQ:
		return ActionQuit, ""
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		b.Backspace()
	case tcell.KeyDelete:
		b.Delete()
	case tcell.KeyLeft:
		b.MoveCaret(b.Caret() - 1)
	case tcell.KeyRight:
		b.MoveCaret(b.Caret() + 1)
	case tcell.KeyHome:
		b.MoveCaret(b.Boundary())
	case tcell.KeyEnd:
		b.MoveCaret(b.Len())
	case tcell.KeyRune:
		b.Insert(string(ev.Rune()))
	}
	return ActionNone, ""
}

// Draw renders the tail of the buffer and the status row.
func (s *Screen) Draw() {
	s.screen.Clear()
	width, height := s.screen.Size()
	if width <= 0 || height <= 0 {
		return
	}

	s.rows = wrap(s.buf.Lines(), width)
	view := height - 1
	s.top = 0
	if len(s.rows) > view {
		s.top = len(s.rows) - view
	}

	caret := s.buf.Caret()
	cursorX, cursorY := -1, -1
	for y := 0; y < view && s.top+y < len(s.rows); y++ {
		r := s.rows[s.top+y]
		for x, ch := range r.text {
			s.screen.SetContent(x, y, ch, nil, s.styles[s.buf.StyleAt(r.start+x)])
		}
		if caret >= r.start && caret <= r.start+len(r.text) && caret-r.start < width {
			cursorX, cursorY = caret-r.start, y
		}
	}

	statusStyle := tcell.StyleDefault.Reverse(true)
	for x := 0; x < width; x++ {
		s.screen.SetContent(x, height-1, ' ', nil, statusStyle)
	}
	for x, ch := range []rune(s.status) {
		if x >= width {
			break
		}
		s.screen.SetContent(x, height-1, ch, nil, statusStyle)
	}

	if cursorY >= 0 && s.buf.Editable() {
		s.screen.ShowCursor(cursorX, cursorY)
	} else {
		s.screen.HideCursor()
	}
	s.screen.Show()
}

// offsetAt maps a screen cell from the last frame to a buffer offset.
func (s *Screen) offsetAt(x, y int) int {
	i := s.top + y
	if y < 0 || i >= len(s.rows) {
		return s.buf.Len()
	}
	r := s.rows[i]
	if x > len(r.text) {
		x = len(r.text)
	}
	if x < 0 {
		x = 0
	}
	return r.start + x
}

// wrap splits lines into rows no wider than width.
func wrap(lines []Line, width int) []row {
	var rows []row
	for _, l := range lines {
		if len(l.Text) == 0 {
			rows = append(rows, row{start: l.Start})
			continue
		}
		for i := 0; i < len(l.Text); i += width {
			end := min(i+width, len(l.Text))
			rows = append(rows, row{start: l.Start + i, text: l.Text[i:end]})
		}
	}
	return rows
}
