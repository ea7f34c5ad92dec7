package console

import (
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/runstorm/internal/runner"
)

var (
	colorRed    = lipgloss.Color("#E06C75")
	colorOrange = lipgloss.Color("#D19A66")
)

// Writer is a display for plain terminals and pipes. It writes each
// chunk as it arrives, coloring error and warning output. Input editing
// is left to the terminal's line discipline, so the editable-region
// calls are no-ops.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	styles map[runner.Style]lipgloss.Style

	// echoed is set when the terminal has already shown the newline
	// that ends the user's input line.
	echoed bool
}

// NewWriter creates a Writer. Colors are chosen by lipgloss for the
// terminal behind w and are dropped when w is not a terminal.
func NewWriter(w io.Writer) *Writer {
	r := lipgloss.NewRenderer(w)
	return &Writer{
		w: w,
		styles: map[runner.Style]lipgloss.Style{
			runner.StyleError:   r.NewStyle().Foreground(colorRed).Bold(true).TabWidth(lipgloss.NoTabConversion),
			runner.StyleWarning: r.NewStyle().Foreground(colorOrange).TabWidth(lipgloss.NoTabConversion),
		},
	}
}

// Append writes text, styling each line separately so that newlines
// are never wrapped in escape sequences.
func (w *Writer) Append(text string, style runner.Style) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.echoed {
		w.echoed = false
		text = strings.TrimPrefix(text, "\n")
		if text == "" {
			return
		}
	}

	st, ok := w.styles[style]
	if !ok {
		_, _ = io.WriteString(w.w, text)
		return
	}

	parts := strings.SplitAfter(text, "\n")
	var b strings.Builder
	for _, part := range parts {
		line := strings.TrimSuffix(part, "\n")
		if line != "" {
			b.WriteString(st.Render(line))
		}
		if len(line) < len(part) {
			b.WriteByte('\n')
		}
	}
	_, _ = io.WriteString(w.w, b.String())
}

// Echoed tells the writer that the terminal echoed the user's input
// line, so the newline the runner appends on submit is dropped.
func (w *Writer) Echoed() {
	w.mu.Lock()
	w.echoed = true
	w.mu.Unlock()
}

// SetEditableFrom implements runner.Sink.
func (w *Writer) SetEditableFrom(int) {}

// SetEditable implements runner.Sink.
func (w *Writer) SetEditable(bool) {}

// Clear implements runner.Sink. Scrollback is left alone.
func (w *Writer) Clear() {}
