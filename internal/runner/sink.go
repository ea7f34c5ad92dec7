package runner

// Sink is the display the Controller writes to.
//
// Offsets count runes from the start of the display. Text appended by the
// Controller is history; the region from the editable offset to the end
// belongs to the user. A Sink must never let the user edit before that
// offset.
type Sink interface {
	// Append adds text to the history.
	Append(text string, style Style)

	// SetEditableFrom moves the start of the user's region.
	SetEditableFrom(offset int)

	// SetEditable enables or disables user input.
	SetEditable(editable bool)

	// Clear drops all history and resets the editable offset to zero.
	Clear()
}
