// Package console provides the displays the run engine writes to.
//
// Buffer is the text model of the output pane. It keeps appended output
// as read-only history and lets the user edit only the text after the
// prompt boundary. Screen draws a Buffer with tcell and turns key
// presses into actions. Writer is a line-oriented display for plain
// terminals and pipes.
//
// Buffer, Screen and Writer all implement runner.Sink.
package console
