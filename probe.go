package xtraceback

import (
	"io"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// Probe inspects an output stream.
type Probe interface {
	// IsTerminal reports whether w is an interactive terminal.
	IsTerminal(w io.Writer) bool
	// Width returns the terminal column count of w, if known.
	Width(w io.Writer) (int, bool)
}

type fder interface {
	Fd() uintptr
}

// TermProbe is the default [Probe]. It recognizes writers exposing a file
// descriptor, such as *os.File.
type TermProbe struct{}

// IsTerminal implements [Probe].
func (TermProbe) IsTerminal(w io.Writer) bool {
	f, ok := w.(fder)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Width implements [Probe].
func (p TermProbe) Width(w io.Writer) (int, bool) {
	if !p.IsTerminal(w) {
		return 0, false
	}
	width, _, err := term.GetSize(int(w.(fder).Fd()))
	if err != nil || width <= 0 {
		return 0, false
	}
	return width, true
}
