package xtraceback

import (
	"errors"
	"fmt"
	"go/scanner"
	"strings"
	"unicode"
)

// SyntaxDetails locates a syntax error in source text.
type SyntaxDetails struct {
	Msg      string
	Filename string
	Line     int
	Offset   int    // 1-based column; 0 if unknown
	Text     string // offending source line; "" if unknown
}

// SyntaxDetailer is implemented by errors that point at a location in
// source text. A failing SyntaxDetails renders the error as a plain one.
type SyntaxDetailer interface {
	SyntaxDetails() (SyntaxDetails, error)
}

// SyntaxError is a ready-made [SyntaxDetailer].
type SyntaxError struct {
	Msg      string
	Filename string
	Line     int
	Offset   int
	Text     string
}

func (e *SyntaxError) Error() string {
	if e.Filename == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s (%s, line %d)", e.Msg, e.Filename, e.Line)
}

// SyntaxDetails implements [SyntaxDetailer].
func (e *SyntaxError) SyntaxDetails() (SyntaxDetails, error) {
	return SyntaxDetails{
		Msg:      e.Msg,
		Filename: e.Filename,
		Line:     e.Line,
		Offset:   e.Offset,
		Text:     e.Text,
	}, nil
}

var errNoSyntaxDetails = errors.New("no syntax details")

// syntaxDetailsOf extracts details from v, reading the offending line from
// disk for go/scanner errors. Panics in user implementations are reported
// as errors.
func syntaxDetailsOf(v any) (d SyntaxDetails, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("syntax details: %v", r)
		}
	}()
	switch e := v.(type) {
	case SyntaxDetailer:
		return e.SyntaxDetails()
	case *scanner.Error:
		return scannerDetails(e), nil
	case scanner.ErrorList:
		if len(e) == 0 {
			return SyntaxDetails{}, errNoSyntaxDetails
		}
		return scannerDetails(e[0]), nil
	}
	return SyntaxDetails{}, errNoSyntaxDetails
}

func scannerDetails(e *scanner.Error) SyntaxDetails {
	d := SyntaxDetails{
		Msg:      e.Msg,
		Filename: e.Pos.Filename,
		Line:     e.Pos.Line,
		Offset:   e.Pos.Column,
	}
	if lines, err := readLines(e.Pos.Filename); err == nil && e.Pos.Line > 0 && e.Pos.Line <= len(lines) {
		d.Text = lines[e.Pos.Line-1]
	}
	return d
}

// caretLine builds the marker line under the offending source line. Text
// before the offset is blanked, keeping whitespace such as tabs for
// alignment; only three leading spaces account for offset 1 being
// column 0.
func caretLine(text string, offset int) string {
	runes := []rune(strings.TrimRight(text, "\n"))
	offset = max(0, min(offset, len(runes)))
	prefix := []rune(strings.TrimLeftFunc(string(runes[:offset]), unicode.IsSpace))
	for i, r := range prefix {
		if !unicode.IsSpace(r) {
			prefix[i] = ' '
		}
	}
	return "   " + string(prefix) + "^\n"
}
