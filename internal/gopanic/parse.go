// Package gopanic parses the goroutine dump a Go program prints when it
// dies from an unrecovered panic or a fatal runtime error.
package gopanic

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// ErrNoPanic is returned when the input holds no panic or fatal error header.
var ErrNoPanic = errors.New("no panic found")

// Kind is the header a dump starts with.
type Kind string

const (
	KindPanic Kind = "panic"
	KindFatal Kind = "fatal error"
)

// RuntimeErrorType names panics raised by the runtime itself.
const RuntimeErrorType = "runtime.Error"

// Arg is one argument word from a dump, printed as-is.
type Arg string

func (a Arg) String() string { return string(a) }

// Frame is one call in a goroutine stack.
type Frame struct {
	Function  string
	Args      []Arg
	File      string
	Line      int
	CreatedBy bool // the "created by" entry that started the goroutine
}

// Dump is a parsed crash report.
type Dump struct {
	Kind Kind
	// Messages holds the panic values in the order printed. Earlier ones
	// were recovered and re-panicked; the last one killed the program.
	Messages  []string
	Goroutine int
	State     string
	// Frames are ordered oldest call first.
	Frames []Frame
}

// Message returns the fatal panic value.
func (d *Dump) Message() string {
	if len(d.Messages) == 0 {
		return ""
	}
	return d.Messages[len(d.Messages)-1]
}

// Recovered reports whether an earlier panic was recovered before the
// fatal one.
func (d *Dump) Recovered() bool { return len(d.Messages) > 1 }

// Type is the exception type shown for the dump.
func (d *Dump) Type() string {
	if d.Kind == KindPanic && strings.HasPrefix(d.Message(), "runtime error:") {
		return RuntimeErrorType
	}
	return string(d.Kind)
}

var (
	headerRe    = regexp.MustCompile(`^\s*(panic|fatal error): (.*?)(?: \[recovered(?:, repanicked)?\])?$`)
	goroutineRe = regexp.MustCompile(`^goroutine (\d+) \[([^\]]*)\]:$`)
	createdByRe = regexp.MustCompile(`^created by (\S+?)(?: in goroutine \d+)?$`)
	locationRe  = regexp.MustCompile(`^\t(.+):(\d+)(?: \+0x[0-9a-f]+)?$`)
)

// Parse reads a dump and returns the header and the first goroutine's
// stack. Lines before the header are ignored.
func Parse(r io.Reader) (*Dump, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	d := &Dump{}
	var (
		inStack bool
		msgOpen bool // following lines continue a multi-line message
		pending *Frame
	)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")

		if !inStack {
			if m := headerRe.FindStringSubmatch(line); m != nil {
				if d.Kind == "" {
					d.Kind = Kind(m[1])
				}
				d.Messages = append(d.Messages, m[2])
				msgOpen = true
				continue
			}
			if m := goroutineRe.FindStringSubmatch(line); m != nil && d.Kind != "" {
				d.Goroutine, _ = strconv.Atoi(m[1])
				d.State = m[2]
				inStack = true
				continue
			}
			switch {
			case line == "":
				msgOpen = false
			case strings.HasPrefix(line, "[signal "):
			case msgOpen:
				d.Messages[len(d.Messages)-1] += "\n" + line
			}
			continue
		}

		if line == "" {
			break
		}
		if m := locationRe.FindStringSubmatch(line); m != nil {
			if pending != nil {
				pending.File = m[1]
				pending.Line, _ = strconv.Atoi(m[2])
				d.Frames = append(d.Frames, *pending)
				pending = nil
			}
			continue
		}
		if pending != nil {
			d.Frames = append(d.Frames, *pending)
		}
		pending = parseCall(line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read dump: %w", err)
	}
	if d.Kind == "" {
		return nil, ErrNoPanic
	}
	if pending != nil {
		d.Frames = append(d.Frames, *pending)
	}
	slices.Reverse(d.Frames)
	return d, nil
}

// parseCall parses a function line such as "main.(*T).run(0xc000010000, 0x2)"
// or "created by main.main in goroutine 1".
func parseCall(line string) *Frame {
	if m := createdByRe.FindStringSubmatch(line); m != nil {
		return &Frame{Function: m[1], CreatedBy: true}
	}
	if !strings.HasSuffix(line, ")") {
		return &Frame{Function: line}
	}
	open := argsStart(line)
	if open < 0 {
		return &Frame{Function: line}
	}
	return &Frame{
		Function: line[:open],
		Args:     splitArgs(line[open+1 : len(line)-1]),
	}
}

// argsStart finds the parenthesis that opens the trailing argument list.
func argsStart(line string) int {
	depth := 0
	for i := len(line) - 1; i >= 0; i-- {
		switch line[i] {
		case ')':
			depth++
		case '(':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitArgs splits the argument words. Elided arguments ("...") are dropped
// and "{...}" groups are kept whole.
func splitArgs(s string) []Arg {
	var args []Arg
	depth, start := 0, 0
	flush := func(end int) {
		word := strings.TrimSpace(s[start:end])
		if word != "" && word != "..." {
			args = append(args, Arg(word))
		}
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(s))
	return args
}
