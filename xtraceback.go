package xtraceback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"strings"
)

// Sentinel errors for programmatic error handling.
var (
	ErrUnsupportedOption       = errors.New("unsupported options")
	ErrInvalidOption           = errors.New("invalid option")
	ErrNoStream                = errors.New("no stream configured")
	ErrHighlightUnavailable    = errors.New("highlighting not available")
	ErrHighlightInterrupted    = errors.New("highlighting interrupted")
	ErrNoTerminal              = errors.New("terminal does not support color")
	ErrUnsupportedConfigFormat = errors.New("unsupported config format")
)

// Exception is the record being formatted: the exception type, its value
// and the raw stack frames, oldest call first.
type Exception struct {
	Type   string // type name; derived from Value when empty
	Value  any
	Frames []Frame
}

// StackFramer is implemented by errors that carry their own stack.
type StackFramer interface {
	StackFrames() []Frame
}

// FromError builds an Exception for err. When frames is nil and err (or an
// error it wraps) implements [StackFramer], its frames are used.
func FromError(err error, frames []Frame) Exception {
	if frames == nil {
		var sf StackFramer
		if errors.As(err, &sf) {
			frames = sf.StackFrames()
		}
	}
	return Exception{Value: err, Frames: frames}
}

// Formatter renders one exception. Frames are resolved and rendered by
// [New]; the raw frames are not retained. A Formatter is not safe for
// concurrent use.
type Formatter struct {
	opts     Options
	typeName string
	value    any
	width    int
	color    bool
	tbFrames []string

	// lazily built on first highlight
	lexer     Lexer
	formatter TokenFormatter
	plain     bool
}

// New validates cfg and renders the frames of exc.
func New(exc Exception, cfg Config) (*Formatter, error) {
	opts, err := NewOptions(cfg)
	if err != nil {
		return nil, err
	}
	f := &Formatter{
		opts:     opts,
		typeName: exceptionTypeName(exc.Type, exc.Value),
		value:    exc.Value,
	}
	f.color = f.resolveColor()
	f.width = f.resolveWidth()

	frames := f.collectFrames(exc.Frames)
	padding := numberPadding(frames)
	f.tbFrames = make([]string, len(frames))
	for i, info := range frames {
		f.tbFrames[i] = f.renderFrame(info, padding)
	}
	return f, nil
}

// Options returns the validated options.
func (f *Formatter) Options() Options { return f.opts }

// Width returns the print width in effect.
func (f *Formatter) Width() int { return f.width }

// Colored reports whether output is highlighted.
func (f *Formatter) Colored() bool { return f.color }

func (f *Formatter) resolveColor() bool {
	switch f.opts.color {
	case ColorModeAlways:
		return true
	case ColorModeNever:
		return false
	default:
		return f.opts.stream != nil && f.opts.probe.IsTerminal(f.opts.stream)
	}
}

func (f *Formatter) resolveWidth() int {
	if w, ok := f.opts.PrintWidth(); ok {
		return w
	}
	if f.opts.stream != nil {
		if w, ok := f.opts.probe.Width(f.opts.stream); ok {
			return w
		}
	}
	return DefaultWidth
}

// FormatVariable renders one binding at the Formatter's print width.
func (f *Formatter) FormatVariable(name string, value any, indent int, prefix, separator string) string {
	return FormatVariable(name, value, f.width, indent, prefix, separator)
}

// FormatTB returns the stack frame lines.
func (f *Formatter) FormatTB(ctx context.Context) ([]string, error) {
	return f.formatLines(ctx, f.formatTB())
}

// FormatExceptionOnly returns the final exception line(s).
func (f *Formatter) FormatExceptionOnly(ctx context.Context) ([]string, error) {
	return f.formatLines(ctx, f.formatExceptionOnly())
}

// FormatException returns the header, stack frame lines and exception
// line(s).
func (f *Formatter) FormatException(ctx context.Context) ([]string, error) {
	return f.formatLines(ctx, f.formatException())
}

// PrintTB writes the stack frame lines to the configured stream.
func (f *Formatter) PrintTB(ctx context.Context) error {
	return f.printLines(ctx, f.formatTB())
}

// PrintException writes the full traceback to the configured stream.
func (f *Formatter) PrintException(ctx context.Context) error {
	return f.printLines(ctx, f.formatException())
}

// String returns the full traceback. An interrupted highlight yields plain
// text.
func (f *Formatter) String() string {
	s, _ := f.strLines(context.Background(), f.formatException())
	return s
}

func (f *Formatter) formatLines(ctx context.Context, lines []string) ([]string, error) {
	if !f.color {
		return lines, nil
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		s, err := f.highlight(ctx, line)
		if err != nil {
			return lines, err
		}
		out[i] = s
	}
	return out, nil
}

func (f *Formatter) strLines(ctx context.Context, lines []string) (string, error) {
	s := strings.Join(lines, "")
	if !f.color {
		return s, nil
	}
	return f.highlight(ctx, s)
}

func (f *Formatter) printLines(ctx context.Context, lines []string) error {
	if f.opts.stream == nil {
		return ErrNoStream
	}
	s, err := f.strLines(ctx, lines)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(f.opts.stream, s); err != nil {
		return fmt.Errorf("write traceback: %w", err)
	}
	return nil
}

// Write renders exc with cfg and writes it to w.
func Write(w io.Writer, exc Exception, cfg Config) error {
	c := maps.Clone(cfg)
	if c == nil {
		c = Config{}
	}
	c[KeyStream] = w
	f, err := New(exc, c)
	if err != nil {
		return err
	}
	return f.PrintException(context.Background())
}

// Sprint renders exc with cfg and returns the text.
func Sprint(exc Exception, cfg Config) (string, error) {
	f, err := New(exc, cfg)
	if err != nil {
		return "", err
	}
	return f.strLines(context.Background(), f.formatException())
}
