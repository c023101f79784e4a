package xtraceback

import (
	"fmt"
	"go/token"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	tracebackHeader = "Traceback (most recent call last):\n"
	globalsPrefix   = "g:"
	currentMarker   = "  -->"
	contextMarker   = "     "
	varIndent       = 4
	varSeparator    = " = "
)

// collectFrames applies offset and limit to the raw frames, resolves the
// examined ones and drops those the provider excludes.
func (f *Formatter) collectFrames(frames []Frame) []FrameInfo {
	start := max(0, min(f.opts.offset, len(frames)))
	examined := frames[start:]
	if limit, ok := f.opts.Limit(); ok && len(examined) > limit {
		examined = examined[:max(limit, 0)]
	}
	var out []FrameInfo
	for i, fr := range examined {
		info := f.opts.provider.Resolve(fr, f.opts.context)
		if info.Exclude {
			f.opts.logger.Debug("frame excluded", "index", start+i, "function", fr.Function)
			continue
		}
		out = append(out, info)
	}
	return out
}

// numberPadding is the widest line number among the included frames.
func numberPadding(frames []FrameInfo) int {
	padding := 0
	for _, info := range frames {
		last := info.Line
		if n := len(info.Context); n > 0 {
			last = max(last, info.ContextStart+n-1)
		}
		padding = max(padding, len(strconv.Itoa(last)))
	}
	return padding
}

func (f *Formatter) renderFrame(info FrameInfo, padding int) string {
	filename := info.Filename
	if f.opts.shortenFilenames && filename != "" {
		if _, err := os.Stat(filename); err == nil {
			filename = ShortenFilename(filename)
		}
	}
	function := info.Function
	if function == "" {
		function = "<unknown>"
	}
	if f.opts.qualifyMethods && info.Class != "" {
		function = info.Class + "." + function
	}

	lines := []string{fmt.Sprintf(`  File "%s", line %d, in %s`, filename, info.Line, function)}

	for i, src := range info.Context {
		n := info.ContextStart + i
		marker := contextMarker
		if n == info.Line {
			marker = currentMarker
		}
		line := fmt.Sprintf("%s %*d", marker, padding, n)
		if src = strings.TrimRight(src, " \t\r\n"); src != "" {
			line += " " + src
		}
		lines = append(lines, line)
	}

	shown := make(map[string]bool)
	if f.opts.showArgs {
		for _, v := range info.Args {
			shown[v.Name] = true
			lines = append(lines, f.FormatVariable(v.Name, v.Value, varIndent, "", varSeparator))
		}
	}
	if f.opts.showLocals {
		for _, v := range sortedVars(info.Locals) {
			if shown[v.Name] {
				continue
			}
			lines = append(lines, f.FormatVariable(v.Name, v.Value, varIndent, "", varSeparator))
		}
	}
	if f.opts.showGlobals {
		for _, v := range sortedVars(info.Globals) {
			if !f.globalEligible(v) {
				continue
			}
			lines = append(lines, f.FormatVariable(v.Name, v.Value, varIndent, globalsPrefix, varSeparator))
		}
	}
	return strings.Join(lines, "\n")
}

func sortedVars(vars []Var) []Var {
	out := slices.Clone(vars)
	slices.SortStableFunc(out, func(a, b Var) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func (f *Formatter) globalEligible(v Var) bool {
	prefix, ok := f.opts.GlobalsModuleInclude()
	return !ok || v.Package == "" || strings.HasPrefix(v.Package, prefix)
}

func (f *Formatter) formatTB() []string {
	lines := make([]string, len(f.tbFrames))
	for i, block := range f.tbFrames {
		lines[i] = block + "\n"
	}
	return lines
}

func (f *Formatter) formatException() []string {
	lines := f.formatTB()
	if len(lines) > 0 {
		lines = append([]string{tracebackHeader}, lines...)
	}
	return append(lines, f.formatExceptionOnly()...)
}

func (f *Formatter) formatExceptionOnly() []string {
	var lines []string
	msg := messageText(f.value)

	if f.value != nil {
		if d, err := syntaxDetailsOf(f.value); err == nil {
			filename := d.Filename
			if filename != "" && f.opts.shortenFilenames {
				filename = ShortenFilename(filename)
			}
			if filename == "" {
				filename = "<string>"
			}
			lines = append(lines, fmt.Sprintf("  File \"%s\", line %d\n", filename, d.Line))
			if d.Text != "" {
				lines = append(lines, fmt.Sprintf("    %s\n", strings.TrimSpace(d.Text)))
				if d.Offset != 0 {
					lines = append(lines, caretLine(d.Text, d.Offset))
				}
				msg = d.Msg
			}
		}
	}

	line := f.typeName
	if f.value != nil && msg != "" {
		line += ": " + msg
	}
	return append(lines, line+"\n")
}

// exceptionTypeName names the exception: the explicit type, else the
// value's dynamic type, else "error". Unexported error types are shown as
// "error".
func exceptionTypeName(etype string, value any) string {
	switch {
	case etype != "":
		return etype
	case value == nil:
		return "error"
	}
	if _, isErr := value.(error); isErr && !exportedType(value) {
		return "error"
	}
	return typeName(value)
}

// exportedType reports whether the named type of v (through pointers) is
// exported. Errors from errors.New and fmt.Errorf are not.
func exportedType(v any) bool {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name() != "" && token.IsExported(t.Name())
}

// messageText converts an exception value to text, trying progressively
// more permissive conversions before giving up with a placeholder.
func messageText(v any) string {
	if v == nil {
		return ""
	}
	for _, convert := range []func(any) (string, bool){directText, escapedText} {
		if s, ok := convert(v); ok {
			return s
		}
	}
	return unprintable(v)
}

func directText(v any) (s string, ok bool) {
	defer func() {
		if recover() != nil {
			s, ok = "", false
		}
	}()
	s, ok = textMethod(v)
	if !ok {
		s = fmt.Sprint(v)
	}
	return s, utf8.ValidString(s)
}

func escapedText(v any) (s string, ok bool) {
	defer func() {
		if recover() != nil {
			s, ok = "", false
		}
	}()
	var raw string
	rv := reflect.ValueOf(v)
	switch {
	case rv.Kind() == reflect.String:
		raw = rv.String()
	case rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8:
		raw = string(rv.Bytes())
	default:
		if raw, ok = textMethod(v); !ok {
			raw = fmt.Sprint(v)
		}
	}
	q := strconv.QuoteToASCII(raw)
	return q[1 : len(q)-1], true
}
