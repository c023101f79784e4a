package xtraceback

import (
	"bufio"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// SkipFrameVar is the local variable name that, when bound to a truthy
// value, hides a frame from the traceback.
const SkipFrameVar = "__xtraceback_skip_frame__"

// Frame is one raw call-stack entry.
type Frame struct {
	PC       uintptr
	File     string
	Line     int
	Function string // runtime-qualified, e.g. "github.com/x/pkg.(*T).Method"

	// Bindings known for the frame. Go's runtime does not expose these;
	// interpreters and callers that track them may fill them in.
	Args    []Var
	Locals  []Var
	Globals []Var
}

// Var is a named value bound in a frame.
type Var struct {
	Name    string
	Value   any
	Package string // defining package, used by the globals filter
}

// FrameInfo is the resolved metadata for one frame.
type FrameInfo struct {
	Filename     string
	Line         int
	Function     string
	Class        string   // receiver type, when the function is a method
	Context      []string // source lines around Line
	ContextStart int      // line number of Context[0]
	Args         []Var
	Locals       []Var
	Globals      []Var
	Exclude      bool
}

// FrameProvider resolves raw frames into [FrameInfo].
type FrameProvider interface {
	Resolve(f Frame, context int) FrameInfo
}

// SourceProvider is the default [FrameProvider]. It reads source context
// from disk and splits runtime function names into class and function.
// A SourceProvider caches file contents and is not safe for concurrent use.
type SourceProvider struct {
	// ExcludeFunctions hides frames whose runtime function name starts with
	// any of these prefixes.
	ExcludeFunctions []string
	// ExcludeFiles hides frames whose file matches any of these doublestar
	// glob patterns.
	ExcludeFiles []string

	files map[string][]string
}

// NewSourceProvider returns a SourceProvider with no exclusions.
func NewSourceProvider() *SourceProvider {
	return &SourceProvider{}
}

// Resolve implements [FrameProvider].
func (p *SourceProvider) Resolve(f Frame, context int) FrameInfo {
	class, function := SplitFunction(f.Function)
	info := FrameInfo{
		Filename: f.File,
		Line:     f.Line,
		Function: function,
		Class:    class,
		Args:     f.Args,
		Locals:   filterVars(f.Locals),
		Globals:  filterVars(f.Globals),
		Exclude:  p.excluded(f),
	}
	if context > 0 && f.Line > 0 {
		info.Context, info.ContextStart = p.contextLines(f.File, f.Line, context)
	}
	return info
}

func (p *SourceProvider) excluded(f Frame) bool {
	for _, v := range f.Locals {
		if v.Name == SkipFrameVar && truthy(v.Value) {
			return true
		}
	}
	for _, prefix := range p.ExcludeFunctions {
		if strings.HasPrefix(f.Function, prefix) {
			return true
		}
	}
	for _, pattern := range p.ExcludeFiles {
		if ok, err := doublestar.Match(pattern, filepath.ToSlash(f.File)); err == nil && ok {
			return true
		}
	}
	return false
}

// contextLines returns up to n lines centered on line, clamped to the file.
func (p *SourceProvider) contextLines(file string, line, n int) ([]string, int) {
	lines, ok := p.source(file)
	if !ok || line > len(lines) {
		return nil, 0
	}
	start := line - 1 - n/2
	start = max(0, min(start, len(lines)-n))
	end := min(start+n, len(lines))
	return lines[start:end], start + 1
}

func (p *SourceProvider) source(file string) ([]string, bool) {
	if lines, ok := p.files[file]; ok {
		return lines, lines != nil
	}
	if p.files == nil {
		p.files = make(map[string][]string)
	}
	lines, err := readLines(file)
	if err != nil {
		p.files[file] = nil
		return nil, false
	}
	p.files[file] = lines
	return lines, true
}

func readLines(file string) ([]string, error) {
	fh, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	var lines []string
	sc := bufio.NewScanner(fh)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// filterVars drops blank identifiers and the skip marker.
func filterVars(vars []Var) []Var {
	var out []Var
	for _, v := range vars {
		if v.Name == "_" || v.Name == SkipFrameVar {
			continue
		}
		out = append(out, v)
	}
	return out
}

// SplitFunction splits a runtime function name into its receiver type and
// function name. Package paths are dropped:
//
//	"github.com/x/pkg.(*Server).handle" → ("Server", "handle")
//	"github.com/x/pkg.Run.func1"        → ("", "Run.func1")
//	"main.main"                         → ("", "main")
func SplitFunction(name string) (class, function string) {
	base := name
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.Index(base, "."); i >= 0 {
		base = base[i+1:]
	}
	if strings.HasPrefix(base, "(") {
		if end := strings.Index(base, ")."); end > 0 {
			class = strings.TrimLeft(base[1:end], "*")
			if i := strings.Index(class, "["); i >= 0 {
				class = class[:i]
			}
			return class, base[end+2:]
		}
	}
	return "", base
}

// defaultMaxDepth bounds [Capture].
const defaultMaxDepth = 64

// Capture records the calling goroutine's stack, skipping skip frames above
// the caller of Capture. Frames are ordered most recent call last, matching
// the order a traceback prints them in.
func Capture(skip int) []Frame {
	pc := make([]uintptr, defaultMaxDepth)
	// +2 skips runtime.Callers and Capture itself.
	n := runtime.Callers(skip+2, pc)
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pc[:n])
	var out []Frame
	for {
		fr, more := frames.Next()
		out = append(out, Frame{
			PC:       fr.PC,
			File:     fr.File,
			Line:     fr.Line,
			Function: fr.Function,
		})
		if !more {
			break
		}
	}
	slices.Reverse(out)
	return out
}
