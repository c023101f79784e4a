package xtraceback

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

// Config is a configuration bag passed to [New] and [NewOptions]. Keys are
// the option and flag names documented on [Options]. A nil value means
// "use the default".
type Config map[string]any

// ColorMode defines color output behavior.
type ColorMode string

const (
	ColorModeAuto   ColorMode = "auto"   // Color when the stream is a terminal
	ColorModeAlways ColorMode = "always" // Always color
	ColorModeNever  ColorMode = "never"  // No color
)

// DefaultWidth is the print width used when none is configured and the
// stream is not a terminal.
const DefaultWidth = 80

// Option keys.
const (
	KeyStream               = "stream"
	KeyColor                = "color"
	KeyPrintWidth           = "print_width"
	KeyOffset               = "offset"
	KeyLimit                = "limit"
	KeyContext              = "context"
	KeyGlobalsModuleInclude = "globals_module_include"
	KeyHighlighter          = "highlighter"
	KeyProbe                = "probe"
	KeyProvider             = "provider"
	KeyLogger               = "logger"

	KeyShowArgs         = "show_args"
	KeyShowLocals       = "show_locals"
	KeyShowGlobals      = "show_globals"
	KeyQualifyMethods   = "qualify_methods"
	KeyShortenFilenames = "shorten_filenames"
)

var valueKeys = []string{
	KeyStream, KeyColor, KeyPrintWidth, KeyOffset, KeyLimit, KeyContext,
	KeyGlobalsModuleInclude, KeyHighlighter, KeyProbe, KeyProvider, KeyLogger,
}

var flagDefaults = map[string]bool{
	KeyShowArgs:         true,
	KeyShowLocals:       true,
	KeyShowGlobals:      false,
	KeyQualifyMethods:   true,
	KeyShortenFilenames: true,
}

// Keys returns every recognized configuration key, sorted.
func Keys() []string {
	keys := slices.Clone(valueKeys)
	for k := range flagDefaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Options is the validated form of a [Config]. It is immutable after
// construction.
type Options struct {
	stream           io.Writer
	color            ColorMode
	printWidth       int // 0 = unset
	offset           int
	limit            int // -1 = unlimited
	context          int
	globalsInclude   string
	hasGlobalsFilter bool
	highlighter      Highlighter
	probe            Probe
	provider         FrameProvider
	logger           *slog.Logger

	showArgs         bool
	showLocals       bool
	showGlobals      bool
	qualifyMethods   bool
	shortenFilenames bool
}

// UnsupportedOptionError reports configuration keys that are not recognized.
// It matches [ErrUnsupportedOption] with errors.Is.
type UnsupportedOptionError struct {
	Keys        []string
	Suggestions map[string]string
}

func (e *UnsupportedOptionError) Error() string {
	parts := make([]string, len(e.Keys))
	for i, k := range e.Keys {
		if s, ok := e.Suggestions[k]; ok {
			parts[i] = fmt.Sprintf("%q (did you mean %q?)", k, s)
		} else {
			parts[i] = fmt.Sprintf("%q", k)
		}
	}
	return fmt.Sprintf("%s: %s", ErrUnsupportedOption, strings.Join(parts, ", "))
}

// Is reports whether target is ErrUnsupportedOption.
func (e *UnsupportedOptionError) Is(target error) bool {
	return target == ErrUnsupportedOption
}

// NewOptions validates cfg and fills in defaults. Unknown keys fail with an
// [*UnsupportedOptionError] listing all of them; a recognized key with a
// value of the wrong type fails with [ErrInvalidOption].
func NewOptions(cfg Config) (Options, error) {
	if unknown := unsupportedKeys(cfg); len(unknown) > 0 {
		return Options{}, &UnsupportedOptionError{
			Keys:        unknown,
			Suggestions: suggestKeys(unknown),
		}
	}

	o := Options{
		color:   ColorModeAuto,
		limit:   -1,
		context: 5,
	}
	var err error
	if v := cfg[KeyStream]; v != nil {
		w, ok := v.(io.Writer)
		if !ok {
			return Options{}, invalidOption(KeyStream, v)
		}
		o.stream = w
	}
	if v := cfg[KeyColor]; v != nil {
		if o.color, err = colorModeOf(v); err != nil {
			return Options{}, err
		}
	}
	if v := cfg[KeyPrintWidth]; v != nil {
		if o.printWidth, err = intOption(KeyPrintWidth, v); err != nil {
			return Options{}, err
		}
	}
	if v := cfg[KeyOffset]; v != nil {
		if o.offset, err = intOption(KeyOffset, v); err != nil {
			return Options{}, err
		}
	}
	if v := cfg[KeyLimit]; v != nil {
		if o.limit, err = intOption(KeyLimit, v); err != nil {
			return Options{}, err
		}
	}
	if v := cfg[KeyContext]; v != nil {
		if o.context, err = intOption(KeyContext, v); err != nil {
			return Options{}, err
		}
	}
	if v := cfg[KeyGlobalsModuleInclude]; v != nil {
		s, ok := v.(string)
		if !ok {
			return Options{}, invalidOption(KeyGlobalsModuleInclude, v)
		}
		o.globalsInclude = s
		o.hasGlobalsFilter = true
	}

	o.highlighter = DefaultHighlighter
	if v := cfg[KeyHighlighter]; v != nil {
		h, ok := v.(Highlighter)
		if !ok {
			return Options{}, invalidOption(KeyHighlighter, v)
		}
		o.highlighter = h
	}
	o.probe = TermProbe{}
	if v := cfg[KeyProbe]; v != nil {
		p, ok := v.(Probe)
		if !ok {
			return Options{}, invalidOption(KeyProbe, v)
		}
		o.probe = p
	}
	if v := cfg[KeyProvider]; v != nil {
		p, ok := v.(FrameProvider)
		if !ok {
			return Options{}, invalidOption(KeyProvider, v)
		}
		o.provider = p
	} else {
		o.provider = NewSourceProvider()
	}
	o.logger = slog.Default()
	if v := cfg[KeyLogger]; v != nil {
		l, ok := v.(*slog.Logger)
		if !ok {
			return Options{}, invalidOption(KeyLogger, v)
		}
		o.logger = l
	}

	flag := func(key string) bool {
		if v := cfg[key]; v != nil {
			return truthy(v)
		}
		return flagDefaults[key]
	}
	o.showArgs = flag(KeyShowArgs)
	o.showLocals = flag(KeyShowLocals)
	o.showGlobals = flag(KeyShowGlobals)
	o.qualifyMethods = flag(KeyQualifyMethods)
	o.shortenFilenames = flag(KeyShortenFilenames)
	return o, nil
}

// Stream returns the configured output stream, or nil.
func (o Options) Stream() io.Writer { return o.stream }

// Color returns the configured color mode.
func (o Options) Color() ColorMode { return o.color }

// PrintWidth returns the configured print width and whether one was set.
func (o Options) PrintWidth() (int, bool) { return o.printWidth, o.printWidth > 0 }

// Offset returns the number of raw frames skipped.
func (o Options) Offset() int { return o.offset }

// Limit returns the maximum number of raw frames examined after the offset
// and whether a limit is set. A negative "limit" means no limit.
func (o Options) Limit() (int, bool) { return o.limit, o.limit >= 0 }

// Context returns the number of source lines shown per frame.
func (o Options) Context() int { return o.context }

// GlobalsModuleInclude returns the package prefix globals must match and
// whether the filter is set.
func (o Options) GlobalsModuleInclude() (string, bool) {
	return o.globalsInclude, o.hasGlobalsFilter
}

func (o Options) ShowArgs() bool         { return o.showArgs }
func (o Options) ShowLocals() bool       { return o.showLocals }
func (o Options) ShowGlobals() bool      { return o.showGlobals }
func (o Options) QualifyMethods() bool   { return o.qualifyMethods }
func (o Options) ShortenFilenames() bool { return o.shortenFilenames }

func unsupportedKeys(cfg Config) []string {
	var unknown []string
	for k := range cfg {
		if slices.Contains(valueKeys, k) {
			continue
		}
		if _, ok := flagDefaults[k]; ok {
			continue
		}
		unknown = append(unknown, k)
	}
	sort.Strings(unknown)
	return unknown
}

// suggestKeys pairs each unknown key with the best fuzzy match among the
// recognized keys, trying both match directions.
func suggestKeys(unknown []string) map[string]string {
	known := Keys()
	out := make(map[string]string)
	for _, k := range unknown {
		if matches := fuzzy.Find(k, known); len(matches) > 0 {
			out[k] = matches[0].Str
			continue
		}
		for _, cand := range known {
			if len(fuzzy.Find(cand, []string{k})) > 0 {
				out[k] = cand
				break
			}
		}
	}
	return out
}

func invalidOption(key string, v any) error {
	return fmt.Errorf("%w: %s does not accept %T", ErrInvalidOption, key, v)
}

func colorModeOf(v any) (ColorMode, error) {
	switch c := v.(type) {
	case bool:
		if c {
			return ColorModeAlways, nil
		}
		return ColorModeNever, nil
	case ColorMode:
		v = string(c)
	}
	s, ok := v.(string)
	if !ok {
		return "", invalidOption(KeyColor, v)
	}
	switch m := ColorMode(strings.ToLower(s)); m {
	case ColorModeAuto, ColorModeAlways, ColorModeNever:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %s must be one of auto, always, never; got %q", ErrInvalidOption, KeyColor, s)
	}
}

// intOption accepts any integer kind, and floats with no fractional part
// (decoded YAML/TOML/JSON numbers).
func intOption(key string, v any) (int, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f == math.Trunc(f) {
			return int(f), nil
		}
	}
	return 0, invalidOption(key, v)
}

// truthy coerces a flag value to bool: zero numbers, empty strings and
// empty collections are false.
func truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	default:
		return true
	}
}
