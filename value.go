package xtraceback

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/davecgh/go-spew/spew"
	"github.com/mattn/go-runewidth"
)

// Shape is the structural category of a rendered value. It decides how an
// over-wide rendering is re-wrapped.
type Shape int

const (
	ShapeOther Shape = iota
	ShapeList
	ShapeSet
	ShapeMap
	ShapeTuple
	ShapeFrozenSet
)

type delimiters struct {
	start, end string
}

// shapeDelims is the fixed re-wrap registry. ShapeOther has no entry.
var shapeDelims = map[Shape]delimiters{
	ShapeList:      {"[", "]"},
	ShapeSet:       {"set([", "])"},
	ShapeMap:       {"{", "}"},
	ShapeTuple:     {"(", ")"},
	ShapeFrozenSet: {"frozenset([", "])"},
}

// Frozen is implemented by immutable set types. Their members render as
// frozenset([...]).
type Frozen interface {
	FrozenMembers() []any
}

// maxReprDepth bounds recursion through nested containers.
const maxReprDepth = 8

var spewConfig = spew.ConfigState{
	Indent:                  "",
	MaxDepth:                maxReprDepth,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// ShapeOf classifies v.
func ShapeOf(v any) Shape {
	if _, ok := v.(Frozen); ok {
		return ShapeFrozenSet
	}
	switch v.(type) {
	case nil, error, fmt.Stringer:
		return ShapeOther
	}
	t := reflect.TypeOf(v)
	switch t.Kind() {
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return ShapeOther
		}
		return ShapeList
	case reflect.Array:
		return ShapeTuple
	case reflect.Map:
		if isSetElem(t.Elem()) {
			return ShapeSet
		}
		return ShapeMap
	default:
		return ShapeOther
	}
}

func isSetElem(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t.NumField() == 0
}

// FormatVariable renders "name = value" indented by indent spaces, fitting
// the value into width columns where the value's shape allows it.
func FormatVariable(name string, value any, width, indent int, prefix, separator string) string {
	baseSize := indent + runewidth.StringWidth(prefix) + runewidth.StringWidth(name) + runewidth.StringWidth(separator)
	value = truncateText(value, width, baseSize)

	rendered := Repr(value)
	if baseSize+runewidth.StringWidth(rendered) > width {
		rendered = rewrap(rendered, ShapeOf(value), indent)
	}
	return strings.Repeat(" ", indent) + prefix + name + separator + rendered
}

// truncateText shortens strings longer than twice the print width in
// characters. The result fits the budget both in characters and in columns;
// two are reserved for the quotes and three for the ellipsis.
func truncateText(value any, width, baseSize int) any {
	var s string
	var isBytes bool
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s, isBytes = string(v), true
	default:
		return value
	}
	if utf8.RuneCountInString(s) <= width*2 {
		return value
	}
	limit := max(width-baseSize-2, 3)
	s = runewidth.Truncate(s, limit, "...")
	// zero-width runes survive Truncate
	if runes := []rune(s); len(runes) > limit {
		s = string(runes[:limit-3]) + "..."
	}
	if isBytes {
		return []byte(s)
	}
	return s
}

func rewrap(rendered string, shape Shape, indent int) string {
	d, ok := shapeDelims[shape]
	if !ok {
		return rendered
	}
	inner, ok := strings.CutPrefix(rendered, d.start)
	if !ok {
		return rendered
	}
	inner, ok = strings.CutSuffix(inner, d.end)
	if !ok || strings.TrimSpace(inner) == "" {
		return rendered
	}
	parts := splitTopLevel(inner)
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	sub := "\n" + strings.Repeat(" ", indent+4)
	return d.start + sub + strings.Join(parts, ","+sub) + "," + sub + d.end
}

// splitTopLevel splits s on commas that are outside brackets and quoted
// strings.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	var quote rune
	escaped := false
	for i, r := range s {
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case r == '\\' && quote != '`':
				escaped = true
			case r == quote:
				quote = 0
			}
			continue
		}
		switch r {
		case '"', '\'', '`':
			quote = r
		case '[', '{', '(':
			depth++
		case ']', '}', ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// Repr renders v on a single line. Rendering never panics: a value whose
// own text methods panic renders as <unprintable T object>.
func Repr(v any) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = unprintable(v)
		}
	}()
	var sb strings.Builder
	writeRepr(&sb, v, 0)
	return sb.String()
}

func unprintable(v any) string {
	return fmt.Sprintf("<unprintable %s object>", typeName(v))
}

// typeName is the dynamic type of v without pointer stars.
func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return strings.TrimLeft(reflect.TypeOf(v).String(), "*")
}

// textMethod returns the text of errors and Stringers.
func textMethod(v any) (string, bool) {
	switch x := v.(type) {
	case error:
		return x.Error(), true
	case fmt.Stringer:
		return x.String(), true
	}
	return "", false
}

func writeRepr(sb *strings.Builder, v any, depth int) {
	if v == nil {
		sb.WriteString("nil")
		return
	}
	if f, ok := v.(Frozen); ok {
		writeItems(sb, "frozenset([", "])", f.FrozenMembers(), depth)
		return
	}
	if s, ok := textMethod(v); ok {
		sb.WriteString(s)
		return
	}
	if depth >= maxReprDepth {
		sb.WriteString("...")
		return
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		sb.WriteString(strconv.Quote(rv.String()))
	case reflect.Bool:
		sb.WriteString(strconv.FormatBool(rv.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		sb.WriteString(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		sb.WriteString(strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32:
		sb.WriteString(strconv.FormatFloat(rv.Float(), 'g', -1, 32))
	case reflect.Float64:
		sb.WriteString(strconv.FormatFloat(rv.Float(), 'g', -1, 64))
	case reflect.Complex64, reflect.Complex128:
		sb.WriteString(strconv.FormatComplex(rv.Complex(), 'g', -1, 128))
	case reflect.Slice:
		if rv.IsNil() {
			sb.WriteString("nil")
			return
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			fmt.Fprintf(sb, "%q", rv.Bytes())
			return
		}
		writeItems(sb, "[", "]", elems(rv), depth)
	case reflect.Array:
		writeItems(sb, "(", ")", elems(rv), depth)
	case reflect.Map:
		if rv.IsNil() {
			sb.WriteString("nil")
			return
		}
		if isSetElem(rv.Type().Elem()) {
			writeItems(sb, "set([", "])", sortedKeys(rv, depth), depth)
			return
		}
		writeMap(sb, rv, depth)
	default:
		sb.WriteString(spewConfig.Sprintf("%+v", v))
	}
}

func elems(rv reflect.Value) []any {
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func writeItems(sb *strings.Builder, start, end string, items []any, depth int) {
	sb.WriteString(start)
	for i, item := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeRepr(sb, item, depth+1)
	}
	sb.WriteString(end)
}

type mapEntry struct {
	key, val string
}

// sortedKeys returns the map's keys ordered by their rendered text.
func sortedKeys(rv reflect.Value, depth int) []any {
	type keyText struct {
		text string
		key  any
	}
	keys := rv.MapKeys()
	rs := make([]keyText, len(keys))
	for i, k := range keys {
		var sb strings.Builder
		writeRepr(&sb, k.Interface(), depth+1)
		rs[i] = keyText{sb.String(), k.Interface()}
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].text < rs[j].text })
	out := make([]any, len(rs))
	for i, r := range rs {
		out[i] = r.key
	}
	return out
}

func writeMap(sb *strings.Builder, rv reflect.Value, depth int) {
	entries := make([]mapEntry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		var k, v strings.Builder
		writeRepr(&k, iter.Key().Interface(), depth+1)
		writeRepr(&v, iter.Value().Interface(), depth+1)
		entries = append(entries, mapEntry{k.String(), v.String()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	sb.WriteString("{")
	for i, e := range entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(e.key)
		sb.WriteString(": ")
		sb.WriteString(e.val)
	}
	sb.WriteString("}")
}
