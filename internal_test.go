package xtraceback

import (
	"context"
	"go/parser"
	"go/scanner"
	"go/token"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaretLine(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		text   string
		offset int
		want   string
	}{
		"leading spaces stripped": {text: "  x = (y", offset: 5, want: "      ^\n"},
		"first column":            {text: "(", offset: 1, want: "    ^\n"},
		"zero offset":             {text: "abc", offset: 0, want: "   ^\n"},
		"offset past end clamped": {text: "ab", offset: 9, want: "     ^\n"},
		"tabs preserved":          {text: "a\tb", offset: 3, want: "    \t ^\n"},
		"wide runes count once":   {text: "é=1", offset: 2, want: "     ^\n"},
		"trailing newline":        {text: "ab\n", offset: 2, want: "     ^\n"},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, caretLine(tc.text, tc.offset))
		})
	}
}

func TestSplitTopLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		in   string
		want []string
	}{
		"flat":           {in: "1, 2, 3", want: []string{"1", " 2", " 3"}},
		"nested":         {in: "[1, 2], {a: b, c: d}", want: []string{"[1, 2]", " {a: b, c: d}"}},
		"quoted commas":  {in: `"a,b", 'c,d'`, want: []string{`"a,b"`, ` 'c,d'`}},
		"escaped quotes": {in: `"a\",b", c`, want: []string{`"a\",b"`, " c"}},
		"raw string":     {in: "`a\\`, b", want: []string{"`a\\`", " b"}},
		"single":         {in: "x", want: []string{"x"}},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, splitTopLevel(tc.in))
		})
	}
}

func TestRewrapLeavesUnknownShapes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "plain", rewrap("plain", ShapeOther, 4))
	assert.Equal(t, "[]", rewrap("[]", ShapeList, 4))
	assert.Equal(t, "<nil>", rewrap("<nil>", ShapeList, 4))
}

func TestTruthy(t *testing.T) {
	t.Parallel()

	var nilPtr *int
	one := 1
	tests := map[string]struct {
		value any
		want  bool
	}{
		"nil":          {value: nil, want: false},
		"true":         {value: true, want: true},
		"false":        {value: false, want: false},
		"zero int":     {value: 0, want: false},
		"int":          {value: -3, want: true},
		"zero uint":    {value: uint(0), want: false},
		"float":        {value: 0.5, want: true},
		"zero float":   {value: 0.0, want: false},
		"empty string": {value: "", want: false},
		"string":       {value: "no", want: true},
		"empty slice":  {value: []int{}, want: false},
		"map":          {value: map[string]int{"a": 1}, want: true},
		"nil pointer":  {value: nilPtr, want: false},
		"pointer":      {value: &one, want: true},
		"struct":       {value: struct{}{}, want: true},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, truthy(tc.value))
		})
	}
}

func TestIntOption(t *testing.T) {
	t.Parallel()

	for _, v := range []any{7, int8(7), int64(7), uint32(7), float32(7), 7.0} {
		n, err := intOption("limit", v)
		require.NoError(t, err)
		assert.Equal(t, 7, n)
	}

	for _, v := range []any{7.5, "7", true, []int{7}} {
		_, err := intOption("limit", v)
		assert.ErrorIs(t, err, ErrInvalidOption)
	}
}

func TestNumberPadding(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, numberPadding(nil))
	assert.Equal(t, 1, numberPadding([]FrameInfo{{Line: 9}}))
	assert.Equal(t, 2, numberPadding([]FrameInfo{{Line: 9, Context: []string{"a", "b"}, ContextStart: 9}}))
	assert.Equal(t, 3, numberPadding([]FrameInfo{{Line: 5}, {Line: 120}}))
}

func TestUnderDir(t *testing.T) {
	t.Parallel()

	sep := string(filepath.Separator)
	root := filepath.Join(sep+"usr", "lib", "go", "src")

	rest, ok := underDir(filepath.Join(root, "fmt", "print.go"), root)
	assert.True(t, ok)
	assert.Equal(t, sep+filepath.Join("fmt", "print.go"), rest)

	rest, ok = underDir(root, root)
	assert.True(t, ok)
	assert.Empty(t, rest)

	_, ok = underDir(root+"extra"+sep+"x.go", root)
	assert.False(t, ok)
}

func TestSyntaxDetailsFromScanner(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.go")
	require.NoError(t, os.WriteFile(path, []byte("package bad\n\nfunc f() {\n\tx := (1\n}\n"), 0o644))

	_, err := parser.ParseFile(token.NewFileSet(), path, nil, 0)
	require.Error(t, err)

	var list scanner.ErrorList
	require.ErrorAs(t, err, &list)

	d, derr := syntaxDetailsOf(list)
	require.NoError(t, derr)
	assert.Equal(t, path, d.Filename)
	assert.Equal(t, list[0].Pos.Line, d.Line)
	assert.Equal(t, list[0].Pos.Column, d.Offset)
	assert.Equal(t, list[0].Msg, d.Msg)
	assert.NotEmpty(t, d.Text)

	_, derr = syntaxDetailsOf(scanner.ErrorList{})
	assert.ErrorIs(t, derr, errNoSyntaxDetails)

	_, derr = syntaxDetailsOf("not an error")
	assert.ErrorIs(t, derr, errNoSyntaxDetails)
}

func TestSyntaxDetailsFromScannerMissingFile(t *testing.T) {
	t.Parallel()

	d, err := syntaxDetailsOf(&scanner.Error{
		Pos: token.Position{Filename: "/nonexistent/x.go", Line: 2, Column: 4},
		Msg: "expected ')'",
	})
	require.NoError(t, err)
	assert.Equal(t, SyntaxDetails{Msg: "expected ')'", Filename: "/nonexistent/x.go", Line: 2, Offset: 4}, d)
}

func TestHighlightPlainWithoutHighlighter(t *testing.T) {
	t.Parallel()

	f := &Formatter{opts: Options{logger: NewNopLogger()}}
	out, err := f.highlight(context.Background(), "text\n")
	require.NoError(t, err)
	assert.Equal(t, "text\n", out)
}

func TestTokenLexerCoversInput(t *testing.T) {
	t.Parallel()

	text := "Traceback (most recent call last):\n" +
		"  File \"a.go\", line 3, in Server.handle\n" +
		"       2 x := 1\n" +
		"  -->  3 return x\n" +
		"    n = 2\n" +
		"    g:s = \"q\"\n" +
		"    m = {\"k\": 1}\n" +
		"   ^\n" +
		"ValueError: bad input\n"

	lexer, err := ANSIHighlighter{}.NewLexer()
	require.NoError(t, err)
	tokens, err := lexer.Tokenise(text)
	require.NoError(t, err)

	var joined string
	for _, tok := range tokens {
		joined += tok.Value
	}
	assert.Equal(t, text, joined)
}
