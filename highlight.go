package xtraceback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/fatih/color"
)

// Token is one lexed span of traceback text.
type Token = chroma.Token

// Lexer splits traceback text into tokens.
type Lexer interface {
	Tokenise(text string) ([]Token, error)
}

// TokenFormatter writes tokens with color markup.
type TokenFormatter interface {
	Format(w io.Writer, tokens []Token) error
}

// Highlighter builds the lexer and formatter used to color output. Either
// constructor may fail when the environment cannot display color; the
// Formatter then falls back to plain text for the rest of its life.
type Highlighter interface {
	NewLexer() (Lexer, error)
	NewFormatter() (TokenFormatter, error)
}

// DefaultHighlighter is used when no highlighter is configured.
var DefaultHighlighter Highlighter = ANSIHighlighter{}

// NoHighlighter is a Highlighter that is never available.
var NoHighlighter Highlighter = unavailableHighlighter{}

type unavailableHighlighter struct{}

func (unavailableHighlighter) NewLexer() (Lexer, error) {
	return nil, ErrHighlightUnavailable
}

func (unavailableHighlighter) NewFormatter() (TokenFormatter, error) {
	return nil, ErrHighlightUnavailable
}

// ANSIHighlighter colors traceback text with ANSI escape sequences.
type ANSIHighlighter struct {
	// Getenv looks up environment variables; nil means os.Getenv.
	Getenv func(string) string
}

// NewLexer implements [Highlighter].
func (ANSIHighlighter) NewLexer() (Lexer, error) {
	return chromaLexer{tracebackLexer}, nil
}

// NewFormatter implements [Highlighter]. It fails on dumb terminals.
func (h ANSIHighlighter) NewFormatter() (TokenFormatter, error) {
	getenv := h.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if getenv("TERM") == "dumb" {
		return nil, fmt.Errorf("%w: TERM=dumb", ErrNoTerminal)
	}
	f := &ansiFormatter{colors: make(map[chroma.TokenType]*color.Color, len(tokenStyles))}
	for tt, attrs := range tokenStyles {
		c := color.New(attrs...)
		c.EnableColor()
		f.colors[tt] = c
	}
	return f, nil
}

type chromaLexer struct {
	lexer chroma.Lexer
}

func (l chromaLexer) Tokenise(text string) ([]Token, error) {
	it, err := l.lexer.Tokenise(nil, text)
	if err != nil {
		return nil, err
	}
	return it.Tokens(), nil
}

// tracebackLexer recognizes the text produced by this package.
var tracebackLexer = chroma.MustNewLexer(
	&chroma.Config{
		Name:    "XTraceback",
		Aliases: []string{"xtraceback"},
	},
	func() chroma.Rules {
		return chroma.Rules{
			"root": {
				{Pattern: `(Traceback \(most recent call last\):)(\n?)`, Type: chroma.ByGroups(chroma.GenericHeading, chroma.Text)},
				{Pattern: `(  File )("[^"\n]*")(, line )(\d+)(, in )([^\n]*)(\n?)`, Type: chroma.ByGroups(
					chroma.Text, chroma.LiteralString, chroma.Text, chroma.LiteralNumber, chroma.Text, chroma.NameFunction, chroma.Text)},
				{Pattern: `(  File )("[^"\n]*")(, line )(\d+)(\n?)`, Type: chroma.ByGroups(
					chroma.Text, chroma.LiteralString, chroma.Text, chroma.LiteralNumber, chroma.Text)},
				{Pattern: `(  -->)( +\d+)((?: [^\n]*)?)(\n|$)`, Type: chroma.ByGroups(
					chroma.GenericStrong, chroma.LiteralNumber, chroma.GenericEmph, chroma.Text)},
				{Pattern: `(     )( +\d+)((?: [^\n]*)?)(\n|$)`, Type: chroma.ByGroups(
					chroma.Text, chroma.Comment, chroma.Text, chroma.Text)},
				{Pattern: `( *)(\^)(\n|$)`, Type: chroma.ByGroups(chroma.Text, chroma.GenericError, chroma.Text)},
				{Pattern: `( +)(g:)?([\p{L}\p{N}_.$*]+)( = )("(?:[^"\\\n]|\\.)*")(\n?)`, Type: chroma.ByGroups(
					chroma.Text, chroma.KeywordPseudo, chroma.NameVariable, chroma.Operator, chroma.LiteralString, chroma.Text)},
				{Pattern: `( +)(g:)?([\p{L}\p{N}_.$*]+)( = )(-?\d[\d.eE+-]*)(\n?)`, Type: chroma.ByGroups(
					chroma.Text, chroma.KeywordPseudo, chroma.NameVariable, chroma.Operator, chroma.LiteralNumber, chroma.Text)},
				{Pattern: `( +)(g:)?([\p{L}\p{N}_.$*]+)( = )([^\n]*)(\n?)`, Type: chroma.ByGroups(
					chroma.Text, chroma.KeywordPseudo, chroma.NameVariable, chroma.Operator, chroma.Text, chroma.Text)},
				{Pattern: `([^\s:][^:\n]*)(: )([^\n]*)(\n?)`, Type: chroma.ByGroups(
					chroma.NameException, chroma.Punctuation, chroma.Text, chroma.Text)},
				{Pattern: `([^\s:][^:\n]*)(\n?)`, Type: chroma.ByGroups(chroma.NameException, chroma.Text)},
				{Pattern: `[^\n]*\n?`, Type: chroma.Text},
			},
		}
	},
)

// tokenStyles maps token types to terminal attributes. Lookup falls back
// from the exact type to its sub-category and category.
var tokenStyles = map[chroma.TokenType][]color.Attribute{
	chroma.GenericHeading: {color.Bold},
	chroma.GenericStrong:  {color.FgRed, color.Bold},
	chroma.GenericEmph:    {color.Bold},
	chroma.GenericError:   {color.FgRed, color.Bold},
	chroma.LiteralString:  {color.FgGreen},
	chroma.LiteralNumber:  {color.FgCyan},
	chroma.NameFunction:   {color.FgBlue, color.Bold},
	chroma.NameVariable:   {color.FgYellow},
	chroma.NameException:  {color.FgRed, color.Bold},
	chroma.KeywordPseudo:  {color.FgMagenta},
	chroma.Operator:       {color.FgHiBlack},
	chroma.Comment:        {color.FgHiBlack},
}

type ansiFormatter struct {
	colors map[chroma.TokenType]*color.Color
}

func (f *ansiFormatter) Format(w io.Writer, tokens []Token) error {
	for _, tok := range tokens {
		if tok.Type == chroma.EOFType || tok.Value == "" {
			continue
		}
		s := tok.Value
		if c := f.colorFor(tok.Type); c != nil && s != "\n" {
			s = c.Sprint(s)
		}
		if _, err := io.WriteString(w, s); err != nil {
			return err
		}
	}
	return nil
}

func (f *ansiFormatter) colorFor(tt chroma.TokenType) *color.Color {
	if c, ok := f.colors[tt]; ok {
		return c
	}
	if c, ok := f.colors[tt.SubCategory()]; ok {
		return c
	}
	return f.colors[tt.Category()]
}

// highlight colors text. The lexer and formatter are built on first use;
// if either cannot be built the Formatter stays plain from then on.
// Cancellation is returned to the caller; any other failure yields the
// plain text.
func (f *Formatter) highlight(ctx context.Context, text string) (string, error) {
	if f.plain || f.opts.highlighter == nil {
		return text, nil
	}
	if err := f.initHighlighter(); err != nil {
		f.plain = true
		f.opts.logger.Warn("highlighting not available", "error", err)
		return text, nil
	}
	if err := ctx.Err(); err != nil {
		return text, err
	}
	out, err := f.runHighlight(text)
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, context.Canceled), errors.Is(err, ErrHighlightInterrupted):
		return text, err
	default:
		f.opts.logger.Debug("highlighting failed", "error", err)
		return text, nil
	}
}

func (f *Formatter) initHighlighter() error {
	if f.lexer == nil {
		lexer, err := f.opts.highlighter.NewLexer()
		if err != nil {
			return err
		}
		f.lexer = lexer
	}
	if f.formatter == nil {
		formatter, err := f.opts.highlighter.NewFormatter()
		if err != nil {
			return err
		}
		f.formatter = formatter
	}
	return nil
}

func (f *Formatter) runHighlight(text string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("highlighter panic: %v", r)
		}
	}()
	tokens, err := f.lexer.Tokenise(text)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := f.formatter.Format(&sb, tokens); err != nil {
		return "", err
	}
	return sb.String(), nil
}
