// Package xtraceback renders an exception and its call stack as verbose,
// human-readable text: per-frame source context, argument, local and
// global variable dumps, shortened file paths, width-aware wrapping and
// optional syntax highlighting.
//
// The central entry point is [New], which takes an [Exception] and a
// [Config] bag and returns a [Formatter]:
//
//	exc := xtraceback.FromError(err, xtraceback.Capture(0))
//	f, err := xtraceback.New(exc, xtraceback.Config{"stream": os.Stderr})
//	if err != nil { ... }
//	f.PrintException(ctx)
//
// [Write] and [Sprint] are one-shot shortcuts.
//
// # Output
//
//	Traceback (most recent call last):
//	  File "server.go", line 18, in Server.handle
//	      16 func (s *Server) handle(req *Request) error {
//	      17 	n := len(req.Body)
//	  --> 18 	return s.store(n)
//	    req = "hi"
//	    n = 2
//	ValueError: bad input
//
// The header appears only when at least one frame is shown.
//
// # Configuration
//
// Value options: "stream", "color" (auto, always, never or a bool),
// "print_width", "offset", "limit", "context", "globals_module_include",
// "highlighter", "probe", "provider" and "logger". Flags: "show_args",
// "show_locals", "show_globals", "qualify_methods" and
// "shorten_filenames". Unknown keys fail with [ErrUnsupportedOption];
// every unknown key is reported. [LoadConfig] reads a bag from YAML or
// TOML.
//
// "offset" frames are skipped first; a negative offset counts as 0. At most
// "limit" of the remaining frames are examined, and a negative limit (the
// CLI's -1 default) examines them all.
//
// # Frames
//
// A [FrameProvider] resolves each raw [Frame] into [FrameInfo]. The default
// [SourceProvider] reads source context from disk and honors
// [SourceProvider.ExcludeFunctions], [SourceProvider.ExcludeFiles] and the
// [SkipFrameVar] local. Go's runtime does not expose variable bindings, so
// frames carry Args, Locals and Globals only when the caller (for example
// an embedded interpreter) fills them in.
//
// # Values
//
// Variables render on one line. Strings wider than twice the print width
// are truncated with "...". Slices, arrays, maps, sets (map[K]struct{})
// and [Frozen] sets that overflow the width are re-wrapped one element per
// line. A value whose text methods panic renders as
// "<unprintable T object>".
//
// # Highlighting
//
// When color is on, output passes through a [Highlighter]. If it cannot be
// built the Formatter logs a warning and stays plain. A highlighter error
// matching context.Canceled or [ErrHighlightInterrupted] is returned to the
// caller; other failures fall back to plain text.
//
// # Errors
//
//   - [ErrUnsupportedOption]: unknown configuration keys
//   - [ErrInvalidOption]: a recognized key with a value of the wrong type
//   - [ErrNoStream]: a print method was called without a stream
//   - [ErrUnsupportedConfigFormat]: [LoadConfig] with an unknown extension
package xtraceback
