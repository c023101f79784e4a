package xtraceback

import (
	"go/build"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// StdlibTag replaces the standard library source root in shortened paths.
const StdlibTag = "<stdlib>"

// stdlibRoot is $GOROOT/src with symlinks resolved, computed once.
var stdlibRoot = sync.OnceValue(func() string {
	root := build.Default.GOROOT
	if root == "" {
		return ""
	}
	return realPath(filepath.Join(root, "src"))
})

// ShortenFilename returns a display form of name: paths under the standard
// library root get the [StdlibTag] prefix, other paths are made relative to
// the working directory when that is strictly shorter.
func ShortenFilename(name string) string {
	if name == "" || strings.HasPrefix(name, StdlibTag) {
		return name
	}
	abs := realPath(name)
	if root := stdlibRoot(); root != "" {
		if rest, ok := underDir(abs, root); ok {
			return StdlibTag + rest
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return abs
	}
	rel, err := filepath.Rel(realPath(cwd), abs)
	if err != nil || len(rel) >= len(abs) {
		return abs
	}
	return rel
}

// realPath makes p absolute and resolves symlinks. Paths that do not exist
// are only cleaned.
func realPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// underDir reports whether p lies under dir and returns the remainder,
// including its leading separator.
func underDir(p, dir string) (string, bool) {
	if p == dir {
		return "", true
	}
	prefix := strings.TrimSuffix(dir, string(filepath.Separator)) + string(filepath.Separator)
	if !strings.HasPrefix(p, prefix) {
		return "", false
	}
	return p[len(prefix)-1:], true
}
