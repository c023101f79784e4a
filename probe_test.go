package xtraceback_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/xtraceback"
)

func TestTermProbe(t *testing.T) {
	t.Parallel()

	var probe xtraceback.TermProbe

	var buf bytes.Buffer
	assert.False(t, probe.IsTerminal(&buf))
	_, ok := probe.Width(&buf)
	assert.False(t, ok)

	fh, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	require.NoError(t, err)
	defer fh.Close()

	assert.False(t, probe.IsTerminal(fh))
	_, ok = probe.Width(fh)
	assert.False(t, ok)
}

func TestAutoColorOffForFiles(t *testing.T) {
	t.Parallel()

	fh, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	require.NoError(t, err)
	defer fh.Close()

	f, err := xtraceback.New(xtraceback.Exception{Type: "E"}, xtraceback.Config{"stream": fh})
	require.NoError(t, err)
	assert.False(t, f.Colored())
	assert.Equal(t, xtraceback.DefaultWidth, f.Width())
}
