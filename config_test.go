package xtraceback_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/xtraceback"
)

func TestParseConfig(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		format string
		data   string
	}{
		"yaml": {
			format: "yaml",
			data:   "color: never\nprint_width: 100\nlimit: 3\nshow_globals: true\nglobals_module_include: github.com/acme\n",
		},
		"yml with dot": {
			format: ".yml",
			data:   "color: never\nprint_width: 100\nlimit: 3\nshow_globals: true\nglobals_module_include: github.com/acme\n",
		},
		"toml": {
			format: "TOML",
			data:   "color = \"never\"\nprint_width = 100\nlimit = 3\nshow_globals = true\nglobals_module_include = \"github.com/acme\"\n",
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg, err := xtraceback.ParseConfig([]byte(tc.data), tc.format)
			require.NoError(t, err)

			opts, err := xtraceback.NewOptions(cfg)
			require.NoError(t, err)
			assert.Equal(t, xtraceback.ColorModeNever, opts.Color())
			width, _ := opts.PrintWidth()
			assert.Equal(t, 100, width)
			limit, _ := opts.Limit()
			assert.Equal(t, 3, limit)
			assert.True(t, opts.ShowGlobals())
			prefix, _ := opts.GlobalsModuleInclude()
			assert.Equal(t, "github.com/acme", prefix)
		})
	}
}

func TestParseConfigErrors(t *testing.T) {
	t.Parallel()

	_, err := xtraceback.ParseConfig([]byte("color=never"), "ini")
	assert.ErrorIs(t, err, xtraceback.ErrUnsupportedConfigFormat)

	_, err = xtraceback.ParseConfig([]byte("color: [never"), "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse yaml config")

	_, err = xtraceback.ParseConfig([]byte("color = "), "toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse toml config")
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "xtraceback.toml")
	require.NoError(t, os.WriteFile(path, []byte("context = 2\nshow_locals = false\n"), 0o644))

	cfg, err := xtraceback.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, xtraceback.Config{"context": int64(2), "show_locals": false}, cfg)

	_, err = xtraceback.LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadConfigUnknownKeysRejectedByNew(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("colour: never\n"), 0o644))

	cfg, err := xtraceback.LoadConfig(path)
	require.NoError(t, err)

	_, err = xtraceback.New(xtraceback.Exception{}, cfg)
	assert.ErrorIs(t, err, xtraceback.ErrUnsupportedOption)
}
