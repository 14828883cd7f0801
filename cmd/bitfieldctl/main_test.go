package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/bitfield/pkg/compactwire"
)

const headerSchema = `name: Header
enums:
  - name: Mode
    variants:
      - {name: Off}
      - {name: Slow}
      - {name: Fast}
      - {name: Turbo}
fields:
  - {name: valid, type: bool}
  - {name: version, type: B3}
  - {name: mode, type: Mode}
  - {name: length, type: B10}
  - {name: seq, type: B24}
  - {name: tag, type: B8}
`

// valid=true mode=Fast seq=42
const headerHex = "880000002a00"

func writeSchema(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "header.yaml")
	require.NoError(t, os.WriteFile(path, []byte(headerSchema), 0o644))
	return path
}

func runCtl(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(args, &out)
	return out.String(), err
}

func TestLayoutCommand(t *testing.T) {
	out, err := runCtl(t, "-schema", writeSchema(t), "layout")
	require.NoError(t, err)
	assert.Contains(t, out, "Header")
	assert.Contains(t, out, "48 bits / 6 bytes")
	for _, name := range []string{"valid", "version", "mode", "length", "seq", "tag", "B24"} {
		assert.Contains(t, out, name)
	}
}

func TestEncodeDecode(t *testing.T) {
	path := writeSchema(t)

	out, err := runCtl(t, "-schema", path, "encode", "valid=true", "mode=Fast", "seq=42")
	require.NoError(t, err)
	assert.Equal(t, headerHex, strings.TrimSpace(out))

	out, err = runCtl(t, "-schema", path, "decode", headerHex)
	require.NoError(t, err)
	assert.Contains(t, out, "Header { valid: true, version: 0, mode: Fast, length: 0, seq: 42, tag: 0 }")
	assert.Contains(t, out, "0x2a")
	// once in the field table, once in the summary line
	assert.Equal(t, 2, strings.Count(out, "Fast"))
}

func TestEncodeErrors(t *testing.T) {
	path := writeSchema(t)

	_, err := runCtl(t, "-schema", path, "encode", "version=8")
	assert.Error(t, err)

	_, err = runCtl(t, "-schema", path, "encode", "mode=Warp")
	assert.Error(t, err)

	_, err = runCtl(t, "-schema", path, "encode", "nope=1")
	assert.Error(t, err)

	_, err = runCtl(t, "-schema", path, "encode", "seq")
	assert.Error(t, err)
}

func TestDecodeErrors(t *testing.T) {
	path := writeSchema(t)

	_, err := runCtl(t, "-schema", path, "decode", "zz")
	assert.Error(t, err)

	_, err = runCtl(t, "-schema", path, "decode", "8800")
	assert.Error(t, err)

	_, err = runCtl(t, "-schema", path, "decode")
	assert.ErrorIs(t, err, errUsage)
}

func TestPackUnpack(t *testing.T) {
	path := writeSchema(t)
	for _, c := range []string{"none", "zstd", "brotli"} {
		t.Run(c, func(t *testing.T) {
			frame, err := runCtl(t, "-schema", path, "-compress", c, "pack", headerHex, "0x"+headerHex)
			require.NoError(t, err)
			frame = strings.TrimSpace(frame)
			assert.True(t, strings.HasPrefix(frame, "4246"), "frame starts with magic: %s", frame)

			out, err := runCtl(t, "-schema", path, "unpack", frame)
			require.NoError(t, err)
			lines := strings.Split(strings.TrimSpace(out), "\n")
			require.Len(t, lines, 2)
			for _, line := range lines {
				assert.Contains(t, line, "mode: Fast")
				assert.Contains(t, line, "seq: 42")
			}
		})
	}
}

func TestUsage(t *testing.T) {
	_, err := runCtl(t)
	assert.ErrorIs(t, err, errUsage)

	_, err = runCtl(t, "-schema", writeSchema(t))
	assert.ErrorIs(t, err, errUsage)

	_, err = runCtl(t, "-schema", writeSchema(t), "frobnicate")
	assert.ErrorIs(t, err, errUsage)

	_, err = runCtl(t, "-schema", writeSchema(t), "-compress", "lz4", "pack", headerHex)
	assert.Error(t, err)

	_, err = runCtl(t, "-schema", filepath.Join(t.TempDir(), "missing.yaml"), "layout")
	assert.Error(t, err)
}

func TestCompressionFlag(t *testing.T) {
	f, err := compressionFlag("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, compactwire.FlagZstd, f)
	f, err = compressionFlag("")
	require.NoError(t, err)
	assert.Zero(t, f)
}

func TestMemProfile(t *testing.T) {
	prof := filepath.Join(t.TempDir(), "mem.prof")
	_, err := runCtl(t, "-schema", writeSchema(t), "-memprofile", prof, "layout")
	require.NoError(t, err)
	info, err := os.Stat(prof)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}
