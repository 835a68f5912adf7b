package options

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aalhour/rockguard/internal/compression"
)

func sampleFile() *File {
	return &File{
		DB: DBOptions{
			CreateIfMissing:       true,
			MaxOpenFiles:          1000,
			WriteBufferSize:       64 << 20,
			Compression:           compression.SnappyCompression,
			MaxBackgroundJobs:     4,
			BloomFilterBitsPerKey: 10,
		},
		ColumnFamilies: []CFOptions{
			{Name: "users", WriteBufferSize: 2 << 20, Compression: compression.ZstdCompression},
			{Name: "default", WriteBufferSize: 64 << 20, Compression: compression.SnappyCompression},
		},
	}
}

func TestWriteRead(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(dir, sampleFile()))

	got, err := Read(dir)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, got.Version)
	assert.Equal(t, sampleFile().DB, got.DB)
	require.Len(t, got.ColumnFamilies, 2)
	assert.Equal(t, "default", got.ColumnFamilies[0].Name, "sections are sorted")

	users, ok := got.ColumnFamily("users")
	require.True(t, ok)
	assert.Equal(t, int64(2<<20), users.WriteBufferSize)
	assert.Equal(t, compression.ZstdCompression, users.Compression)

	_, ok = got.ColumnFamily("missing")
	assert.False(t, ok)
}

func TestWriteReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(dir, sampleFile()))

	f := sampleFile()
	f.DB.MaxOpenFiles = 5000
	require.NoError(t, Write(dir, f))

	got, err := Read(dir)
	require.NoError(t, err)
	assert.Equal(t, 5000, got.DB.MaxOpenFiles)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestEncodeLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleFile()))

	out := buf.String()
	assert.Contains(t, out, "[Version]")
	assert.Contains(t, out, "[DBOptions]")
	assert.Contains(t, out, `[CFOptions "users"]`)
	assert.Contains(t, out, "zstd")
}

func TestParseRocksDBCompressionNames(t *testing.T) {
	src := []byte(`
[DBOptions]
compression = kLZ4Compression

[CFOptions "logs"]
compression = kZSTD
`)
	f, err := Parse(src)
	require.NoError(t, err)
	assert.Equal(t, compression.LZ4Compression, f.DB.Compression)
	logs, ok := f.ColumnFamily("logs")
	require.True(t, ok)
	assert.Equal(t, compression.ZstdCompression, logs.Compression)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("[DBOptions]\ncompression = brotli\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "brotli")

	_, err = Parse([]byte("[Version]\nrockguard_version = 99\n"))
	require.Error(t, err)

	_, err = Read(filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
