package engine

import (
	"fmt"
	"testing"

	pvfs "github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aalhour/rockguard/internal/compression"
	"github.com/aalhour/rockguard/internal/logging"
	"github.com/aalhour/rockguard/internal/vfs"
)

var verify = ReadOptions{VerifyChecksums: true}

func testConfig(fs pvfs.FS) Config {
	return Config{
		Dir:             "db",
		FS:              fs,
		CreateIfMissing: true,
		WriteBufferSize: 4 << 20,
		DefaultColumnFamily: ColumnFamilyOptions{
			Compression: compression.SnappyCompression,
		},
		Logger: logging.Discard,
	}
}

func openTest(t *testing.T, fs pvfs.FS) *Pebble {
	t.Helper()
	e, err := Open(testConfig(fs))
	require.NoError(t, err)
	return e
}

func TestPebble_PutGetDelete(t *testing.T) {
	e := openTest(t, pvfs.NewMem())
	defer e.Close()

	tests := []struct {
		name  string
		key   []byte
		value []byte
	}{
		{name: "plain", key: []byte("k1"), value: []byte("v1")},
		{name: "empty value", key: []byte("k2"), value: []byte{}},
		{name: "binary", key: []byte{0x00, 0xff}, value: []byte{0x01, 0x00, 0x02}},
		{name: "compressible", key: []byte("k3"), value: []byte(fmt.Sprintf("%01000d", 0))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, e.Put(DefaultID, tt.key, tt.value, WriteOptions{Sync: true}))
			got, err := e.Get(DefaultID, tt.key, verify)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.value, got)

			require.NoError(t, e.Delete(DefaultID, tt.key, WriteOptions{}))
			_, err = e.Get(DefaultID, tt.key, verify)
			assert.Equal(t, CodeNotFound, CodeOf(err))
		})
	}
}

func TestPebble_WriteBatchAtomic(t *testing.T) {
	e := openTest(t, pvfs.NewMem())
	defer e.Close()

	users, err := e.CreateColumnFamily("users", ColumnFamilyOptions{Compression: compression.ZstdCompression})
	require.NoError(t, err)

	b := &Batch{}
	b.Put(DefaultID, []byte("a"), []byte("1"))
	b.Put(users.ID, []byte("a"), []byte("2"))
	b.Delete(DefaultID, []byte("a"))
	b.Put(DefaultID, []byte("b"), []byte("3"))
	require.Equal(t, 4, b.Len())
	require.NoError(t, e.Write(b, WriteOptions{Sync: true}))

	_, err = e.Get(DefaultID, []byte("a"), verify)
	assert.Equal(t, CodeNotFound, CodeOf(err), "ops apply in batch order")
	got, err := e.Get(users.ID, []byte("a"), verify)
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), got)

	bad := &Batch{}
	bad.Put(DefaultID, []byte("c"), []byte("4"))
	bad.Put(999, []byte("c"), []byte("5"))
	err = e.Write(bad, WriteOptions{})
	assert.Equal(t, CodeInvalidArgument, CodeOf(err))
	_, err = e.Get(DefaultID, []byte("c"), verify)
	assert.Equal(t, CodeNotFound, CodeOf(err), "failed batch applies nothing")
}

func TestPebble_ColumnFamilies(t *testing.T) {
	fs := pvfs.NewMem()
	e := openTest(t, fs)

	users, err := e.CreateColumnFamily("users", ColumnFamilyOptions{WriteBufferSize: 1 << 20, Compression: compression.LZ4Compression})
	require.NoError(t, err)
	logs, err := e.CreateColumnFamily("logs", ColumnFamilyOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, users.ID, logs.ID)

	_, err = e.CreateColumnFamily("users", ColumnFamilyOptions{})
	assert.Equal(t, CodeAlreadyExists, CodeOf(err))
	_, err = e.CreateColumnFamily("", ColumnFamilyOptions{})
	assert.Equal(t, CodeInvalidArgument, CodeOf(err))
	_, err = e.CreateColumnFamily("bad", ColumnFamilyOptions{Compression: compression.Type(0x3)})
	assert.Equal(t, CodeInvalidArgument, CodeOf(err))

	require.NoError(t, e.Put(users.ID, []byte("k"), []byte("users"), WriteOptions{}))
	require.NoError(t, e.Put(logs.ID, []byte("k"), []byte("logs"), WriteOptions{}))
	require.NoError(t, e.Put(DefaultID, []byte("k"), []byte("default"), WriteOptions{}))

	require.NoError(t, e.DropColumnFamily(logs.ID))
	assert.Equal(t, CodeInvalidArgument, CodeOf(e.DropColumnFamily(logs.ID)))
	assert.Equal(t, CodeInvalidArgument, CodeOf(e.DropColumnFamily(DefaultID)))
	_, err = e.Get(logs.ID, []byte("k"), verify)
	assert.Equal(t, CodeInvalidArgument, CodeOf(err))

	require.NoError(t, e.Close())

	// The catalog survives a reopen; dropped families stay dropped.
	e = openTest(t, fs)
	defer e.Close()
	cfs := e.ColumnFamilies()
	require.Len(t, cfs, 2)
	assert.Equal(t, DefaultColumnFamilyName, cfs[0].Name)
	assert.Equal(t, users, cfs[1])

	got, err := e.Get(users.ID, []byte("k"), verify)
	require.NoError(t, err)
	assert.Equal(t, []byte("users"), got)

	// Recreating a dropped name gets a fresh ID and no old data.
	again, err := e.CreateColumnFamily("logs", ColumnFamilyOptions{})
	require.NoError(t, err)
	assert.Greater(t, again.ID, logs.ID)
	_, err = e.Get(again.ID, []byte("k"), verify)
	assert.Equal(t, CodeNotFound, CodeOf(err))
}

func TestPebble_IteratorIsolationAndOrder(t *testing.T) {
	e := openTest(t, pvfs.NewMem())
	defer e.Close()

	cf, err := e.CreateColumnFamily("letters", ColumnFamilyOptions{})
	require.NoError(t, err)
	for _, k := range []string{"gamma", "alpha", "beta"} {
		require.NoError(t, e.Put(cf.ID, []byte(k), []byte("v-"+k), WriteOptions{}))
	}
	require.NoError(t, e.Put(DefaultID, []byte("zzz"), []byte("other"), WriteOptions{}))

	it, err := e.NewIterator(cf.ID, verify)
	require.NoError(t, err)
	defer it.Close()

	var keys []string
	for ok := it.SeekToFirst(); ok; ok = it.Next() {
		keys = append(keys, string(it.Key()))
		assert.Equal(t, "v-"+string(it.Key()), string(it.Value()))
	}
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, keys)
	assert.False(t, it.Valid())
	assert.Nil(t, it.Key())

	require.True(t, it.Seek([]byte("b")))
	assert.Equal(t, "beta", string(it.Key()))
	require.True(t, it.Seek([]byte("gamma")))
	require.True(t, it.Prev())
	assert.Equal(t, "beta", string(it.Key()))

	require.True(t, it.SeekToLast())
	assert.Equal(t, "gamma", string(it.Key()))
	assert.False(t, it.Seek([]byte("zz")))

	require.True(t, it.SeekToFirst())
	assert.False(t, it.Prev())
	assert.False(t, it.Valid())
	assert.NoError(t, it.Error())
}

func TestPebble_IteratorEmptyColumnFamily(t *testing.T) {
	e := openTest(t, pvfs.NewMem())
	defer e.Close()

	cf, err := e.CreateColumnFamily("empty", ColumnFamilyOptions{})
	require.NoError(t, err)
	it, err := e.NewIterator(cf.ID, ReadOptions{})
	require.NoError(t, err)

	assert.False(t, it.SeekToFirst())
	assert.False(t, it.SeekToLast())
	assert.False(t, it.Seek([]byte("a")))
	assert.Nil(t, it.Key())
	assert.Nil(t, it.Value())
	assert.NoError(t, it.Error())
	require.NoError(t, it.Close())
}

func TestPebble_Corruption(t *testing.T) {
	e := openTest(t, pvfs.NewMem())
	defer e.Close()

	good, err := encodeValue(compression.NoCompression, []byte("hello"))
	require.NoError(t, err)
	tampered := append([]byte(nil), good...)
	tampered[len(tampered)-1] ^= 0xff

	require.NoError(t, e.Put(DefaultID, []byte("a"), []byte("fine"), WriteOptions{}))
	require.NoError(t, e.db.Set(encodeKey(DefaultID, []byte("b")), tampered, nil))
	require.NoError(t, e.db.Set(encodeKey(DefaultID, []byte("c")), []byte{0x01}, nil))

	_, err = e.Get(DefaultID, []byte("b"), verify)
	assert.Equal(t, CodeCorruption, CodeOf(err))
	assert.Contains(t, StatusToString(err), "Corruption: ")

	// Without verification only structural damage is detected.
	got, err := e.Get(DefaultID, []byte("b"), ReadOptions{})
	require.NoError(t, err)
	assert.Len(t, got, len("hello"))
	_, err = e.Get(DefaultID, []byte("c"), ReadOptions{})
	assert.Equal(t, CodeCorruption, CodeOf(err))

	it, err := e.NewIterator(DefaultID, verify)
	require.NoError(t, err)
	require.True(t, it.SeekToFirst())
	assert.Equal(t, "a", string(it.Key()))
	assert.False(t, it.Next(), "stops on the damaged entry")
	assert.False(t, it.Valid())
	assert.Equal(t, CodeCorruption, CodeOf(it.Error()))
	assert.False(t, it.SeekToFirst(), "errors are sticky")
	require.NoError(t, it.Close())
}

func TestPebble_OpenModes(t *testing.T) {
	fs := pvfs.NewMem()

	cfg := testConfig(fs)
	cfg.ReadOnly = true
	_, err := Open(cfg)
	assert.Equal(t, CodeNotFound, CodeOf(err))

	cfg = testConfig(fs)
	cfg.CreateIfMissing = false
	_, err = Open(cfg)
	assert.Equal(t, CodeNotFound, CodeOf(err))

	e := openTest(t, fs)
	require.NoError(t, e.Put(DefaultID, []byte("k"), []byte("v"), WriteOptions{Sync: true}))
	require.NoError(t, e.Close())

	cfg = testConfig(fs)
	cfg.ErrorIfExists = true
	_, err = Open(cfg)
	assert.Equal(t, CodeAlreadyExists, CodeOf(err))

	cfg = testConfig(fs)
	cfg.ReadOnly = true
	ro, err := Open(cfg)
	require.NoError(t, err)
	defer ro.Close()

	got, err := ro.Get(DefaultID, []byte("k"), verify)
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
	assert.Equal(t, CodeReadOnly, CodeOf(ro.Put(DefaultID, []byte("k"), []byte("x"), WriteOptions{})))
	_, err = ro.CreateColumnFamily("x", ColumnFamilyOptions{})
	assert.Equal(t, CodeReadOnly, CodeOf(err))
}

func TestPebble_OpenIOError(t *testing.T) {
	fs := vfs.NewFaultFS(pvfs.NewMem())
	fs.InjectWriteError()

	_, err := Open(testConfig(fs))
	require.Error(t, err)
	assert.Equal(t, CodeIOError, CodeOf(err))
	assert.ErrorIs(t, err, vfs.ErrInjectedWriteError)
}

func TestPebble_Closed(t *testing.T) {
	e := openTest(t, pvfs.NewMem())
	require.NoError(t, e.Close())

	assert.Equal(t, CodeClosed, CodeOf(e.Close()))
	_, err := e.Get(DefaultID, []byte("k"), ReadOptions{})
	assert.Equal(t, CodeClosed, CodeOf(err))
	assert.Equal(t, CodeClosed, CodeOf(e.Put(DefaultID, []byte("k"), nil, WriteOptions{})))
	_, err = e.NewIterator(DefaultID, ReadOptions{})
	assert.Equal(t, CodeClosed, CodeOf(err))
}

func TestPebble_CompactAndFlush(t *testing.T) {
	e := openTest(t, pvfs.NewMem())
	defer e.Close()

	for i := range 100 {
		require.NoError(t, e.Put(DefaultID, fmt.Appendf(nil, "key%03d", i), []byte("v"), WriteOptions{}))
	}
	require.NoError(t, e.Flush())
	require.NoError(t, e.CompactRange(DefaultID, nil, nil))
	require.NoError(t, e.CompactRange(DefaultID, []byte("key050"), []byte("key010")))
	assert.Equal(t, CodeInvalidArgument, CodeOf(e.CompactRange(42, nil, nil)))

	got, err := e.Get(DefaultID, []byte("key099"), verify)
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestPebble_FatalStopsEngine(t *testing.T) {
	e := openTest(t, pvfs.NewMem())
	defer e.Close()

	msg := "disk on fire"
	e.failed.Store(&msg)
	err := e.Put(DefaultID, []byte("k"), []byte("v"), WriteOptions{})
	assert.Equal(t, CodeIOError, CodeOf(err))
	assert.Contains(t, err.Error(), msg)
	assert.ErrorIs(t, err, logging.ErrFatal)
}

func TestPebble_LoggerFatalfStopsEngine(t *testing.T) {
	e := openTest(t, pvfs.NewMem())
	defer e.Close()
	require.NoError(t, e.Put(DefaultID, []byte("k"), []byte("v"), WriteOptions{}))

	e.logger.Fatalf("MANIFEST-%06d: %s", 5, "torn record")

	err := e.Put(DefaultID, []byte("k"), []byte("v2"), WriteOptions{})
	assert.Equal(t, CodeIOError, CodeOf(err))
	assert.ErrorIs(t, err, logging.ErrFatal)
	assert.Contains(t, err.Error(), "MANIFEST-000005: torn record")
	_, err = e.Get(DefaultID, []byte("k"), verify)
	assert.ErrorIs(t, err, logging.ErrFatal)
}

func TestPebbleLogger(t *testing.T) {
	var got string
	l := pebbleLogger{log: logging.Discard, onFatal: func(msg string) { got = msg }}
	l.Infof("x")
	l.Errorf("y")
	l.Fatalf("wal %d failed", 7)
	assert.Equal(t, "wal 7 failed", got)
}
