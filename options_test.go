// options_test.go implements tests for Options defaults and presets.
package rockguard

import (
	"testing"
)

func TestDefaultOptions(t *testing.T) {
	o := DefaultOptions()
	if o.CreateIfMissing || o.ErrorIfExists {
		t.Errorf("create/exists flags = %v/%v", o.CreateIfMissing, o.ErrorIfExists)
	}
	if o.MaxOpenFiles != 1000 {
		t.Errorf("MaxOpenFiles = %d", o.MaxOpenFiles)
	}
	if o.WriteBufferSize != 64<<20 {
		t.Errorf("WriteBufferSize = %d", o.WriteBufferSize)
	}
	if o.Compression != SnappyCompression {
		t.Errorf("Compression = %v", o.Compression)
	}
	if o.MaxBackgroundJobs != 2 {
		t.Errorf("MaxBackgroundJobs = %d", o.MaxBackgroundJobs)
	}
	if o.ColumnFamilyOptions != DefaultColumnFamilyOptions() {
		t.Errorf("ColumnFamilyOptions = %+v", o.ColumnFamilyOptions)
	}
	if ro := DefaultReadOptions(); !ro.VerifyChecksums || !ro.FillCache {
		t.Errorf("DefaultReadOptions() = %+v", ro)
	}
	if wo := DefaultWriteOptions(); wo.Sync || wo.DisableWAL {
		t.Errorf("DefaultWriteOptions() = %+v", wo)
	}
}

func TestOptionPresets(t *testing.T) {
	base := DefaultOptions()

	p := base.IncreaseParallelism(8)
	if p.MaxBackgroundJobs != 8 {
		t.Errorf("IncreaseParallelism: MaxBackgroundJobs = %d", p.MaxBackgroundJobs)
	}

	s := base.OptimizeForSmallDB()
	if s.MaxOpenFiles != 5000 || s.WriteBufferSize != 2<<20 {
		t.Errorf("OptimizeForSmallDB: MaxOpenFiles=%d WriteBufferSize=%d", s.MaxOpenFiles, s.WriteBufferSize)
	}

	b := base.UseBloomFilter(10)
	if b.BloomFilterBitsPerKey != 10 {
		t.Errorf("UseBloomFilter: BloomFilterBitsPerKey = %d", b.BloomFilterBitsPerKey)
	}

	// Presets never touch their receiver.
	def := DefaultOptions()
	if base.MaxBackgroundJobs != def.MaxBackgroundJobs || base.MaxOpenFiles != def.MaxOpenFiles ||
		base.WriteBufferSize != def.WriteBufferSize || base.BloomFilterBitsPerKey != 0 {
		t.Errorf("presets modified the receiver: %+v", base)
	}

	// Composition: the last preset to touch a field wins.
	c := base.IncreaseParallelism(4).OptimizeForSmallDB().UseBloomFilter(12).IncreaseParallelism(6)
	if c.MaxBackgroundJobs != 6 || c.MaxOpenFiles != 5000 || c.BloomFilterBitsPerKey != 12 {
		t.Errorf("composed presets = %+v", c)
	}
}

func TestOpenWithPresets(t *testing.T) {
	opts := testOptions().OptimizeForSmallDB().IncreaseParallelism(4).UseBloomFilter(10)
	db := openTestDBAt(t, t.TempDir(), opts)
	mustPut(t, db, nil, "k", "v")
	if err := db.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if got := mustGet(t, db, nil, "k"); string(got) != "v" {
		t.Errorf("Get = %q", got)
	}
	if got := db.Options(); got.MaxBackgroundJobs != 4 || got.BloomFilterBitsPerKey != 10 {
		t.Errorf("Options() = %+v", got)
	}
}

func TestOptionsIsolatedFromCaller(t *testing.T) {
	opts := testOptions()
	db := openTestDBAt(t, t.TempDir(), opts)

	opts.MaxOpenFiles = 7
	if db.Options().MaxOpenFiles == 7 {
		t.Error("DB shares the caller's Options")
	}
	db.Options().MaxOpenFiles = 9
	if db.Options().MaxOpenFiles == 9 {
		t.Error("Options() returns the DB's own copy")
	}
}

func TestParseCompressionType(t *testing.T) {
	for in, want := range map[string]CompressionType{
		"none":   NoCompression,
		"snappy": SnappyCompression,
		"kZSTD":  ZstdCompression,
	} {
		got, err := ParseCompressionType(in)
		if err != nil {
			t.Errorf("ParseCompressionType(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseCompressionType(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseCompressionType("brotli"); !IsKind(err, KindInvalidArgument) {
		t.Errorf("ParseCompressionType(brotli) = %v, want KindInvalidArgument", err)
	}
}
