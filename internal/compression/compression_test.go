package compression

import (
	"bytes"
	"testing"
)

func allTypes() []Type {
	return []Type{NoCompression, SnappyCompression, ZlibCompression, LZ4Compression, LZ4HCCompression, ZstdCompression}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	inputs := map[string][]byte{
		"empty":      {},
		"short":      []byte("v"),
		"repetitive": bytes.Repeat([]byte("hello world "), 200),
		"binary":     {0x00, 0xff, 0x00, 0x01, 0xfe, 0x7f},
	}

	for _, typ := range allTypes() {
		for name, data := range inputs {
			t.Run(typ.String()+"/"+name, func(t *testing.T) {
				encoded, err := Encode(typ, data)
				if err != nil {
					t.Fatalf("Encode failed: %v", err)
				}
				decoded, err := Decode(typ, encoded)
				if err != nil {
					t.Fatalf("Decode failed: %v", err)
				}
				if !bytes.Equal(decoded, data) {
					t.Fatalf("round trip mismatch: got %d bytes, want %d", len(decoded), len(data))
				}
			})
		}
	}
}

func TestEncodeShrinksRepetitiveData(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefgh"), 1024)
	for _, typ := range allTypes() {
		if typ == NoCompression {
			continue
		}
		encoded, err := Encode(typ, data)
		if err != nil {
			t.Fatalf("%s: Encode failed: %v", typ, err)
		}
		if len(encoded) >= len(data) {
			t.Errorf("%s: encoded %d bytes, want fewer than %d", typ, len(encoded), len(data))
		}
	}
}

func TestUnsupportedType(t *testing.T) {
	bogus := Type(0x3)
	if bogus.IsSupported() {
		t.Fatal("bzip2 slot should not be supported")
	}
	if _, err := Encode(bogus, []byte("x")); err == nil {
		t.Error("Encode should reject an unsupported type")
	}
	if _, err := Decode(bogus, []byte("x")); err == nil {
		t.Error("Decode should reject an unsupported type")
	}
}

func TestDecodeGarbage(t *testing.T) {
	garbage := []byte{0xde, 0xad, 0xbe, 0xef, 0x01, 0x02}
	for _, typ := range []Type{SnappyCompression, ZlibCompression, ZstdCompression} {
		if _, err := Decode(typ, garbage); err == nil {
			t.Errorf("%s: Decode of garbage should fail", typ)
		}
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
	}{
		{"none", NoCompression},
		{"kNoCompression", NoCompression},
		{"snappy", SnappyCompression},
		{"kSnappyCompression", SnappyCompression},
		{"zlib", ZlibCompression},
		{"LZ4", LZ4Compression},
		{"kLZ4HCCompression", LZ4HCCompression},
		{"kZSTD", ZstdCompression},
		{" zstd ", ZstdCompression},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.in)
		if err != nil {
			t.Errorf("ParseType(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseType(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if _, err := ParseType("brotli"); err == nil {
		t.Error("ParseType should reject unknown names")
	}
}

func TestTypeStringRoundTrip(t *testing.T) {
	for _, typ := range allTypes() {
		got, err := ParseType(typ.String())
		if err != nil || got != typ {
			t.Errorf("ParseType(%q) = %v, %v; want %v", typ.String(), got, err, typ)
		}
	}
}
