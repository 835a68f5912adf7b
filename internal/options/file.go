// Package options reads and writes the database options file.
//
// The file is INI formatted:
//
//	[Version]
//	rockguard_version = 1
//
//	[DBOptions]
//	max_open_files = 1000
//	...
//
//	[CFOptions "default"]
//	write_buffer_size = 67108864
//	compression       = snappy
//
// It is written on every read-write open and never read back implicitly;
// callers load it to reproduce a database's configuration.
package options

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-ini/ini"

	"github.com/aalhour/rockguard/internal/compression"
)

// FileName is the options file inside a database directory. The engine
// keeps its own OPTIONS-NNNNNN files beside it.
const FileName = "rockguard-options.ini"

// FormatVersion is written to the [Version] section.
const FormatVersion = 1

const (
	sectionVersion = "Version"
	sectionDB      = "DBOptions"
	cfSectionPfx   = "CFOptions "
)

// DBOptions mirrors the persisted subset of the public Options.
type DBOptions struct {
	CreateIfMissing       bool
	ErrorIfExists         bool
	MaxOpenFiles          int
	WriteBufferSize       int64
	Compression           compression.Type
	MaxBackgroundJobs     int
	BloomFilterBitsPerKey int
}

// CFOptions is one column family section.
type CFOptions struct {
	Name            string
	WriteBufferSize int64
	Compression     compression.Type
}

// File is a decoded options file.
type File struct {
	Version        int
	DB             DBOptions
	ColumnFamilies []CFOptions
}

// ColumnFamily returns the section for name.
func (f *File) ColumnFamily(name string) (CFOptions, bool) {
	for _, cf := range f.ColumnFamilies {
		if cf.Name == name {
			return cf, true
		}
	}
	return CFOptions{}, false
}

// Encode writes f to w. Column family sections are sorted by name.
func Encode(w io.Writer, f *File) error {
	cfg := ini.Empty()

	cfg.Section(sectionVersion).Key("rockguard_version").SetValue(fmt.Sprint(FormatVersion))

	db := cfg.Section(sectionDB)
	db.Key("create_if_missing").SetValue(fmt.Sprint(f.DB.CreateIfMissing))
	db.Key("error_if_exists").SetValue(fmt.Sprint(f.DB.ErrorIfExists))
	db.Key("max_open_files").SetValue(fmt.Sprint(f.DB.MaxOpenFiles))
	db.Key("write_buffer_size").SetValue(fmt.Sprint(f.DB.WriteBufferSize))
	db.Key("compression").SetValue(f.DB.Compression.String())
	db.Key("max_background_jobs").SetValue(fmt.Sprint(f.DB.MaxBackgroundJobs))
	db.Key("bloom_filter_bits_per_key").SetValue(fmt.Sprint(f.DB.BloomFilterBitsPerKey))

	cfs := append([]CFOptions(nil), f.ColumnFamilies...)
	sort.Slice(cfs, func(i, j int) bool { return cfs[i].Name < cfs[j].Name })
	for _, cf := range cfs {
		sec := cfg.Section(cfSectionPfx + strconv.Quote(cf.Name))
		sec.Key("write_buffer_size").SetValue(fmt.Sprint(cf.WriteBufferSize))
		sec.Key("compression").SetValue(cf.Compression.String())
	}

	_, err := cfg.WriteTo(w)
	return err
}

// Write atomically replaces the options file in dir.
func Write(dir string, f *File) error {
	var buf bytes.Buffer
	if err := Encode(&buf, f); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, FileName+".tmp*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, FileName))
}

// Read loads the options file from dir.
func Read(dir string) (*File, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes an options file. Missing keys keep their zero value.
func Parse(data []byte) (*File, error) {
	cfg, err := ini.Load(data)
	if err != nil {
		return nil, fmt.Errorf("options: %w", err)
	}

	f := &File{}
	if cfg.HasSection(sectionVersion) {
		f.Version = cfg.Section(sectionVersion).Key("rockguard_version").MustInt(0)
	}
	if f.Version > FormatVersion {
		return nil, fmt.Errorf("options: unsupported file version %d", f.Version)
	}

	db := cfg.Section(sectionDB)
	f.DB.CreateIfMissing = db.Key("create_if_missing").MustBool(false)
	f.DB.ErrorIfExists = db.Key("error_if_exists").MustBool(false)
	f.DB.MaxOpenFiles = db.Key("max_open_files").MustInt(0)
	f.DB.WriteBufferSize = db.Key("write_buffer_size").MustInt64(0)
	f.DB.MaxBackgroundJobs = db.Key("max_background_jobs").MustInt(0)
	f.DB.BloomFilterBitsPerKey = db.Key("bloom_filter_bits_per_key").MustInt(0)
	if f.DB.Compression, err = parseCompression(db); err != nil {
		return nil, err
	}

	for _, sec := range cfg.Sections() {
		name, ok := strings.CutPrefix(sec.Name(), cfSectionPfx)
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if uq, err := strconv.Unquote(name); err == nil {
			name = uq
		}
		cf := CFOptions{
			Name:            name,
			WriteBufferSize: sec.Key("write_buffer_size").MustInt64(0),
		}
		if cf.Compression, err = parseCompression(sec); err != nil {
			return nil, err
		}
		f.ColumnFamilies = append(f.ColumnFamilies, cf)
	}
	return f, nil
}

func parseCompression(sec *ini.Section) (compression.Type, error) {
	if !sec.HasKey("compression") {
		return compression.NoCompression, nil
	}
	t, err := compression.ParseType(sec.Key("compression").String())
	if err != nil {
		return compression.NoCompression, fmt.Errorf("options: [%s]: %w", sec.Name(), err)
	}
	return t, nil
}
