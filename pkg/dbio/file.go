package dbio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/tiledb"
)

// Compression is a file compression scheme.
type Compression string

const (
	CompressNone Compression = "none"
	CompressZstd Compression = "zstd"
	CompressLZ4  Compression = "lz4"
)

// Format is a file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatSexp Format = "sexp"
)

// Detect derives encoding and compression from a file name:
// db.json, db.sexp, db.json.zst, db.sexp.lz4 and so on. Unknown
// extensions are JSON.
func Detect(path string) (Format, Compression) {
	name := strings.ToLower(filepath.Base(path))
	comp := CompressNone
	switch {
	case strings.HasSuffix(name, ".zst"):
		comp = CompressZstd
		name = strings.TrimSuffix(name, ".zst")
	case strings.HasSuffix(name, ".lz4"):
		comp = CompressLZ4
		name = strings.TrimSuffix(name, ".lz4")
	}
	if strings.HasSuffix(name, ".sexp") {
		return FormatSexp, comp
	}
	return FormatJSON, comp
}

// Save writes db to path in the format its name selects. The file is
// written next to path and renamed into place, so a failed save leaves
// any previous file at path as it was.
func Save[C bitcoord.Coord[C]](path string, db *tiledb.Db[C], family bitcoord.Family[C]) (err error) {
	format, comp := Detect(path)
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("dbio: failed to create file: %w", err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	if err := write(f, format, comp, db, family); err != nil {
		return err
	}
	if err := f.Chmod(0o644); err != nil {
		return fmt.Errorf("dbio: chmod: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("dbio: close: %w", err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("dbio: rename: %w", err)
	}
	return nil
}

func write[C bitcoord.Coord[C]](f io.Writer, format Format, comp Compression, db *tiledb.Db[C], family bitcoord.Family[C]) error {
	bw := bufio.NewWriter(f)
	w, closeFn, err := compressWriter(bw, comp)
	if err != nil {
		return err
	}
	if format == FormatSexp {
		err = WriteSexp(w, db, family)
	} else {
		err = Encode(w, db, family)
	}
	if cerr := closeFn(); err == nil && cerr != nil {
		err = fmt.Errorf("dbio: flush %s: %w", comp, cerr)
	}
	if err != nil {
		return err
	}
	return bw.Flush()
}

// Load reads a database written by Save.
func Load[C bitcoord.Coord[C]](path string, family bitcoord.Family[C]) (*tiledb.Db[C], error) {
	format, comp := Detect(path)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dbio: failed to open file: %w", err)
	}
	defer f.Close()

	r, closeFn, err := decompressReader(bufio.NewReader(f), comp)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	var db *tiledb.Db[C]
	if format == FormatSexp {
		db, err = ReadSexp(r, family)
	} else {
		db, err = Decode(r, family)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return db, nil
}

func compressWriter(w io.Writer, comp Compression) (io.Writer, func() error, error) {
	switch comp {
	case CompressZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return nil, nil, fmt.Errorf("dbio: failed to create compressor: %w", err)
		}
		return enc, enc.Close, nil
	case CompressLZ4:
		zw := lz4.NewWriter(w)
		return zw, zw.Close, nil
	}
	return w, func() error { return nil }, nil
}

func decompressReader(r io.Reader, comp Compression) (io.Reader, func(), error) {
	switch comp {
	case CompressZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("dbio: failed to create decompressor: %w", err)
		}
		return dec, dec.Close, nil
	case CompressLZ4:
		return lz4.NewReader(r), func() {}, nil
	}
	return r, func() {}, nil
}
