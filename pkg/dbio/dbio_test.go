package dbio

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/tiledb"
)

type fb = bitcoord.FrameBit

func bit(f, b uint32) fb { return fb{Rect: 0, Frame: f, Bit: b} }

func sampleDb(t *testing.T) *tiledb.Db[fb] {
	t.Helper()
	db := tiledb.New[fb]()
	mode, err := tiledb.NewEnum([]fb{bit(1, 0), bit(1, 1)}, map[string]tiledb.Bits{
		"LATCH":      {false, false},
		"FF":         {true, false},
		"LVCMOS 3.3": {false, true},
	}, "LATCH")
	require.NoError(t, err)
	require.NoError(t, db.Insert("CLB", "SLICE0", "MODE", mode))
	require.NoError(t, db.Insert("CLB", "SLICE0", "FFEN", tiledb.NewFlag([]fb{bit(2, 5)}, true)))
	require.NoError(t, db.Insert("IOB", "IOB0", "DLY",
		tiledb.NewBitVec([]fb{bit(3, 0), bit(3, 1), bit(3, 2)}, tiledb.Bits{false, true, false})))
	require.NoError(t, db.InsertMisc("GLOBAL_IDCODE", tiledb.Bits{true, false, true, true}))
	require.NoError(t, db.InsertDevice("XC2C32A", "USERCODE", tiledb.Bits{false, true}))
	return db
}

func requireSameDb(t *testing.T, want, got *tiledb.Db[fb]) {
	t.Helper()
	require.Equal(t, want.Tiles(), got.Tiles())
	for _, name := range want.Tiles() {
		require.True(t, want.Tile(name).Equal(got.Tile(name)), "tile %s differs", name)
	}
	require.Equal(t, want.MiscKeys(), got.MiscKeys())
	for _, k := range want.MiscKeys() {
		a, _ := want.Misc(k)
		b, _ := got.Misc(k)
		require.True(t, a.Equal(b), "misc %s", k)
	}
	require.Equal(t, want.Devices(), got.Devices())
	for _, dev := range want.Devices() {
		for _, k := range want.DeviceKeys(dev) {
			a, _ := want.Device(dev, k)
			b, _ := got.Device(dev, k)
			require.True(t, a.Equal(b), "device %s %s", dev, k)
		}
	}
}

func TestJSONRoundTrip(t *testing.T) {
	db := sampleDb(t)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, db, bitcoord.Frames))
	first := buf.String()
	assert.Contains(t, first, `"0.1.0"`)
	assert.Contains(t, first, `"FF": "10"`)

	got, err := Decode(strings.NewReader(first), bitcoord.Frames)
	require.NoError(t, err)
	requireSameDb(t, db, got)

	// The encoding is deterministic.
	var again bytes.Buffer
	require.NoError(t, Encode(&again, got, bitcoord.Frames))
	if diff := cmp.Diff(first, again.String()); diff != "" {
		t.Errorf("re-encoding differs (-first +again):\n%s", diff)
	}
}

func TestDecodeRejects(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleDb(t), bitcoord.Frames))

	_, err := Decode(bytes.NewReader(buf.Bytes()), bitcoord.Fuses)
	assert.ErrorContains(t, err, "family")

	bad := strings.Replace(buf.String(), `"LATCH": "00"`, `"LATCH": "10"`, 1)
	_, err = Decode(strings.NewReader(bad), bitcoord.Frames)
	assert.Error(t, err, "duplicate patterns must fail validation")

	_, err = Decode(strings.NewReader(`{"family": "frame", "tiles": {}, "extra": 1}`), bitcoord.Frames)
	assert.Error(t, err)
}

func TestSexpRoundTrip(t *testing.T) {
	db := sampleDb(t)

	var buf bytes.Buffer
	require.NoError(t, WriteSexp(&buf, db, bitcoord.Frames))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "(family frame)\n"))
	assert.Contains(t, out, "(item SLICE0 FFEN (kind flag) (bits 0.2.5) (invert 1))")
	assert.Contains(t, out, `(value "LVCMOS 3.3" 01)`)
	assert.Contains(t, out, "(misc GLOBAL_IDCODE 1011)")
	assert.Contains(t, out, "(device XC2C32A USERCODE 01)")

	got, err := ReadSexp(strings.NewReader(out), bitcoord.Frames)
	require.NoError(t, err)
	requireSameDb(t, db, got)
}

func TestReadSexpErrors(t *testing.T) {
	cases := map[string]string{
		"no family":     `(tile CLB)`,
		"wrong family":  `(family fuse)`,
		"unknown form":  "(family frame)\n(bogus)",
		"missing kind":  "(family frame)\n(tile T (item B A (bits 0.0.1) (invert 0)))",
		"bad coord":     "(family frame)\n(tile T (item B A (kind flag) (bits 0.1) (invert 0)))",
		"dup value":     "(family frame)\n(tile T (item B A (kind enum) (bits 0.0.1) (value X 1) (value X 0)))",
		"stray atom":    "(family frame)\nhello",
		"unknown prop":  "(family frame)\n(tile T (item B A (kind flag) (colour red)))",
		"misc arity":    "(family frame)\n(misc K)",
		"device arity":  "(family frame)\n(device D K)",
		"bad pattern":   "(family frame)\n(misc K 012)",
		"invalid item":  "(family frame)\n(tile T (item B A (kind flag) (bits 0.0.1 0.0.2) (invert 01)))",
		"unclosed list": "(family frame",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadSexp(strings.NewReader(in), bitcoord.Frames)
			assert.Error(t, err)
		})
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		path   string
		format Format
		comp   Compression
	}{
		{"db.json", FormatJSON, CompressNone},
		{"db.json.zst", FormatJSON, CompressZstd},
		{"out/db.sexp", FormatSexp, CompressNone},
		{"DB.SEXP.LZ4", FormatSexp, CompressLZ4},
		{"db", FormatJSON, CompressNone},
	}
	for _, tt := range tests {
		f, c := Detect(tt.path)
		assert.Equal(t, tt.format, f, tt.path)
		assert.Equal(t, tt.comp, c, tt.path)
	}
}

func TestSaveLoad(t *testing.T) {
	db := sampleDb(t)
	dir := t.TempDir()
	for _, name := range []string{"db.json", "db.json.zst", "db.sexp", "db.sexp.lz4", "db.json.lz4", "db.sexp.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, Save(path, db, bitcoord.Frames))
			got, err := Load(path, bitcoord.Frames)
			require.NoError(t, err)
			requireSameDb(t, db, got)
		})
	}
}

func TestCompressedIsSmaller(t *testing.T) {
	db := tiledb.New[fb]()
	for i := uint32(0); i < 200; i++ {
		require.NoError(t, db.Insert("CLB", "SLICE"+strings.Repeat("X", int(i%7)), "A"+string(rune('A'+i%26))+string(rune('A'+i/26)),
			tiledb.NewFlag([]fb{bit(i, 0)}, false)))
	}
	dir := t.TempDir()
	plain := filepath.Join(dir, "db.json")
	packed := filepath.Join(dir, "db.json.zst")
	require.NoError(t, Save(plain, db, bitcoord.Frames))
	require.NoError(t, Save(packed, db, bitcoord.Frames))

	a, err := os.Stat(plain)
	require.NoError(t, err)
	b, err := os.Stat(packed)
	require.NoError(t, err)
	assert.Less(t, b.Size(), a.Size())
}

func TestSaveLeavesNoPartialFile(t *testing.T) {
	db := sampleDb(t)
	dir := t.TempDir()

	// A directory in the way makes the final rename fail.
	blocked := filepath.Join(dir, "db.json.zst")
	require.NoError(t, os.MkdirAll(filepath.Join(blocked, "keep"), 0o755))
	require.Error(t, Save(blocked, db, bitcoord.Frames))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "db.json.zst", entries[0].Name())

	// A successful save replaces the old file and leaves nothing else behind.
	path := filepath.Join(dir, "db.sexp")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))
	require.NoError(t, Save(path, db, bitcoord.Frames))
	got, err := Load(path, bitcoord.Frames)
	require.NoError(t, err)
	requireSameDb(t, db, got)

	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"), bitcoord.Frames)
	assert.Error(t, err)
}
