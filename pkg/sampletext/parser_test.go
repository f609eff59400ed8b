package sampletext

import (
	"bytes"
	"strings"
	"testing"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/diff"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/samples"
)

func fb(r, f, b uint32) bitcoord.FrameBit {
	return bitcoord.FrameBit{Rect: r, Frame: f, Bit: b}
}

func TestParseSingleSample(t *testing.T) {
	input := `sample IOB IOB0 SLEW FAST { 1.2.3 = 1, 1.2.4 = 0 }`

	parser, err := NewParser()
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}

	f, err := parser.ParseString(input)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	if len(f.Samples) != 1 {
		t.Fatalf("Expected 1 sample, got %d", len(f.Samples))
	}

	s := f.Samples[0]
	if s.Tile != "IOB" || s.Bel != "IOB0" || s.Attr != "SLEW" || s.Val != "FAST" {
		t.Errorf("Unexpected key fields: %s %s %s %s", s.Tile, s.Bel, s.Attr, s.Val)
	}
	if len(s.Bits) != 2 {
		t.Fatalf("Expected 2 bits, got %d", len(s.Bits))
	}
	if s.Bits[0].Coord != "1.2.3" || s.Bits[0].Value != "1" {
		t.Errorf("Unexpected first bit: %s = %s", s.Bits[0].Coord, s.Bits[0].Value)
	}
}

func TestParseQuotedValue(t *testing.T) {
	parser, err := NewParser()
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}

	f, err := parser.ParseString(`sample T B A "LVCMOS 3.3" {}`)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	if got := f.Samples[0].Val; got != "LVCMOS 3.3" {
		t.Errorf("Expected unquoted value 'LVCMOS 3.3', got '%s'", got)
	}
	if len(f.Samples[0].Bits) != 0 {
		t.Errorf("Expected empty bit list, got %d bits", len(f.Samples[0].Bits))
	}
}

func TestParseErrors(t *testing.T) {
	parser, err := NewParser()
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}

	inputs := []string{
		`sample T B A { 0.1.2 = 1 }`,
		`sample T B A V { 0.1 = 1 }`,
		`sample T B A V { 0.1.2 }`,
		`sampel T B A V {}`,
	}
	for _, in := range inputs {
		if _, err := parser.ParseString(in); err == nil {
			t.Errorf("Expected parse error for %q", in)
		}
	}
}

func TestRecords(t *testing.T) {
	parser, err := NewParser()
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}

	f, err := parser.ParseFile("testdata/clb.samples")
	if err != nil {
		t.Fatalf("Failed to parse sample file: %v", err)
	}

	recs, err := Records(f, bitcoord.Frames)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(recs) != 5 {
		t.Fatalf("Expected 5 records, got %d", len(recs))
	}

	want := diff.Of(map[bitcoord.FrameBit]bool{fb(0, 12, 3): true, fb(0, 12, 4): true})
	if recs[2].Key.Val != "12" || !recs[2].Diff.Equal(want) {
		t.Errorf("Unexpected record %s: %s", recs[2].Key, recs[2].Diff)
	}

	inv := recs[3]
	if v, ok := inv.Diff.Get(fb(0, 13, 0)); !ok || v {
		t.Errorf("Expected 0.13.0 recorded as 0, got %v (present=%v)", v, ok)
	}
	if !recs[4].Diff.IsEmpty() {
		t.Errorf("Expected empty diff for INV 0, got %s", recs[4].Diff)
	}
}

func TestRecordsRejectsBadBits(t *testing.T) {
	parser, err := NewParser()
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}

	cases := map[string]string{
		"duplicate": `sample T B A V { 0.1.2 = 1, 0.1.2 = 0 }`,
		"value":     `sample T B A V { 0.1.2 = 2 }`,
	}
	for name, in := range cases {
		f, err := parser.ParseString(in)
		if err != nil {
			t.Fatalf("%s: failed to parse: %v", name, err)
		}
		if _, err := Records(f, bitcoord.Frames); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadIntoStore(t *testing.T) {
	parser, err := NewParser()
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}

	store := samples.NewStore[bitcoord.FrameBit]()
	n, err := Load(parser, "testdata/clb.samples", bitcoord.Frames, store)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 5 || store.Len() != 5 {
		t.Errorf("Expected 5 samples, loaded %d, store has %d", n, store.Len())
	}

	// Loading the same file again is idempotent.
	if _, err := Load(parser, "testdata/clb.samples", bitcoord.Frames, store); err != nil {
		t.Errorf("Reload: %v", err)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	d := diff.Of(map[bitcoord.FrameBit]bool{fb(2, 0, 1): false, fb(1, 5, 9): true})
	key := samples.Key{Tile: "IOB", Bel: "IOB0", Attr: "IOSTD", Val: "LVCMOS 3.3"}

	var buf bytes.Buffer
	if err := Format(&buf, key, d); err != nil {
		t.Fatalf("Format: %v", err)
	}

	want := `sample IOB IOB0 IOSTD "LVCMOS 3.3" { 1.5.9 = 1, 2.0.1 = 0 }` + "\n"
	if buf.String() != want {
		t.Errorf("Expected %q, got %q", want, buf.String())
	}

	parser, err := NewParser()
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	f, err := parser.Parse(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("Failed to reparse: %v", err)
	}
	recs, err := Records(f, bitcoord.Frames)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if recs[0].Key != key || !recs[0].Diff.Equal(d) {
		t.Errorf("Round trip mismatch: %s %s", recs[0].Key, recs[0].Diff)
	}
}

func TestFormatQuotesNames(t *testing.T) {
	key, err := samples.ParseKey("CLB-M:SLICE.0:FF EN:1")
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	d := diff.Of(map[bitcoord.FrameBit]bool{fb(0, 1, 0): true})

	var buf bytes.Buffer
	if err := Format(&buf, key, d); err != nil {
		t.Fatalf("Format: %v", err)
	}
	want := `sample "CLB-M" "SLICE.0" "FF EN" 1 { 0.1.0 = 1 }` + "\n"
	if buf.String() != want {
		t.Errorf("Expected %q, got %q", want, buf.String())
	}

	parser, err := NewParser()
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	f, err := parser.ParseString(buf.String())
	if err != nil {
		t.Fatalf("Failed to reparse: %v", err)
	}
	recs, err := Records(f, bitcoord.Frames)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(recs) != 1 || recs[0].Key != key || !recs[0].Diff.Equal(d) {
		t.Errorf("Round trip mismatch: %v", recs)
	}
}

func TestFormatEmpty(t *testing.T) {
	var buf bytes.Buffer
	key := samples.Key{Tile: "T", Bel: "B", Attr: "A", Val: "0"}
	if err := Format(&buf, key, diff.New[bitcoord.FrameBit]()); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if buf.String() != "sample T B A 0 {}\n" {
		t.Errorf("Unexpected output %q", buf.String())
	}
}
