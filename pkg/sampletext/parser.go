// Package sampletext reads and writes sample files, the text form in which
// a fuzzing harness hands recorded Diffs to the engine.
package sampletext

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/diff"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/samples"
)

// Parser parses sample files.
type Parser struct {
	parser *participle.Parser[File]
}

// NewParser creates a new sample file parser.
func NewParser() (*Parser, error) {
	parser, err := participle.Build[File](
		participle.Lexer(SampleLexer),
		participle.Elide("Comment", "Whitespace"),
		participle.Unquote("String"),
		participle.UseLookahead(2),
	)
	if err != nil {
		return nil, fmt.Errorf("sampletext: failed to build parser: %w", err)
	}
	return &Parser{parser: parser}, nil
}

// Parse parses a sample file from a reader.
func (p *Parser) Parse(r io.Reader) (*File, error) {
	f, err := p.parser.Parse("", r)
	if err != nil {
		return nil, fmt.Errorf("sampletext: parse error: %w", err)
	}
	return f, nil
}

// ParseString parses a sample file from a string.
func (p *Parser) ParseString(input string) (*File, error) {
	f, err := p.parser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("sampletext: parse error: %w", err)
	}
	return f, nil
}

// ParseFile parses a sample file from a path.
func (p *Parser) ParseFile(filename string) (*File, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("sampletext: failed to open file: %w", err)
	}
	defer file.Close()

	f, err := p.parser.Parse(filename, file)
	if err != nil {
		return nil, fmt.Errorf("sampletext: parse error: %w", err)
	}
	return f, nil
}

// Record is a sample ready for the store.
type Record[C bitcoord.Coord[C]] struct {
	Key  samples.Key
	Diff diff.Diff[C]
}

// Records converts a parsed file into keyed Diffs using the coordinate
// family of the device.
func Records[C bitcoord.Coord[C]](f *File, family bitcoord.Family[C]) ([]Record[C], error) {
	out := make([]Record[C], 0, len(f.Samples))
	for _, s := range f.Samples {
		key := samples.Key{Tile: s.Tile, Bel: s.Bel, Attr: s.Attr, Val: s.Val}
		d := diff.New[C]()
		for _, b := range s.Bits {
			c, err := family.Parse(b.Coord)
			if err != nil {
				return nil, fmt.Errorf("sampletext: %s: %w", b.Pos, err)
			}
			var v bool
			switch b.Value {
			case "0":
			case "1":
				v = true
			default:
				return nil, fmt.Errorf("sampletext: %s: bit value %q is not 0 or 1", b.Pos, b.Value)
			}
			if _, dup := d.Get(c); dup {
				return nil, fmt.Errorf("sampletext: %s: %s: bit %s listed twice", b.Pos, key, c)
			}
			d.Set(c, v)
		}
		out = append(out, Record[C]{Key: key, Diff: d})
	}
	return out, nil
}

// Load parses a sample file and inserts its records into store.
func Load[C bitcoord.Coord[C]](p *Parser, filename string, family bitcoord.Family[C], store *samples.Store[C]) (int, error) {
	f, err := p.ParseFile(filename)
	if err != nil {
		return 0, err
	}
	recs, err := Records(f, family)
	if err != nil {
		return 0, err
	}
	for _, r := range recs {
		if err := store.Insert(r.Key, r.Diff); err != nil {
			return 0, fmt.Errorf("sampletext: %s: %w", filename, err)
		}
	}
	return len(recs), nil
}

// Format writes one sample in canonical form, bits in coordinate order.
func Format[C bitcoord.Coord[C]](w io.Writer, key samples.Key, d diff.Diff[C]) error {
	var sb strings.Builder
	sb.WriteString("sample ")
	sb.WriteString(formatValue(key.Tile))
	sb.WriteByte(' ')
	sb.WriteString(formatValue(key.Bel))
	sb.WriteByte(' ')
	sb.WriteString(formatValue(key.Attr))
	sb.WriteByte(' ')
	sb.WriteString(formatValue(key.Val))
	sb.WriteString(" {")
	for i, c := range d.Coords() {
		if i > 0 {
			sb.WriteByte(',')
		}
		v, _ := d.Get(c)
		sb.WriteByte(' ')
		sb.WriteString(c.String())
		if v {
			sb.WriteString(" = 1")
		} else {
			sb.WriteString(" = 0")
		}
	}
	if d.Len() > 0 {
		sb.WriteByte(' ')
	}
	sb.WriteString("}\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

var (
	identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	intRe   = regexp.MustCompile(`^[0-9]+$`)
)

// formatValue quotes a name or value unless it lexes as a bare identifier
// or integer.
func formatValue(v string) string {
	if identRe.MatchString(v) && v != "sample" || intRe.MatchString(v) {
		return v
	}
	return strconv.Quote(v)
}
