package dbio

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/dbio/sexpr"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/tiledb"
)

// WriteSexp writes db as a sequence of top-level forms:
//
//	(family frame)
//	(tile CLB
//	  (item SLICE0 MODE (kind enum) (bits 0.1.0 0.1.1) (default LATCH)
//	    (value FF 10)
//	    (value LATCH 00)))
//	(misc KEY 0101)
//	(device DEV KEY 0101)
//
// Patterns are written index 0 first.
func WriteSexp[C bitcoord.Coord[C]](w io.Writer, db *tiledb.Db[C], family bitcoord.Family[C]) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "(family %s)\n", sexpr.Quote(family.Name))
	for _, name := range db.Tiles() {
		tile := db.Tile(name)
		fmt.Fprintf(bw, "(tile %s", sexpr.Quote(name))
		for _, k := range tile.Keys() {
			writeItem(bw, k, tile.Items[k])
		}
		bw.WriteString(")\n")
	}
	for _, k := range db.MiscKeys() {
		v, _ := db.Misc(k)
		fmt.Fprintf(bw, "(misc %s %s)\n", sexpr.Quote(k), sexpr.Quote(v.String()))
	}
	for _, dev := range db.Devices() {
		for _, k := range db.DeviceKeys(dev) {
			v, _ := db.Device(dev, k)
			fmt.Fprintf(bw, "(device %s %s %s)\n", sexpr.Quote(dev), sexpr.Quote(k), sexpr.Quote(v.String()))
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("dbio: write sexp: %w", err)
	}
	return nil
}

func writeItem[C bitcoord.Coord[C]](w *bufio.Writer, k tiledb.ItemKey, it tiledb.Item[C]) {
	fmt.Fprintf(w, "\n  (item %s %s (kind %s) (bits", sexpr.Quote(k.Bel), sexpr.Quote(k.Attr), it.Kind)
	for _, c := range it.Bits {
		w.WriteByte(' ')
		w.WriteString(c.String())
	}
	w.WriteByte(')')
	if it.Kind != tiledb.KindEnum {
		fmt.Fprintf(w, " (invert %s))", sexpr.Quote(it.Invert.String()))
		return
	}
	if it.Default != "" {
		fmt.Fprintf(w, " (default %s)", sexpr.Quote(it.Default))
	}
	for _, name := range it.ValueNames() {
		fmt.Fprintf(w, "\n    (value %s %s)", sexpr.Quote(name), sexpr.Quote(it.Values[name].String()))
	}
	w.WriteByte(')')
}

// ReadSexp reads a dump written by WriteSexp.
func ReadSexp[C bitcoord.Coord[C]](r io.Reader, family bitcoord.Family[C]) (*tiledb.Db[C], error) {
	p := sexpr.NewParser(r)
	db := tiledb.New[C]()
	sawFamily := false
	for {
		form, err := p.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dbio: read sexp: %w", err)
		}
		list, ok := form.(*sexpr.List)
		if !ok {
			return nil, fmt.Errorf("dbio: read sexp: stray atom %s", form)
		}
		if err := readForm(db, list, family, &sawFamily); err != nil {
			return nil, fmt.Errorf("dbio: read sexp: %w", err)
		}
	}
	if !sawFamily {
		return nil, fmt.Errorf("dbio: read sexp: missing (family ...) form")
	}
	return db, nil
}

func readForm[C bitcoord.Coord[C]](db *tiledb.Db[C], list *sexpr.List, family bitcoord.Family[C], sawFamily *bool) error {
	switch list.Head() {
	case "family":
		name, err := list.AtomAt(1)
		if err != nil {
			return err
		}
		if name != family.Name {
			return fmt.Errorf("database family %q, expected %q", name, family.Name)
		}
		*sawFamily = true
	case "tile":
		name, err := list.AtomAt(1)
		if err != nil {
			return err
		}
		for i := 2; i < list.Len(); i++ {
			sub, ok := list.Get(i).(*sexpr.List)
			if !ok || sub.Head() != "item" {
				return fmt.Errorf("line %d: tile %s: expected (item ...)", list.Line, name)
			}
			if err := readItem(db, name, sub, family); err != nil {
				return err
			}
		}
	case "misc":
		args, err := list.Atoms(1)
		if err != nil {
			return err
		}
		if len(args) != 2 {
			return fmt.Errorf("line %d: (misc KEY BITS) takes 2 arguments", list.Line)
		}
		bits, err := tiledb.ParseBits(args[1])
		if err != nil {
			return err
		}
		return db.InsertMisc(args[0], bits)
	case "device":
		args, err := list.Atoms(1)
		if err != nil {
			return err
		}
		if len(args) != 3 {
			return fmt.Errorf("line %d: (device DEV KEY BITS) takes 3 arguments", list.Line)
		}
		bits, err := tiledb.ParseBits(args[2])
		if err != nil {
			return err
		}
		return db.InsertDevice(args[0], args[1], bits)
	default:
		return fmt.Errorf("line %d: unknown form (%s ...)", list.Line, list.Head())
	}
	return nil
}

func readItem[C bitcoord.Coord[C]](db *tiledb.Db[C], tile string, list *sexpr.List, family bitcoord.Family[C]) error {
	bel, err := list.AtomAt(1)
	if err != nil {
		return err
	}
	attr, err := list.AtomAt(2)
	if err != nil {
		return err
	}
	raw := rawItem{values: make(map[string]string)}
	hasKind := false
	for i := 3; i < list.Len(); i++ {
		prop, ok := list.Get(i).(*sexpr.List)
		if !ok {
			return fmt.Errorf("line %d: %s:%s:%s: stray atom", list.Line, tile, bel, attr)
		}
		args, err := prop.Atoms(1)
		if err != nil {
			return err
		}
		switch prop.Head() {
		case "kind":
			if len(args) != 1 {
				return fmt.Errorf("line %d: (kind K) takes 1 argument", prop.Line)
			}
			if raw.kind, err = tiledb.ParseKind(args[0]); err != nil {
				return err
			}
			hasKind = true
		case "bits":
			raw.bits = args
		case "invert":
			raw.invert = strings.Join(args, "")
		case "default":
			if len(args) != 1 {
				return fmt.Errorf("line %d: (default NAME) takes 1 argument", prop.Line)
			}
			raw.def = args[0]
		case "value":
			if len(args) != 2 {
				return fmt.Errorf("line %d: (value NAME BITS) takes 2 arguments", prop.Line)
			}
			if _, dup := raw.values[args[0]]; dup {
				return fmt.Errorf("line %d: value %q listed twice", prop.Line, args[0])
			}
			raw.values[args[0]] = args[1]
		default:
			return fmt.Errorf("line %d: unknown item property (%s ...)", prop.Line, prop.Head())
		}
	}
	if !hasKind {
		return fmt.Errorf("line %d: %s:%s:%s: missing (kind ...)", list.Line, tile, bel, attr)
	}
	it, err := buildItem(raw, family)
	if err != nil {
		return fmt.Errorf("%s:%s:%s: %w", tile, bel, attr, err)
	}
	return db.Insert(tile, bel, attr, it)
}
