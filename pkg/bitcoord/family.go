package bitcoord

// Family describes one coordinate kind at the boundary: how to build it
// from an integer triple and how to read its string form back.
type Family[C Coord[C]] struct {
	Name string
	Make func(a, b, c uint32) C
}

// Parse reads the dotted string form of a coordinate.
func (f Family[C]) Parse(s string) (C, error) {
	a, b, c, err := ParseTriple(s)
	if err != nil {
		var zero C
		return zero, err
	}
	return f.Make(a, b, c), nil
}

// Frames is the family of frame-addressed FPGA bitstream coordinates.
var Frames = Family[FrameBit]{
	Name: "frame",
	Make: func(a, b, c uint32) FrameBit { return FrameBit{Rect: a, Frame: b, Bit: c} },
}

// Fuses is the family of CPLD fuse-array coordinates.
var Fuses = Family[FuseBit]{
	Name: "fuse",
	Make: func(a, b, c uint32) FuseBit { return FuseBit{Row: a, Column: b, Bit: c} },
}

// FamilyNames lists the names accepted by configuration and the CLI.
var FamilyNames = []string{Frames.Name, Fuses.Name}
