package sampletext

import "github.com/alecthomas/participle/v2/lexer"

// File is a parsed sample file.
type File struct {
	Samples []*Sample `@@*`
}

// Sample is one recorded Diff.
// Example: sample CLB SLICE0 DRIVE "12" { 0.12.3 = 1, 0.12.4 = 0 }
// Names that are not identifiers or integers are quoted.
type Sample struct {
	Pos lexer.Position

	Tile string `"sample" @( Ident | String | Int )`
	Bel  string `@( Ident | String | Int )`
	Attr string `@( Ident | String | Int )`
	Val  string `@( Ident | String | Int )`
	Bits []*Bit `LBrace ( @@ ( Comma @@ )* Comma? )? RBrace`
}

// Bit is one differing bit and the value it holds in the sample.
type Bit struct {
	Pos lexer.Position

	Coord string `@Coord Equals`
	Value string `@Int`
}
