package sampletext

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// SampleLexer defines the lexical structure of sample files.
var SampleLexer = lexer.MustSimple([]lexer.SimpleRule{
	// Comments - shell style (# to end of line)
	{Name: "Comment", Pattern: `#[^\n]*`},

	{Name: "Whitespace", Pattern: `[\s\t\n\r]+`},

	// Coordinates must come before integers
	{Name: "Coord", Pattern: `[0-9]+\.[0-9]+\.[0-9]+`},
	{Name: "Int", Pattern: `[0-9]+`},

	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},

	// Tile, element and attribute names
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},

	{Name: "LBrace", Pattern: `\{`},
	{Name: "RBrace", Pattern: `\}`},
	{Name: "Equals", Pattern: `=`},
	{Name: "Comma", Pattern: `,`},
})
