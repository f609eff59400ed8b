package sexpr

import (
	"fmt"
	"io"
)

// Parser reads top-level forms one at a time.
type Parser struct {
	s *scanner
}

// NewParser creates a parser over r.
func NewParser(r io.Reader) *Parser {
	return &Parser{s: newScanner(r)}
}

// Next returns the next top-level form, or io.EOF after the last one.
// Lists are assembled on an explicit stack so nesting depth is bounded
// only by memory.
func (p *Parser) Next() (Sexp, error) {
	var stack []*List
	for {
		tok, err := p.s.next()
		if err != nil {
			return nil, err
		}
		var done Sexp
		switch tok.kind {
		case kindEnd:
			if len(stack) == 0 {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("line %d: unexpected %s in list", stack[len(stack)-1].Line, tok.kind)
		case kindOpen:
			stack = append(stack, &List{Line: tok.line})
			continue
		case kindClose:
			if len(stack) == 0 {
				return nil, fmt.Errorf("line %d: unexpected %s", tok.line, tok.kind)
			}
			done = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
		case kindAtom:
			done = Atom{Value: tok.text, Line: tok.line}
		}
		if len(stack) == 0 {
			return done, nil
		}
		top := stack[len(stack)-1]
		top.Elements = append(top.Elements, done)
	}
}
