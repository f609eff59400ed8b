package sexpr

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
)

type kind uint8

const (
	kindEnd kind = iota
	kindOpen
	kindClose
	kindAtom
)

var kindNames = [...]string{"end of input", "'('", "')'", "atom"}

func (k kind) String() string { return kindNames[k] }

type token struct {
	kind kind
	text string
	line int
}

// scanner splits a stream into parens and atoms. Comments run from ';' to
// the end of the line.
type scanner struct {
	r    *bufio.Reader
	line int
}

func newScanner(r io.Reader) *scanner {
	return &scanner{r: bufio.NewReader(r), line: 1}
}

func (s *scanner) get() (rune, error) {
	c, _, err := s.r.ReadRune()
	if err == nil && c == '\n' {
		s.line++
	}
	return c, err
}

// unget pushes back c, which must be the rune the last get returned.
// UnreadRune only fails when the previous read was not a ReadRune.
func (s *scanner) unget(c rune) {
	_ = s.r.UnreadRune()
	if c == '\n' {
		s.line--
	}
}

func (s *scanner) skip() error {
	inComment := false
	for {
		c, err := s.get()
		if err != nil {
			return err
		}
		switch {
		case c == '\n':
			inComment = false
		case inComment, unicode.IsSpace(c):
		case c == ';':
			inComment = true
		default:
			s.unget(c)
			return nil
		}
	}
}

func (s *scanner) next() (token, error) {
	if err := s.skip(); err != nil {
		if errors.Is(err, io.EOF) {
			return token{kind: kindEnd, line: s.line}, nil
		}
		return token{}, err
	}
	line := s.line
	c, _ := s.get()
	switch c {
	case '(':
		return token{kind: kindOpen, line: line}, nil
	case ')':
		return token{kind: kindClose, line: line}, nil
	case '"':
		text, err := s.quoted(line)
		return token{kind: kindAtom, text: text, line: line}, err
	}
	s.unget(c)
	return token{kind: kindAtom, text: s.bare(), line: line}, nil
}

func (s *scanner) quoted(line int) (string, error) {
	var sb strings.Builder
	escaped := false
	for {
		c, err := s.get()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", fmt.Errorf("line %d: unterminated string", line)
			}
			return "", err
		}
		if escaped {
			escaped = false
			switch c {
			case 'n':
				c = '\n'
			case 't':
				c = '\t'
			}
			sb.WriteRune(c)
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '"':
			return sb.String(), nil
		default:
			sb.WriteRune(c)
		}
	}
}

func delimits(c rune) bool {
	return unicode.IsSpace(c) || strings.ContainsRune(`()";`, c)
}

func (s *scanner) bare() string {
	var sb strings.Builder
	for {
		c, err := s.get()
		if err != nil {
			break
		}
		if delimits(c) {
			s.unget(c)
			break
		}
		sb.WriteRune(c)
	}
	return sb.String()
}
