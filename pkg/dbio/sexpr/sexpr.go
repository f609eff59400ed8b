// Package sexpr is a small streaming S-expression reader and writer for
// the textual database dump. Top-level forms are read one at a time, so
// a dump of any size is processed in constant memory per form.
package sexpr

import (
	"fmt"
	"io"
	"strings"
)

// Sexp is an atom or a list.
type Sexp interface {
	IsLeaf() bool
	String() string
}

// Atom is a symbol or a string literal.
type Atom struct {
	Value string
	Line  int
}

func (a Atom) IsLeaf() bool   { return true }
func (a Atom) String() string { return Quote(a.Value) }

// List is a parenthesised sequence.
type List struct {
	Elements []Sexp
	Line     int
}

func (l *List) IsLeaf() bool { return false }

func (l *List) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, e := range l.Elements {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(e.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// Len returns the number of elements.
func (l *List) Len() int { return len(l.Elements) }

// Get returns the element at index, or nil.
func (l *List) Get(index int) Sexp {
	if index < 0 || index >= len(l.Elements) {
		return nil
	}
	return l.Elements[index]
}

// Head returns the symbol the list starts with, or "".
func (l *List) Head() string {
	if a, ok := l.Get(0).(Atom); ok {
		return a.Value
	}
	return ""
}

// AtomAt returns the atom value at index.
func (l *List) AtomAt(index int) (string, error) {
	a, ok := l.Get(index).(Atom)
	if !ok {
		return "", fmt.Errorf("line %d: (%s ...): element %d is not an atom", l.Line, l.Head(), index)
	}
	return a.Value, nil
}

// Atoms returns the atom values from index on.
func (l *List) Atoms(from int) ([]string, error) {
	out := make([]string, 0, len(l.Elements))
	for i := from; i < len(l.Elements); i++ {
		v, err := l.AtomAt(i)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Quote returns s as a bare symbol when it lexes as one, otherwise as a
// string literal.
func Quote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\r\n()\";\\") {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`)
	return `"` + r.Replace(s) + `"`
}

// Parse reads every top-level form.
func Parse(r io.Reader) ([]Sexp, error) {
	p := NewParser(r)
	var out []Sexp
	for {
		e, err := p.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
}

// ParseString reads every top-level form of s.
func ParseString(s string) ([]Sexp, error) {
	return Parse(strings.NewReader(s))
}
