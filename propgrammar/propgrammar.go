// Package propgrammar implements the parameter-property grammar of
// spec §4.3: a comma-separated list of typed scan entries describing
// how a parameter-scan run should sweep one parameter. The parser is
// hand-written recursive descent, matching the rest of this module's
// numeric code (no parser-combinator or parser-generator library
// appears anywhere in the retrieval pack).
package propgrammar

import (
	"strconv"
	"strings"

	"github.com/pa-m/paramopt/errs"
)

// RefMode is how a <ref> selects the parameter an entry scans.
type RefMode int

const (
	// ByPosition: a bare unsigned integer, a positional index into the
	// flattened list of parameters of the entry's kind.
	ByPosition RefMode = iota
	// ByCollectionIndex: identifier[uint], a collection leaf name and
	// an index within it.
	ByCollectionIndex
	// ByName: identifier, a scalar leaf name.
	ByName
)

// Spec is one parsed scan entry (spec §4.3: scan_spec<T>).
type Spec[T any] struct {
	Mode   RefMode
	Name   string
	Pos    int
	Lo, Hi T
	NSteps uint
}

// Specs is the result of parsing one property string: one slice per
// value kind, preserving entry order within each kind.
type Specs struct {
	Double []Spec[float64]
	Float  []Spec[float32]
	Int    []Spec[int32]
	Bool   []Spec[bool]
}

const defaultNSteps = 100

// Parse parses a comma-separated property string into typed scan
// specifications (spec §4.3). It fails with a GrammarError carrying
// the unparsed tail on any syntax error.
func Parse(s string) (Specs, error) {
	p := &parser{src: s}
	var out Specs
	for {
		p.skipSpace()
		if p.atEnd() {
			break
		}
		if err := p.parseEntry(&out); err != nil {
			return Specs{}, err
		}
		p.skipSpace()
		if p.atEnd() {
			break
		}
		if p.peek() != ',' {
			return Specs{}, errs.Grammar(p.rest(), "expected ',' between entries")
		}
		p.advance()
	}
	return out, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) atEnd() bool   { return p.pos >= len(p.src) }
func (p *parser) rest() string  { return p.src[p.pos:] }
func (p *parser) peek() byte    { return p.src[p.pos] }
func (p *parser) advance()      { p.pos++ }
func (p *parser) skipSpace() {
	for !p.atEnd() && (p.peek() == ' ' || p.peek() == '\t' || p.peek() == '\n') {
		p.advance()
	}
}

func (p *parser) expect(c byte) error {
	p.skipSpace()
	if p.atEnd() || p.peek() != c {
		return errs.Grammar(p.rest(), "expected %q", c)
	}
	p.advance()
	return nil
}

// identToken scans an identifier: a letter or underscore followed by
// letters, digits, or underscores.
func (p *parser) identToken() (string, error) {
	start := p.pos
	if p.atEnd() || !isIdentStart(p.peek()) {
		return "", errs.Grammar(p.rest(), "expected identifier")
	}
	p.advance()
	for !p.atEnd() && isIdentPart(p.peek()) {
		p.advance()
	}
	return p.src[start:p.pos], nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (p *parser) numberToken() (string, error) {
	start := p.pos
	if !p.atEnd() && (p.peek() == '+' || p.peek() == '-') {
		p.advance()
	}
	sawDigit := false
	for !p.atEnd() && p.peek() >= '0' && p.peek() <= '9' {
		p.advance()
		sawDigit = true
	}
	if !p.atEnd() && p.peek() == '.' {
		p.advance()
		for !p.atEnd() && p.peek() >= '0' && p.peek() <= '9' {
			p.advance()
			sawDigit = true
		}
	}
	if !p.atEnd() && (p.peek() == 'e' || p.peek() == 'E') {
		save := p.pos
		p.advance()
		if !p.atEnd() && (p.peek() == '+' || p.peek() == '-') {
			p.advance()
		}
		expDigit := false
		for !p.atEnd() && p.peek() >= '0' && p.peek() <= '9' {
			p.advance()
			expDigit = true
		}
		if !expDigit {
			p.pos = save
		}
	}
	if !sawDigit {
		return "", errs.Grammar(p.rest(), "expected a number")
	}
	return p.src[start:p.pos], nil
}

func (p *parser) uintToken() (uint, error) {
	p.skipSpace()
	start := p.pos
	for !p.atEnd() && p.peek() >= '0' && p.peek() <= '9' {
		p.advance()
	}
	if p.pos == start {
		return 0, errs.Grammar(p.rest(), "expected an unsigned integer")
	}
	n, err := strconv.ParseUint(p.src[start:p.pos], 10, 64)
	if err != nil {
		return 0, errs.Grammar(p.rest(), "bad unsigned integer: %v", err)
	}
	return uint(n), nil
}

func (p *parser) boolToken() (bool, error) {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], "true") {
		p.pos += 4
		return true, nil
	}
	if strings.HasPrefix(p.src[p.pos:], "false") {
		p.pos += 5
		return false, nil
	}
	return false, errs.Grammar(p.rest(), "expected true or false")
}

// ref parses <ref> = uint | identifier '[' uint ']' | identifier.
func (p *parser) ref() (mode RefMode, name string, pos int, err error) {
	p.skipSpace()
	if !p.atEnd() && p.peek() >= '0' && p.peek() <= '9' {
		n, err := p.uintToken()
		if err != nil {
			return 0, "", 0, err
		}
		return ByPosition, "", int(n), nil
	}
	name, err = p.identToken()
	if err != nil {
		return 0, "", 0, err
	}
	p.skipSpace()
	if !p.atEnd() && p.peek() == '[' {
		p.advance()
		n, err := p.uintToken()
		if err != nil {
			return 0, "", 0, err
		}
		if err := p.expect(']'); err != nil {
			return 0, "", 0, err
		}
		return ByCollectionIndex, name, int(n), nil
	}
	return ByName, name, 0, nil
}

func (p *parser) parseEntry(out *Specs) error {
	p.skipSpace()
	if p.atEnd() {
		return errs.Grammar(p.rest(), "expected an entry")
	}
	letter := p.peek()
	p.advance()
	if err := p.expect('('); err != nil {
		return err
	}
	mode, name, pos, err := p.ref()
	if err != nil {
		return err
	}

	switch letter {
	case 'd':
		return parseNumericEntry(p, &out.Double, mode, name, pos, parseFloatTok[float64])
	case 'f':
		return parseNumericEntry(p, &out.Float, mode, name, pos, parseFloatTok[float32])
	case 'i':
		return parseNumericEntry(p, &out.Int, mode, name, pos, parseIntTok)
	case 'b':
		return parseBoolEntry(p, &out.Bool, mode, name, pos)
	default:
		return errs.Grammar(p.rest(), "unknown entry prefix %q", letter)
	}
}

func parseFloatTok[T float32 | float64](p *parser) (T, error) {
	tok, err := p.numberToken()
	if err != nil {
		var zero T
		return zero, err
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		var zero T
		return zero, errs.Grammar(p.rest(), "bad number %q: %v", tok, err)
	}
	return T(f), nil
}

func parseIntTok(p *parser) (int32, error) {
	tok, err := p.numberToken()
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(tok, 10, 32)
	if err != nil {
		return 0, errs.Grammar(p.rest(), "bad integer %q: %v", tok, err)
	}
	return int32(n), nil
}

func parseNumericEntry[T any](p *parser, out *[]Spec[T], mode RefMode, name string, pos int, parseVal func(*parser) (T, error)) error {
	if err := p.expect(','); err != nil {
		return err
	}
	lo, err := parseVal(p)
	if err != nil {
		return err
	}
	if err := p.expect(','); err != nil {
		return err
	}
	hi, err := parseVal(p)
	if err != nil {
		return err
	}
	nSteps := uint(defaultNSteps)
	p.skipSpace()
	if !p.atEnd() && p.peek() == ',' {
		p.advance()
		nSteps, err = p.uintToken()
		if err != nil {
			return err
		}
	}
	if err := p.expect(')'); err != nil {
		return err
	}
	*out = append(*out, Spec[T]{Mode: mode, Name: name, Pos: pos, Lo: lo, Hi: hi, NSteps: nSteps})
	return nil
}

func parseBoolEntry(p *parser, out *[]Spec[bool], mode RefMode, name string, pos int) error {
	lo, hi, nSteps := false, true, uint(defaultNSteps)
	p.skipSpace()
	if !p.atEnd() && p.peek() == ',' {
		p.advance()
		var err error
		lo, err = p.boolToken()
		if err != nil {
			return err
		}
		if err := p.expect(','); err != nil {
			return err
		}
		hi, err = p.boolToken()
		if err != nil {
			return err
		}
		if err := p.expect(','); err != nil {
			return err
		}
		nSteps, err = p.uintToken()
		if err != nil {
			return err
		}
	}
	if err := p.expect(')'); err != nil {
		return err
	}
	*out = append(*out, Spec[bool]{Mode: mode, Name: name, Pos: pos, Lo: lo, Hi: hi, NSteps: nSteps})
	return nil
}
