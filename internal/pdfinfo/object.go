package pdfinfo

import (
	"bytes"
	"fmt"
	"strconv"
)

type kind int

const (
	kNull kind = iota
	kBool
	kInt
	kReal
	kString
	kName
	kArray
	kDict
	kStream
	kRef
)

// object is the subset of the PDF object model needed to walk the page
// tree: dictionaries, arrays, numbers, names and references.
type object struct {
	kind    kind
	num     float64
	integer int64
	str     []byte
	name    string
	array   []*object
	dict    dict
	stream  []byte
	ref     ref
}

type ref struct {
	num, gen int
}

type dict map[string]*object

var null = &object{kind: kNull}

func (d dict) integer(key string) (int64, bool) {
	o, ok := d[key]
	if !ok {
		return 0, false
	}
	switch o.kind {
	case kInt:
		return o.integer, true
	case kReal:
		return int64(o.num), true
	}
	return 0, false
}

func (d dict) name(key string) string {
	if o, ok := d[key]; ok && o.kind == kName {
		return o.name
	}
	return ""
}

func (o *object) float() float64 {
	switch o.kind {
	case kInt:
		return float64(o.integer)
	case kReal:
		return o.num
	}
	return 0
}

const maxDepth = 100

// lexer reads PDF objects from a byte slice.
type lexer struct {
	data  []byte
	pos   int
	depth int
}

func newLexer(data []byte, pos int) *lexer {
	return &lexer{data: data, pos: pos}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case c == '%':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		case isSpace(c):
			l.pos++
		default:
			return
		}
	}
}

func (l *lexer) accept(s string) bool {
	if bytes.HasPrefix(l.data[l.pos:], []byte(s)) {
		l.pos += len(s)
		return true
	}
	return false
}

func (l *lexer) token() string {
	start := l.pos
	for l.pos < len(l.data) && !isSpace(l.data[l.pos]) && !isDelim(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// header consumes "N G obj".
func (l *lexer) header() error {
	l.skipSpace()
	l.token()
	l.skipSpace()
	l.token()
	l.skipSpace()
	if !l.accept("obj") {
		return fmt.Errorf("expected obj at offset %d", l.pos)
	}
	return nil
}

func (l *lexer) next() (*object, error) {
	if l.depth > maxDepth {
		return nil, fmt.Errorf("nesting deeper than %d", maxDepth)
	}
	l.depth++
	defer func() { l.depth-- }()

	l.skipSpace()
	if l.pos >= len(l.data) {
		return null, nil
	}
	switch c := l.data[l.pos]; {
	case l.accept("null"):
		return null, nil
	case l.accept("true"):
		return &object{kind: kBool, integer: 1}, nil
	case l.accept("false"):
		return &object{kind: kBool}, nil
	case c == '(':
		return l.literal(), nil
	case l.accept("<<"):
		return l.dictOrStream()
	case c == '<':
		return l.hex(), nil
	case c == '/':
		l.pos++
		return &object{kind: kName, name: l.token()}, nil
	case c == '[':
		return l.arrayObj()
	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		return l.number(), nil
	default:
		l.pos++
		return null, nil
	}
}

// literal skips a (string) and keeps its raw bytes; escapes are not
// decoded because page geometry never lives in strings.
func (l *lexer) literal() *object {
	l.pos++
	start, depth := l.pos, 1
	for l.pos < len(l.data) && depth > 0 {
		switch l.data[l.pos] {
		case '\\':
			l.pos++
		case '(':
			depth++
		case ')':
			depth--
		}
		l.pos++
	}
	end := l.pos - 1
	if end < start {
		end = start
	}
	return &object{kind: kString, str: l.data[start:end]}
}

func (l *lexer) hex() *object {
	l.pos++
	start := l.pos
	for l.pos < len(l.data) && l.data[l.pos] != '>' {
		l.pos++
	}
	s := l.data[start:l.pos]
	if l.pos < len(l.data) {
		l.pos++
	}
	return &object{kind: kString, str: s}
}

func (l *lexer) arrayObj() (*object, error) {
	l.pos++
	arr := &object{kind: kArray}
	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			return arr, nil
		}
		if l.data[l.pos] == ']' {
			l.pos++
			return arr, nil
		}
		o, err := l.next()
		if err != nil {
			return nil, err
		}
		arr.array = append(arr.array, o)
	}
}

func (l *lexer) dictOrStream() (*object, error) {
	d := dict{}
	for {
		l.skipSpace()
		if l.pos >= len(l.data) || l.accept(">>") {
			break
		}
		if l.data[l.pos] != '/' {
			l.pos++
			continue
		}
		l.pos++
		key := l.token()
		val, err := l.next()
		if err != nil {
			return nil, err
		}
		d[key] = val
	}

	save := l.pos
	l.skipSpace()
	if !l.accept("stream") {
		l.pos = save
		return &object{kind: kDict, dict: d}, nil
	}
	l.accept("\r")
	l.accept("\n")

	start := l.pos
	if n, ok := d.integer("Length"); ok && n >= 0 && start+int(n) <= len(l.data) {
		l.pos = start + int(n)
	} else {
		end := bytes.Index(l.data[start:], []byte("endstream"))
		if end < 0 {
			end = len(l.data) - start
		}
		l.pos = start + end
	}
	body := l.data[start:l.pos]
	l.skipSpace()
	l.accept("endstream")
	return &object{kind: kStream, dict: d, stream: body}, nil
}

// number reads an integer, a real, or an "N G R" reference.
func (l *lexer) number() *object {
	tok := l.token()
	n, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		f, _ := strconv.ParseFloat(tok, 64)
		return &object{kind: kReal, num: f}
	}

	save := l.pos
	l.skipSpace()
	if g, err := strconv.Atoi(l.token()); err == nil {
		l.skipSpace()
		if l.pos < len(l.data) && l.data[l.pos] == 'R' &&
			(l.pos+1 >= len(l.data) || isSpace(l.data[l.pos+1]) || isDelim(l.data[l.pos+1])) {
			l.pos++
			return &object{kind: kRef, ref: ref{num: int(n), gen: g}}
		}
	}
	l.pos = save
	return &object{kind: kInt, integer: n}
}
