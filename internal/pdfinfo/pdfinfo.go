// Package pdfinfo reads the page tree of a finished PDF: how many pages it
// has and how large each one is. It is used to report on exported
// documents and to check them in tests.
package pdfinfo

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrNotPDF is returned for input without a %PDF- header.
var ErrNotPDF = errors.New("pdfinfo: not a PDF file")

// Page describes one page in PDF points (1/72 inch).
type Page struct {
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation int     `json:"rotation,omitempty"`
}

// Info summarizes a document.
type Info struct {
	Version string `json:"version"`
	Pages   []Page `json:"pages"`
}

// PageCount returns len(i.Pages).
func (i *Info) PageCount() int { return len(i.Pages) }

// Open reads and inspects the PDF at path.
func Open(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pdfinfo: %w", err)
	}
	return Inspect(data)
}

// Inspect parses data and walks its page tree.
func Inspect(data []byte) (*Info, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, ErrNotPDF
	}
	r := &reader{data: data, xref: map[int]xrefEntry{}, cache: map[int]*object{}}
	if err := r.loadXRef(); err != nil {
		return nil, fmt.Errorf("pdfinfo: %w", err)
	}
	pages, err := r.pages()
	if err != nil {
		return nil, fmt.Errorf("pdfinfo: %w", err)
	}
	return &Info{Version: version(data), Pages: pages}, nil
}

func version(data []byte) string {
	line := data[5:]
	if i := bytes.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(string(line))
}

type xrefEntry struct {
	offset   int64
	inStream bool
	stream   int // object number of the containing object stream
}

type reader struct {
	data    []byte
	xref    map[int]xrefEntry
	trailer dict
	cache   map[int]*object
}

func (r *reader) loadXRef() error {
	idx := bytes.LastIndex(r.data, []byte("startxref"))
	if idx < 0 {
		return errors.New("startxref not found")
	}
	l := newLexer(r.data, idx+len("startxref"))
	l.skipSpace()
	off, err := strconv.ParseInt(l.token(), 10, 64)
	if err != nil {
		return fmt.Errorf("bad startxref: %w", err)
	}

	seen := map[int64]bool{}
	for off > 0 && !seen[off] {
		seen[off] = true
		if off >= int64(len(r.data)) {
			return fmt.Errorf("xref offset %d out of bounds", off)
		}
		section, err := r.loadSection(int(off))
		if err != nil {
			return err
		}
		if r.trailer == nil {
			r.trailer = section
		}
		prev, _ := section.integer("Prev")
		off = prev
	}
	if r.trailer == nil {
		return errors.New("no trailer")
	}
	return nil
}

// loadSection reads one xref table or xref stream and returns its
// trailer dictionary. Entries already known from a newer section win.
func (r *reader) loadSection(off int) (dict, error) {
	l := newLexer(r.data, off)
	l.skipSpace()
	if !l.accept("xref") {
		return r.loadXRefStream(l)
	}
	for {
		l.skipSpace()
		if l.accept("trailer") {
			break
		}
		first, err1 := strconv.Atoi(l.token())
		l.skipSpace()
		count, err2 := strconv.Atoi(l.token())
		if err1 != nil || err2 != nil {
			return nil, errors.New("malformed xref table")
		}
		for i := 0; i < count; i++ {
			l.skipSpace()
			offTok := l.token()
			l.skipSpace()
			l.token()
			l.skipSpace()
			kind := l.token()
			if _, ok := r.xref[first+i]; ok || kind != "n" {
				continue
			}
			o, _ := strconv.ParseInt(offTok, 10, 64)
			r.xref[first+i] = xrefEntry{offset: o}
		}
	}
	t, err := l.next()
	if err != nil {
		return nil, err
	}
	if t.kind != kDict {
		return nil, errors.New("trailer is not a dictionary")
	}
	return t.dict, nil
}

func (r *reader) loadXRefStream(l *lexer) (dict, error) {
	if err := l.header(); err != nil {
		return nil, err
	}
	o, err := l.next()
	if err != nil {
		return nil, err
	}
	if o.kind != kStream {
		return nil, errors.New("xref stream expected")
	}
	body, err := decode(o)
	if err != nil {
		return nil, fmt.Errorf("xref stream: %w", err)
	}

	w := o.dict["W"]
	if w == nil || w.kind != kArray || len(w.array) < 3 {
		return nil, errors.New("xref stream without /W")
	}
	w1, w2, w3 := int(w.array[0].integer), int(w.array[1].integer), int(w.array[2].integer)
	size := w1 + w2 + w3
	if size == 0 {
		return nil, errors.New("xref stream with zero-width entries")
	}

	var ranges [][2]int
	if idx, ok := o.dict["Index"]; ok && idx.kind == kArray {
		for i := 0; i+1 < len(idx.array); i += 2 {
			ranges = append(ranges, [2]int{int(idx.array[i].integer), int(idx.array[i+1].integer)})
		}
	} else {
		n, _ := o.dict.integer("Size")
		ranges = [][2]int{{0, int(n)}}
	}

	pos := 0
	for _, rg := range ranges {
		for i := 0; i < rg[1] && pos+size <= len(body); i++ {
			typ := 1
			if w1 > 0 {
				typ = field(body[pos:], w1)
			}
			f2 := field(body[pos+w1:], w2)
			pos += size

			num := rg[0] + i
			if _, ok := r.xref[num]; ok {
				continue
			}
			switch typ {
			case 1:
				r.xref[num] = xrefEntry{offset: int64(f2)}
			case 2:
				r.xref[num] = xrefEntry{inStream: true, stream: f2}
			}
		}
	}
	return o.dict, nil
}

func field(b []byte, n int) int {
	v := 0
	for i := 0; i < n && i < len(b); i++ {
		v = v<<8 | int(b[i])
	}
	return v
}

// resolve follows references until it reaches a direct object.
func (r *reader) resolve(o *object) (*object, error) {
	for hops := 0; o != nil && o.kind == kRef; hops++ {
		if hops > 32 {
			return nil, errors.New("reference chain too long")
		}
		var err error
		if o, err = r.load(o.ref.num); err != nil {
			return nil, err
		}
	}
	if o == nil {
		return null, nil
	}
	return o, nil
}

func (r *reader) load(num int) (*object, error) {
	if o, ok := r.cache[num]; ok {
		return o, nil
	}
	e, ok := r.xref[num]
	if !ok {
		return null, nil
	}
	// Mark as in progress so cycles resolve to null.
	r.cache[num] = null

	var (
		o   *object
		err error
	)
	if e.inStream {
		o, err = r.loadFromStream(num, e.stream)
	} else {
		o, err = r.loadAt(e.offset)
	}
	if err != nil {
		delete(r.cache, num)
		return nil, fmt.Errorf("object %d: %w", num, err)
	}
	r.cache[num] = o
	return o, nil
}

func (r *reader) loadAt(off int64) (*object, error) {
	if off < 0 || off >= int64(len(r.data)) {
		return nil, fmt.Errorf("offset %d out of bounds", off)
	}
	l := newLexer(r.data, int(off))
	if err := l.header(); err != nil {
		return nil, err
	}
	o, err := l.next()
	if err != nil {
		return nil, err
	}
	// An indirect /Length leaves the body cut at "endstream"; trim it to
	// the resolved length.
	if o.kind == kStream {
		if lr, ok := o.dict["Length"]; ok && lr.kind == kRef {
			n, err := r.resolve(lr)
			if err == nil && n.kind == kInt && n.integer >= 0 && int(n.integer) <= len(o.stream) {
				o.stream = o.stream[:n.integer]
			}
		}
	}
	return o, nil
}

func (r *reader) loadFromStream(num, container int) (*object, error) {
	s, err := r.load(container)
	if err != nil {
		return nil, err
	}
	if s.kind != kStream {
		return nil, fmt.Errorf("object stream %d is not a stream", container)
	}
	body, err := decode(s)
	if err != nil {
		return nil, err
	}
	n, _ := s.dict.integer("N")
	first, _ := s.dict.integer("First")

	l := newLexer(body, 0)
	for i := 0; i < int(n); i++ {
		l.skipSpace()
		id, _ := strconv.Atoi(l.token())
		l.skipSpace()
		off, _ := strconv.Atoi(l.token())
		if id != num {
			continue
		}
		pos := int(first) + off
		if pos < 0 || pos >= len(body) {
			return nil, fmt.Errorf("object %d outside its stream", num)
		}
		return newLexer(body, pos).next()
	}
	return nil, fmt.Errorf("object %d missing from stream %d", num, container)
}

// inherited holds page attributes passed down the page tree.
type inherited struct {
	mediaBox *object
	rotate   *object
}

func (r *reader) pages() ([]Page, error) {
	root, err := r.resolve(r.trailer["Root"])
	if err != nil {
		return nil, err
	}
	if root.kind != kDict {
		return nil, errors.New("catalog is not a dictionary")
	}
	tree, err := r.resolve(root.dict["Pages"])
	if err != nil {
		return nil, err
	}
	if tree.kind != kDict {
		return nil, errors.New("page tree root is not a dictionary")
	}
	var out []Page
	if err := r.walk(tree.dict, inherited{}, &out, 0); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reader) walk(node dict, in inherited, out *[]Page, depth int) error {
	if depth > maxDepth {
		return errors.New("page tree too deep")
	}
	if mb, ok := node["MediaBox"]; ok {
		in.mediaBox = mb
	}
	if rot, ok := node["Rotate"]; ok {
		in.rotate = rot
	}

	if node.name("Type") == "Page" {
		*out = append(*out, r.page(in))
		return nil
	}
	kids, err := r.resolve(node["Kids"])
	if err != nil {
		return err
	}
	for _, k := range kids.array {
		kid, err := r.resolve(k)
		if err != nil {
			return err
		}
		if kid.kind != kDict {
			continue
		}
		if err := r.walk(kid.dict, in, out, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) page(in inherited) Page {
	var p Page
	if mb, err := r.resolve(in.mediaBox); err == nil && mb.kind == kArray && len(mb.array) >= 4 {
		c := make([]float64, 4)
		for i := range c {
			v, err := r.resolve(mb.array[i])
			if err != nil {
				return p
			}
			c[i] = v.float()
		}
		p.Width, p.Height = c[2]-c[0], c[3]-c[1]
	}
	if rot, err := r.resolve(in.rotate); err == nil && rot.kind == kInt {
		p.Rotation = int(rot.integer)
	}
	return p
}
