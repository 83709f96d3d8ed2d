package wire

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// Scanner errors.
var (
	// ErrElementNotFound is returned when a scan reaches the end of input
	// without finding the requested element.
	ErrElementNotFound = errors.New("upnp: element not found")

	// ErrNestedElement is returned when an element expected to hold text
	// contains markup.
	ErrNestedElement = errors.New("upnp: unexpected nested element")
)

// CharsetReader decodes non UTF-8 bodies, e.g. ISO-8859-1 from older
// renderers.
var CharsetReader = charset.NewReaderLabel

// Match reports whether a child element with the local name is read. A nil
// Match reads every child.
type Match func(name string) bool

// Element is a child element reduced to its local name and text.
type Element struct {
	Name string
	Text string
}

// Scanner reads an XML body forward only. It checks well-formedness of the
// tokens it reads but not the overall document structure.
type Scanner struct {
	dec *xml.Decoder
}

// NewScanner returns a scanner over body.
func NewScanner(body []byte) *Scanner {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = CharsetReader
	return &Scanner{dec: dec}
}

// NextStart returns the next start element at any depth.
//
// Returns:
//   - xml.StartElement: The element
//   - error: io.EOF at end of input, or the decoder error
func (s *Scanner) NextStart() (xml.StartElement, error) {
	for {
		tok, err := s.dec.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start, nil
		}
	}
}

// Search skips forward to the next start element with the local name.
func (s *Scanner) Search(local string) (xml.StartElement, error) {
	for {
		start, err := s.NextStart()
		if errors.Is(err, io.EOF) {
			return xml.StartElement{}, fmt.Errorf("%w: %s", ErrElementNotFound, local)
		}
		if err != nil {
			return xml.StartElement{}, err
		}
		if start.Name.Local == local {
			return start, nil
		}
	}
}

// Children reads the child elements of parent up to its end tag. Matched
// children must hold text only; other children are skipped with their
// subtrees.
func (s *Scanner) Children(parent xml.StartElement, match Match) ([]Element, error) {
	var children []Element
	for {
		tok, err := s.dec.Token()
		if err != nil {
			return children, unexpectedEOF(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if match != nil && !match(t.Name.Local) {
				if err := s.dec.Skip(); err != nil {
					return children, unexpectedEOF(err)
				}
				continue
			}
			text, err := s.text(t)
			if err != nil {
				return children, err
			}
			children = append(children, Element{Name: t.Name.Local, Text: text})
		case xml.EndElement:
			if t.Name.Local == parent.Name.Local {
				return children, nil
			}
		}
	}
}

// EachChild calls fn for every child element of parent as it is read, so
// work done before a later syntax error is kept.
func (s *Scanner) EachChild(parent xml.StartElement, match Match, fn func(Element) error) error {
	for {
		tok, err := s.dec.Token()
		if err != nil {
			return unexpectedEOF(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if match != nil && !match(t.Name.Local) {
				if err := s.dec.Skip(); err != nil {
					return unexpectedEOF(err)
				}
				continue
			}
			text, err := s.text(t)
			if err != nil {
				return err
			}
			if err := fn(Element{Name: t.Name.Local, Text: text}); err != nil {
				return err
			}
		case xml.EndElement:
			if t.Name.Local == parent.Name.Local {
				return nil
			}
		}
	}
}

// text collects character data up to the end tag of start.
func (s *Scanner) text(start xml.StartElement) (string, error) {
	var b strings.Builder
	for {
		tok, err := s.dec.Token()
		if err != nil {
			return "", unexpectedEOF(err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.StartElement:
			return "", fmt.Errorf("%w: <%s> inside <%s>", ErrNestedElement, t.Name.Local, start.Name.Local)
		case xml.EndElement:
			return b.String(), nil
		}
	}
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
