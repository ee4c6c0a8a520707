package schema

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// Violation describes the first point at which a document departs from
// its schema.
type Violation struct {
	Path   string
	Reason string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Reason)
}

// Unwrap lets callers match any violation with errors.Is(err, ErrSchemaViolation).
func (v *Violation) Unwrap() error { return ErrSchemaViolation }

// Validator checks one document against a Schema. It keeps per-document
// state and must not be shared between goroutines.
type Validator struct {
	schema *Schema
	path   []string
}

type instance struct {
	name     string
	attrs    []xml.Attr
	children []*instance
	text     strings.Builder
}

// ValidateBytes validates an in-memory document.
func (v *Validator) ValidateBytes(doc []byte) error {
	return v.Validate(bytes.NewReader(doc))
}

// Validate parses the document from r and checks it against the schema.
// Malformed XML is reported as a violation.
func (v *Validator) Validate(r io.Reader) error {
	v.path = v.path[:0]
	root, err := parseInstance(r)
	if err != nil {
		return &Violation{Path: "/", Reason: err.Error()}
	}
	decl, ok := v.schema.elements[root.name]
	if !ok {
		return &Violation{Path: "/" + root.name, Reason: "is not a declared root element"}
	}
	return v.element(root, decl)
}

func parseInstance(r io.Reader) (*instance, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var stack []*instance
	var root *instance
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &instance{name: t.Name.Local, attrs: t.Attr}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			} else if root != nil {
				return nil, errors.New("document has more than one root element")
			} else {
				root = el
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			} else if len(bytes.TrimSpace(t)) > 0 {
				return nil, errors.New("character data outside root element")
			}
		}
	}
	if root == nil {
		return nil, errors.New("document has no root element")
	}
	return root, nil
}

func (v *Validator) current() string {
	return "/" + strings.Join(v.path, "/")
}

func (v *Validator) fail(format string, args ...any) error {
	return &Violation{Path: v.current(), Reason: fmt.Sprintf(format, args...)}
}

func (v *Validator) element(el *instance, decl *elementDecl) error {
	v.path = append(v.path, el.name)
	defer func() { v.path = v.path[:len(v.path)-1] }()

	if decl.complex == nil {
		if len(el.children) > 0 && decl.simple.base != "anyType" {
			return v.fail("element %q must not contain child elements", el.children[0].name)
		}
		for _, a := range el.attrs {
			if !isNamespaceAttr(a) && decl.simple.base != "anyType" {
				return v.fail("attribute %q is not allowed", a.Name.Local)
			}
		}
		if reason, ok := decl.simple.check(el.text.String()); !ok {
			return v.fail("value %q %s", el.text.String(), reason)
		}
		return nil
	}

	ct := decl.complex
	if strings.TrimSpace(el.text.String()) != "" {
		return v.fail("text content is not allowed")
	}
	if err := v.attributes(el, ct); err != nil {
		return err
	}
	switch ct.kind {
	case modelEmpty:
		if len(el.children) > 0 {
			return v.fail("element %q is not allowed", el.children[0].name)
		}
		return nil
	case modelAll:
		return v.all(el, ct)
	default:
		return v.sequence(el, ct)
	}
}

func (v *Validator) attributes(el *instance, ct *complexType) error {
	seen := make(map[string]bool, len(el.attrs))
	for _, a := range el.attrs {
		if isNamespaceAttr(a) {
			continue
		}
		decl, ok := ct.attributes[a.Name.Local]
		if !ok {
			return v.fail("attribute %q is not allowed", a.Name.Local)
		}
		if reason, ok := decl.simple.check(a.Value); !ok {
			return v.fail("attribute %q value %q %s", a.Name.Local, a.Value, reason)
		}
		seen[a.Name.Local] = true
	}
	for name, decl := range ct.attributes {
		if decl.required && !seen[name] {
			return v.fail("required attribute %q is missing", name)
		}
	}
	return nil
}

func (v *Validator) sequence(el *instance, ct *complexType) error {
	i := 0
	for _, decl := range ct.children {
		count := 0
		for i < len(el.children) && el.children[i].name == decl.name &&
			(decl.maxOccurs == unbounded || count < decl.maxOccurs) {
			if err := v.element(el.children[i], decl); err != nil {
				return err
			}
			count++
			i++
		}
		if count < decl.minOccurs {
			if i < len(el.children) {
				return v.fail("expected element %q, found %q", decl.name, el.children[i].name)
			}
			return v.fail("missing required element %q", decl.name)
		}
	}
	if i < len(el.children) {
		return v.fail("unexpected element %q", el.children[i].name)
	}
	return nil
}

func (v *Validator) all(el *instance, ct *complexType) error {
	byName := make(map[string]*elementDecl, len(ct.children))
	for _, decl := range ct.children {
		byName[decl.name] = decl
	}
	seen := make(map[string]bool, len(el.children))
	for _, child := range el.children {
		decl, ok := byName[child.name]
		if !ok {
			return v.fail("unexpected element %q", child.name)
		}
		if seen[child.name] {
			return v.fail("element %q appears more than once", child.name)
		}
		seen[child.name] = true
		if err := v.element(child, decl); err != nil {
			return err
		}
	}
	for _, decl := range ct.children {
		if decl.minOccurs > 0 && !seen[decl.name] {
			return v.fail("missing required element %q", decl.name)
		}
	}
	return nil
}

func isNamespaceAttr(a xml.Attr) bool {
	return a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") ||
		a.Name.Space == "http://www.w3.org/2001/XMLSchema-instance"
}
