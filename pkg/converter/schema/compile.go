// Package schema compiles a subset of W3C XML Schema and validates XML
// documents against it.
//
// Supported constructs: top-level and nested xs:element (name, type, ref,
// minOccurs, maxOccurs), named and inline xs:complexType containing
// xs:sequence or xs:all plus xs:attribute declarations, named and inline
// xs:simpleType restrictions (enumeration, pattern, minLength, maxLength)
// and the built-in simple types listed in builtinTypes. Anything else is a
// compile error rather than being silently ignored.
//
// A compiled *Schema is immutable and may be shared between goroutines.
// Validators are not: take a fresh one per document via NewValidator.
package schema

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// XSDNamespace is the W3C XML Schema namespace.
const XSDNamespace = "http://www.w3.org/2001/XMLSchema"

var (
	// ErrSchemaCompile indicates a schema document could not be read or
	// uses constructs outside the supported subset.
	ErrSchemaCompile = errors.New("failed to compile schema")

	// ErrSchemaViolation indicates a document does not conform to a schema.
	ErrSchemaViolation = errors.New("document violates schema")
)

const unbounded = -1

type modelKind int

const (
	modelEmpty modelKind = iota
	modelSequence
	modelAll
)

// Schema is a compiled, immutable schema.
type Schema struct {
	elements map[string]*elementDecl
}

type elementDecl struct {
	name      string
	minOccurs int
	maxOccurs int
	simple    *simpleType
	complex   *complexType
}

type complexType struct {
	kind       modelKind
	children   []*elementDecl
	attributes map[string]*attributeDecl
}

type attributeDecl struct {
	name     string
	required bool
	simple   *simpleType
}

type simpleType struct {
	base        string
	enumeration []string
	patterns    []*regexp.Regexp
	minLength   int
	maxLength   int
}

// node is the generic shape of an XSD element.
type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []node     `xml:",any"`
}

func (n *node) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name && a.Name.Space == "" {
			return a.Value, true
		}
	}
	return "", false
}

func (n *node) is(local string) bool {
	return n.XMLName.Space == XSDNamespace && n.XMLName.Local == local
}

// CompileFile reads and compiles the schema at path.
func CompileFile(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchemaCompile, err)
	}
	defer f.Close()
	return Compile(f)
}

// Compile reads a schema document from r.
func Compile(r io.Reader) (*Schema, error) {
	var root node
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchemaCompile, err)
	}
	if !root.is("schema") {
		return nil, fmt.Errorf("%w: root element is %q, want xs:schema", ErrSchemaCompile, root.XMLName.Local)
	}

	c := &compiler{
		topElements:  make(map[string]*node),
		complexTypes: make(map[string]*node),
		simpleTypes:  make(map[string]*node),
		resolvedCT:   make(map[string]*complexType),
		resolvedST:   make(map[string]*simpleType),
	}
	for i := range root.Children {
		child := &root.Children[i]
		name, _ := child.attr("name")
		switch {
		case child.is("element"):
			c.topElements[name] = child
		case child.is("complexType"):
			c.complexTypes[name] = child
		case child.is("simpleType"):
			c.simpleTypes[name] = child
		case child.is("annotation"):
		default:
			return nil, unsupported(child)
		}
		if name == "" && !child.is("annotation") {
			return nil, fmt.Errorf("%w: top-level xs:%s requires a name", ErrSchemaCompile, child.XMLName.Local)
		}
	}
	if len(c.topElements) == 0 {
		return nil, fmt.Errorf("%w: schema declares no top-level elements", ErrSchemaCompile)
	}

	s := &Schema{elements: make(map[string]*elementDecl, len(c.topElements))}
	for name, n := range c.topElements {
		decl, err := c.element(n, true)
		if err != nil {
			return nil, err
		}
		s.elements[name] = decl
	}
	return s, nil
}

// NewValidator returns a validator bound to s for a single document.
func (s *Schema) NewValidator() *Validator {
	return &Validator{schema: s}
}

type compiler struct {
	topElements  map[string]*node
	complexTypes map[string]*node
	simpleTypes  map[string]*node
	resolvedCT   map[string]*complexType
	resolvedST   map[string]*simpleType
	depth        int
}

func (c *compiler) element(n *node, topLevel bool) (*elementDecl, error) {
	if ref, ok := n.attr("ref"); ok {
		target, found := c.topElements[localName(ref)]
		if !found {
			return nil, fmt.Errorf("%w: unresolved element ref %q", ErrSchemaCompile, ref)
		}
		decl, err := c.guarded(func() (*elementDecl, error) { return c.element(target, true) })
		if err != nil {
			return nil, err
		}
		occ := *decl
		if err := c.occurs(n, &occ); err != nil {
			return nil, err
		}
		return &occ, nil
	}

	name, ok := n.attr("name")
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: xs:element requires name or ref", ErrSchemaCompile)
	}
	decl := &elementDecl{name: name, minOccurs: 1, maxOccurs: 1}
	if !topLevel {
		if err := c.occurs(n, decl); err != nil {
			return nil, err
		}
	}

	typeName, hasType := n.attr("type")
	for i := range n.Children {
		child := &n.Children[i]
		switch {
		case child.is("annotation"):
		case child.is("complexType"):
			if hasType {
				return nil, fmt.Errorf("%w: element %q has both type and inline complexType", ErrSchemaCompile, name)
			}
			ct, err := c.complex(child)
			if err != nil {
				return nil, err
			}
			decl.complex = ct
		case child.is("simpleType"):
			if hasType {
				return nil, fmt.Errorf("%w: element %q has both type and inline simpleType", ErrSchemaCompile, name)
			}
			st, err := c.simple(child)
			if err != nil {
				return nil, err
			}
			decl.simple = st
		default:
			return nil, unsupported(child)
		}
	}

	if hasType {
		if err := c.resolveType(typeName, decl); err != nil {
			return nil, fmt.Errorf("element %q: %w", name, err)
		}
	}
	if decl.simple == nil && decl.complex == nil {
		decl.simple = &simpleType{base: "anyType", maxLength: -1}
	}
	return decl, nil
}

func (c *compiler) resolveType(typeName string, decl *elementDecl) error {
	local := localName(typeName)
	if isBuiltin(typeName) {
		decl.simple = &simpleType{base: local, maxLength: -1}
		return nil
	}
	if _, ok := c.complexTypes[local]; ok {
		ct, err := c.namedComplex(local)
		if err != nil {
			return err
		}
		decl.complex = ct
		return nil
	}
	if _, ok := c.simpleTypes[local]; ok {
		st, err := c.namedSimple(local)
		if err != nil {
			return err
		}
		decl.simple = st
		return nil
	}
	return fmt.Errorf("%w: unknown type %q", ErrSchemaCompile, typeName)
}

func (c *compiler) namedComplex(name string) (*complexType, error) {
	if ct, ok := c.resolvedCT[name]; ok {
		return ct, nil
	}
	// Install before compiling so recursive types terminate.
	ct := &complexType{}
	c.resolvedCT[name] = ct
	compiled, err := c.complex(c.complexTypes[name])
	if err != nil {
		return nil, err
	}
	*ct = *compiled
	return ct, nil
}

func (c *compiler) namedSimple(name string) (*simpleType, error) {
	if st, ok := c.resolvedST[name]; ok {
		return st, nil
	}
	st, err := c.guardedSimple(func() (*simpleType, error) { return c.simple(c.simpleTypes[name]) })
	if err != nil {
		return nil, err
	}
	c.resolvedST[name] = st
	return st, nil
}

func (c *compiler) complex(n *node) (*complexType, error) {
	if mixed, _ := n.attr("mixed"); mixed == "true" {
		return nil, fmt.Errorf("%w: mixed content is not supported", ErrSchemaCompile)
	}
	ct := &complexType{kind: modelEmpty, attributes: make(map[string]*attributeDecl)}
	for i := range n.Children {
		child := &n.Children[i]
		switch {
		case child.is("annotation"):
		case child.is("sequence"), child.is("all"):
			if ct.kind != modelEmpty {
				return nil, fmt.Errorf("%w: complexType has more than one content model", ErrSchemaCompile)
			}
			ct.kind = modelSequence
			if child.is("all") {
				ct.kind = modelAll
			}
			for j := range child.Children {
				grand := &child.Children[j]
				if grand.is("annotation") {
					continue
				}
				if !grand.is("element") {
					return nil, unsupported(grand)
				}
				decl, err := c.element(grand, false)
				if err != nil {
					return nil, err
				}
				if ct.kind == modelAll && (decl.maxOccurs == unbounded || decl.maxOccurs > 1) {
					return nil, fmt.Errorf("%w: element %q in xs:all must have maxOccurs <= 1", ErrSchemaCompile, decl.name)
				}
				ct.children = append(ct.children, decl)
			}
		case child.is("attribute"):
			attr, err := c.attribute(child)
			if err != nil {
				return nil, err
			}
			ct.attributes[attr.name] = attr
		default:
			return nil, unsupported(child)
		}
	}
	return ct, nil
}

func (c *compiler) attribute(n *node) (*attributeDecl, error) {
	name, ok := n.attr("name")
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: xs:attribute requires a name", ErrSchemaCompile)
	}
	use, _ := n.attr("use")
	attr := &attributeDecl{name: name, required: use == "required"}
	if typeName, ok := n.attr("type"); ok {
		decl := &elementDecl{}
		if err := c.resolveType(typeName, decl); err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		if decl.complex != nil {
			return nil, fmt.Errorf("%w: attribute %q cannot have a complex type", ErrSchemaCompile, name)
		}
		attr.simple = decl.simple
	}
	for i := range n.Children {
		child := &n.Children[i]
		switch {
		case child.is("annotation"):
		case child.is("simpleType"):
			st, err := c.simple(child)
			if err != nil {
				return nil, err
			}
			attr.simple = st
		default:
			return nil, unsupported(child)
		}
	}
	if attr.simple == nil {
		attr.simple = &simpleType{base: "string", maxLength: -1}
	}
	return attr, nil
}

func (c *compiler) simple(n *node) (*simpleType, error) {
	var restriction *node
	for i := range n.Children {
		child := &n.Children[i]
		switch {
		case child.is("annotation"):
		case child.is("restriction"):
			restriction = child
		default:
			return nil, unsupported(child)
		}
	}
	if restriction == nil {
		return nil, fmt.Errorf("%w: xs:simpleType requires xs:restriction", ErrSchemaCompile)
	}
	baseName, ok := restriction.attr("base")
	if !ok {
		return nil, fmt.Errorf("%w: xs:restriction requires a base", ErrSchemaCompile)
	}

	st := &simpleType{maxLength: -1}
	switch {
	case isBuiltin(baseName):
		st.base = localName(baseName)
	default:
		parentNode, found := c.simpleTypes[localName(baseName)]
		if !found {
			return nil, fmt.Errorf("%w: unknown restriction base %q", ErrSchemaCompile, baseName)
		}
		parent, err := c.guardedSimple(func() (*simpleType, error) { return c.simple(parentNode) })
		if err != nil {
			return nil, err
		}
		*st = *parent
	}

	for i := range restriction.Children {
		facet := &restriction.Children[i]
		value, _ := facet.attr("value")
		switch {
		case facet.is("annotation"):
		case facet.is("enumeration"):
			st.enumeration = append(st.enumeration, value)
		case facet.is("pattern"):
			re, err := regexp.Compile("^(?:" + value + ")$")
			if err != nil {
				return nil, fmt.Errorf("%w: pattern %q: %w", ErrSchemaCompile, value, err)
			}
			st.patterns = append(st.patterns, re)
		case facet.is("minLength"), facet.is("maxLength"), facet.is("length"):
			v, err := strconv.Atoi(value)
			if err != nil || v < 0 {
				return nil, fmt.Errorf("%w: invalid %s %q", ErrSchemaCompile, facet.XMLName.Local, value)
			}
			switch facet.XMLName.Local {
			case "minLength":
				st.minLength = v
			case "maxLength":
				st.maxLength = v
			default:
				st.minLength, st.maxLength = v, v
			}
		default:
			return nil, unsupported(facet)
		}
	}
	return st, nil
}

func (c *compiler) occurs(el *node, decl *elementDecl) error {
	if v, ok := el.attr("minOccurs"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: invalid minOccurs %q", ErrSchemaCompile, v)
		}
		decl.minOccurs = n
	}
	if v, ok := el.attr("maxOccurs"); ok {
		if v == "unbounded" {
			decl.maxOccurs = unbounded
		} else {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fmt.Errorf("%w: invalid maxOccurs %q", ErrSchemaCompile, v)
			}
			decl.maxOccurs = n
		}
	}
	if decl.maxOccurs != unbounded && decl.maxOccurs < decl.minOccurs {
		return fmt.Errorf("%w: element %q has maxOccurs < minOccurs", ErrSchemaCompile, decl.name)
	}
	return nil
}

// maxDepth bounds ref and restriction chains so cyclic definitions fail to compile.
const maxDepth = 64

func (c *compiler) guarded(fn func() (*elementDecl, error)) (*elementDecl, error) {
	c.depth++
	defer func() { c.depth-- }()
	if c.depth > maxDepth {
		return nil, fmt.Errorf("%w: reference chain too deep or cyclic", ErrSchemaCompile)
	}
	return fn()
}

func (c *compiler) guardedSimple(fn func() (*simpleType, error)) (*simpleType, error) {
	c.depth++
	defer func() { c.depth-- }()
	if c.depth > maxDepth {
		return nil, fmt.Errorf("%w: restriction chain too deep or cyclic", ErrSchemaCompile)
	}
	return fn()
}

func unsupported(n *node) error {
	return fmt.Errorf("%w: unsupported construct <%s>", ErrSchemaCompile, n.XMLName.Local)
}

func localName(qname string) string {
	if i := strings.IndexByte(qname, ':'); i >= 0 {
		return qname[i+1:]
	}
	return qname
}
