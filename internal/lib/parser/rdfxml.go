package parser

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/beevik/etree"
	"github.com/deppfellow/ontology-api/internal/model"
)

const (
	nsRDF      = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	nsRDFS     = "http://www.w3.org/2000/01/rdf-schema#"
	nsOWL      = "http://www.w3.org/2002/07/owl#"
	nsSKOS     = "http://www.w3.org/2004/02/skos/core#"
	nsOBO      = "http://purl.obolibrary.org/obo/"
	nsOBOInOWL = "http://www.geneontology.org/formats/oboInOwl#"
	nsXML      = "http://www.w3.org/XML/1998/namespace"
)

// iaoDefinition is the OBO "definition" annotation property.
const iaoDefinition = nsOBO + "IAO_0000115"

var classTypes = map[string]bool{
	nsOWL + "Class":    true,
	nsRDFS + "Class":   true,
	nsSKOS + "Concept": true,
}

var propertyTypes = map[string]string{
	nsOWL + "ObjectProperty":     model.PropertyObject,
	nsOWL + "DatatypeProperty":   model.PropertyDatatype,
	nsOWL + "AnnotationProperty": model.PropertyAnnotation,
	nsRDF + "Property":           model.PropertyObject,
}

var synonymPredicates = map[string]bool{
	nsSKOS + "altLabel":              true,
	nsOBOInOWL + "hasExactSynonym":   true,
	nsOBOInOWL + "hasRelatedSynonym": true,
	nsOBOInOWL + "hasBroadSynonym":   true,
	nsOBOInOWL + "hasNarrowSynonym":  true,
}

var definitionPredicates = map[string]bool{
	nsSKOS + "definition": true,
	iaoDefinition:         true,
}

// entityDecl matches a general entity declaration of the internal DTD
// subset, such as <!ENTITY obo "http://purl.obolibrary.org/obo/">.
var entityDecl = regexp.MustCompile(`<!ENTITY\s+([A-Za-z_][\w.-]*)\s+(?:"([^"]*)"|'([^']*)')\s*>`)

// declaredEntities collects the entities declared in the DOCTYPE of data.
// OWL tools abbreviate namespace IRIs this way in attribute values.
func declaredEntities(data []byte) map[string]string {
	start := bytes.Index(data, []byte("<!DOCTYPE"))
	if start < 0 {
		return nil
	}
	end := bytes.Index(data[start:], []byte("]>"))
	if end < 0 {
		return nil
	}

	entities := map[string]string{}
	for _, m := range entityDecl.FindAllSubmatch(data[start:start+end], -1) {
		value := m[2]
		if value == nil {
			value = m[3]
		}
		entities[string(m[1])] = string(value)
	}
	return entities
}

// ParseRDFXML reads an RDF/XML document, expanding the entities its DOCTYPE
// declares.
func ParseRDFXML(r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading RDF/XML: %w", err)
	}

	doc := etree.NewDocument()
	doc.ReadSettings.Entity = declaredEntities(data)
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("reading RDF/XML: %w", err)
	}

	root := doc.Root()
	if root == nil || qname(root) != nsRDF+"RDF" {
		return nil, fmt.Errorf("%w: root element is not rdf:RDF", ErrUnsupportedFormat)
	}

	base := attrValue(root, nsXML, "base")
	c := newCollector()

	for _, el := range root.ChildElements() {
		subject := subjectIRI(el, base)
		if subject == "" {
			continue
		}

		for _, kind := range elementTypes(el, base) {
			if classTypes[kind] {
				describeClass(c.class(subject), el, base)
			} else if propertyKind, ok := propertyTypes[kind]; ok {
				describeProperty(c.property(subject, propertyKind), el)
			}
		}
	}

	return c.result(), nil
}

// qname is the namespace URI of el followed by its local name.
func qname(el *etree.Element) string {
	return el.NamespaceURI() + el.Tag
}

func attrValue(el *etree.Element, ns, local string) string {
	for _, a := range el.Attr {
		if a.Key != local {
			continue
		}
		if a.NamespaceURI() == ns || (ns == nsXML && a.Space == "xml") {
			return a.Value
		}
	}
	return ""
}

func resolve(base, ref string) string {
	if base == "" {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

func subjectIRI(el *etree.Element, base string) string {
	if about := attrValue(el, nsRDF, "about"); about != "" {
		return resolve(base, about)
	}
	if id := attrValue(el, nsRDF, "ID"); id != "" {
		return strings.TrimSuffix(base, "#") + "#" + id
	}
	return ""
}

// elementTypes lists the rdf:type of a node: its typed element name (unless
// rdf:Description) plus every rdf:type child.
func elementTypes(el *etree.Element, base string) []string {
	var types []string
	if name := qname(el); name != nsRDF+"Description" {
		types = append(types, name)
	}
	for _, child := range el.ChildElements() {
		if qname(child) == nsRDF+"type" {
			if resource := attrValue(child, nsRDF, "resource"); resource != "" {
				types = append(types, resolve(base, resource))
			}
		}
	}
	return types
}

func literal(el *etree.Element) string {
	return strings.TrimSpace(el.Text())
}

// englishOrPlain reports whether a literal should win the label slot.
func englishOrPlain(el *etree.Element) bool {
	lang := strings.ToLower(attrValue(el, nsXML, "lang"))
	return lang == "" || lang == "en" || strings.HasPrefix(lang, "en-")
}

func describeClass(cls *model.Class, el *etree.Element, base string) {
	var rdfsLabel string

	for _, child := range el.ChildElements() {
		predicate := qname(child)
		value := literal(child)

		switch {
		case predicate == nsSKOS+"prefLabel":
			if cls.PrefLabel == "" || englishOrPlain(child) {
				cls.PrefLabel = value
			}
		case predicate == nsRDFS+"label":
			if rdfsLabel == "" || englishOrPlain(child) {
				rdfsLabel = value
			}
		case synonymPredicates[predicate]:
			cls.Synonyms = appendUnique(cls.Synonyms, value)
		case definitionPredicates[predicate]:
			cls.Definition = appendUnique(cls.Definition, value)
		case predicate == nsOWL+"deprecated":
			cls.Obsolete = strings.EqualFold(value, "true")
		}
	}

	if cls.PrefLabel == "" {
		cls.PrefLabel = rdfsLabel
	} else if rdfsLabel != "" && rdfsLabel != cls.PrefLabel {
		cls.Synonyms = appendUnique(cls.Synonyms, rdfsLabel)
	}
}

func describeProperty(p *model.Property, el *etree.Element) {
	for _, child := range el.ChildElements() {
		predicate := qname(child)
		value := literal(child)

		switch {
		case predicate == nsRDFS+"label" || predicate == nsSKOS+"prefLabel":
			if p.Label == "" || englishOrPlain(child) {
				p.Label = value
			}
		case definitionPredicates[predicate], predicate == nsRDFS+"comment":
			p.Definition = appendUnique(p.Definition, value)
		}
	}
}
