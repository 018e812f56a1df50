// Package parser extracts classes and properties from ontology source files.
//
// RDF/XML (OWL and SKOS) is read with etree; OBO flat files are read stanza
// by stanza. Only named resources are extracted; anonymous class
// expressions, imports and restrictions are ignored.
package parser

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/deppfellow/ontology-api/internal/model"
)

// ErrUnsupportedFormat is returned when the content is neither RDF/XML nor OBO.
var ErrUnsupportedFormat = errors.New("unsupported ontology serialization")

// Result is what a submission yields once parsed.
type Result struct {
	Classes    []model.Class
	Properties []model.Property
}

// Parse picks the reader from the declared format, falling back to sniffing
// the first bytes of the content.
func Parse(format string, r io.Reader) (*Result, error) {
	if format == model.FormatOBO {
		return ParseOBO(r)
	}

	br := bufio.NewReader(r)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("reading ontology: %w", err)
	}

	head = bytes.TrimLeft(bytes.TrimPrefix(head, []byte("\xef\xbb\xbf")), " \t\r\n")
	switch {
	case bytes.HasPrefix(head, []byte("<")):
		return ParseRDFXML(br)
	case bytes.HasPrefix(head, []byte("format-version:")), bytes.Contains(head, []byte("[Term]")):
		return ParseOBO(br)
	default:
		return nil, ErrUnsupportedFormat
	}
}

// collector merges repeated descriptions of the same resource.
type collector struct {
	classes    map[string]*model.Class
	properties map[string]*model.Property
}

func newCollector() *collector {
	return &collector{
		classes:    map[string]*model.Class{},
		properties: map[string]*model.Property{},
	}
}

func (c *collector) class(id string) *model.Class {
	cls, ok := c.classes[id]
	if !ok {
		cls = &model.Class{ID: id, Synonyms: []string{}, Definition: []string{}}
		c.classes[id] = cls
	}
	return cls
}

func (c *collector) property(id, kind string) *model.Property {
	p, ok := c.properties[id]
	if !ok {
		p = &model.Property{ID: id, Type: kind, Definition: []string{}}
		c.properties[id] = p
	}
	return p
}

// result returns classes and properties sorted by URI.
func (c *collector) result() *Result {
	res := &Result{
		Classes:    make([]model.Class, 0, len(c.classes)),
		Properties: make([]model.Property, 0, len(c.properties)),
	}
	for _, cls := range c.classes {
		res.Classes = append(res.Classes, *cls)
	}
	for _, p := range c.properties {
		res.Properties = append(res.Properties, *p)
	}
	sort.Slice(res.Classes, func(i, j int) bool { return res.Classes[i].ID < res.Classes[j].ID })
	sort.Slice(res.Properties, func(i, j int) bool { return res.Properties[i].ID < res.Properties[j].ID })
	return res
}

func appendUnique(values []string, v string) []string {
	if v == "" {
		return values
	}
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}
