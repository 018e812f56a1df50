package parser

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/deppfellow/ontology-api/internal/model"
)

const oboPURL = "http://purl.obolibrary.org/obo/"

type oboStanza struct {
	kind string
	tags map[string][]string
}

// ParseOBO reads an OBO 1.2/1.4 flat file. [Term] stanzas become classes and
// [Typedef] stanzas become object properties.
func ParseOBO(r io.Reader) (*Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var (
		ontology string
		current  *oboStanza
		stanzas  []*oboStanza
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "!") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			current = &oboStanza{kind: line[1 : len(line)-1], tags: map[string][]string{}}
			stanzas = append(stanzas, current)
			continue
		}

		tag, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		tag = strings.TrimSpace(tag)
		value = stripTrailingModifiers(strings.TrimSpace(value))

		if current == nil {
			if tag == "ontology" {
				ontology = value
			}
			continue
		}
		current.tags[tag] = append(current.tags[tag], value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading OBO: %w", err)
	}

	c := newCollector()
	for _, st := range stanzas {
		ids := st.tags["id"]
		if len(ids) == 0 {
			continue
		}

		switch st.kind {
		case "Term":
			cls := c.class(oboIRI(ids[0], ontology))
			cls.PrefLabel = first(st.tags["name"])
			for _, def := range st.tags["def"] {
				cls.Definition = appendUnique(cls.Definition, quoted(def))
			}
			for _, syn := range st.tags["synonym"] {
				cls.Synonyms = appendUnique(cls.Synonyms, quoted(syn))
			}
			cls.Obsolete = first(st.tags["is_obsolete"]) == "true"

		case "Typedef":
			p := c.property(oboIRI(ids[0], ontology), model.PropertyObject)
			p.Label = first(st.tags["name"])
			for _, def := range st.tags["def"] {
				p.Definition = appendUnique(p.Definition, quoted(def))
			}
		}
	}

	return c.result(), nil
}

// oboIRI expands "GO:0000001" to the OBO PURL. Unprefixed ids ("part_of")
// are scoped to the ontology.
func oboIRI(id, ontology string) string {
	if strings.HasPrefix(id, "http://") || strings.HasPrefix(id, "https://") {
		return id
	}
	if prefix, local, ok := strings.Cut(id, ":"); ok {
		return oboPURL + prefix + "_" + local
	}
	if ontology == "" {
		return oboPURL + id
	}
	return oboPURL + ontology + "#" + id
}

// quoted returns the text between the first pair of double quotes, honouring
// backslash escapes. Values without quotes are returned as is.
func quoted(value string) string {
	start := strings.IndexByte(value, '"')
	if start < 0 {
		return value
	}

	var b strings.Builder
	escaped := false
	for _, r := range value[start+1:] {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			return b.String()
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stripTrailingModifiers drops a trailing "{...}" modifier block and "! comment".
func stripTrailingModifiers(value string) string {
	if !strings.HasPrefix(value, "\"") {
		if i := strings.Index(value, " !"); i >= 0 {
			value = value[:i]
		}
	}
	if strings.HasSuffix(value, "}") {
		if i := strings.LastIndex(value, " {"); i >= 0 {
			value = value[:i]
		}
	}
	return strings.TrimSpace(value)
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
