// Package extract finds the sub-asset references of an SVG page and
// rewrites them to local file names.
//
// Rewriting splices new values into the original bytes instead of
// re-encoding the document, so everything except the href values is
// persisted exactly as the platform served it.
package extract

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Reference is one href attribute of an element that embeds a resource.
type Reference struct {
	Element string // local element name, e.g. "image"
	Href    string // decoded attribute value
	start   int    // byte offsets of the raw value inside the document
	end     int
}

// embeddingElements are the SVG elements whose href loads a resource.
var embeddingElements = map[string]bool{
	"image": true,
}

// hrefAttr matches href and xlink:href attributes inside a raw start tag.
var hrefAttr = regexp.MustCompile(`(?:^|\s)((?:xlink:)?href)\s*=\s*(?:"([^"]*)"|'([^']*)')`)

// ErrNotSVG is returned when the document root is not an svg element.
var ErrNotSVG = errors.New("document root is not <svg>")

// References returns the embedding references of svg in document order.
func References(svg []byte) ([]Reference, error) {
	dec := xml.NewDecoder(bytes.NewReader(svg))
	dec.Strict = false

	var refs []Reference
	sawRoot := false
	for {
		startOff := int(dec.InputOffset())
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing svg: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !sawRoot {
			if se.Name.Local != "svg" {
				return nil, ErrNotSVG
			}
			sawRoot = true
		}
		if !embeddingElements[se.Name.Local] {
			continue
		}
		endOff := int(dec.InputOffset())
		ref, found := locateHref(svg, startOff, endOff)
		if !found {
			continue
		}
		ref.Element = se.Name.Local
		ref.Href = hrefValue(se)
		refs = append(refs, ref)
	}
	if !sawRoot {
		return nil, ErrNotSVG
	}
	return refs, nil
}

// locateHref finds the href value inside the raw start tag svg[from:to].
// xlink:href wins over a plain href when both are present.
func locateHref(svg []byte, from, to int) (Reference, bool) {
	raw := svg[from:to]
	matches := hrefAttr.FindAllSubmatchIndex(raw, -1)
	best := -1
	for i, m := range matches {
		name := string(raw[m[2]:m[3]])
		if best == -1 || name == "xlink:href" {
			best = i
		}
	}
	if best == -1 {
		return Reference{}, false
	}
	m := matches[best]
	vs, ve := m[4], m[5] // double-quoted value
	if vs < 0 {
		vs, ve = m[6], m[7] // single-quoted value
	}
	return Reference{start: from + vs, end: from + ve}, true
}

func hrefValue(se xml.StartElement) string {
	var plain string
	for _, a := range se.Attr {
		if a.Name.Local != "href" {
			continue
		}
		if a.Name.Space != "" {
			return a.Value
		}
		plain = a.Value
	}
	return plain
}

// IsEmbedded reports whether href carries its data inline and needs no
// download.
func IsEmbedded(href string) bool {
	h := strings.TrimSpace(href)
	return h == "" || strings.HasPrefix(h, "data:") || strings.HasPrefix(h, "#")
}

// IsRemote reports whether href points outside the working directory.
func IsRemote(href string) bool {
	h := strings.ToLower(strings.TrimSpace(href))
	return strings.Contains(h, "://") || strings.HasPrefix(h, "//")
}

// Rewrite returns a copy of svg where the href of refs[i] reads names[i].
// Entries with an empty name are left unchanged. refs must come from
// References on the same bytes.
func Rewrite(svg []byte, refs []Reference, names []string) ([]byte, error) {
	if len(refs) != len(names) {
		return nil, fmt.Errorf("rewrite: %d references but %d names", len(refs), len(names))
	}
	var out bytes.Buffer
	out.Grow(len(svg))
	last := 0
	for i, ref := range refs {
		if names[i] == "" {
			continue
		}
		if ref.start < last || ref.end > len(svg) {
			return nil, fmt.Errorf("rewrite: reference %d out of order", i)
		}
		out.Write(svg[last:ref.start])
		xml.EscapeText(&out, []byte(names[i]))
		last = ref.end
	}
	out.Write(svg[last:])
	return out.Bytes(), nil
}

// CheckLocalized verifies that a persisted page references only local
// files that exist. exists is called with each local href.
func CheckLocalized(svg []byte, exists func(name string) bool) error {
	refs, err := References(svg)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if IsEmbedded(ref.Href) {
			continue
		}
		if IsRemote(ref.Href) {
			return fmt.Errorf("reference %q is still remote", ref.Href)
		}
		if !exists(ref.Href) {
			return fmt.Errorf("referenced file %q is missing", ref.Href)
		}
	}
	return nil
}
