package xmlutil

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/clbanning/mxj/v2"
	"golang.org/x/text/encoding/charmap"
)

// Map is the generic nested representation of one parsed XML document.
// Element children are nested Maps or []interface{} of Maps, attributes
// are keyed with a "-" prefix and mixed content under "#text" (mxj
// conventions).
type Map = map[string]interface{}

func init() {
	// Uploads from legacy issuers arrive as ISO-8859-1 / Windows-1252
	mxj.XmlCharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		switch strings.ToLower(charset) {
		case "iso-8859-1", "iso8859-1", "latin1", "latin-1":
			return charmap.ISO8859_1.NewDecoder().Reader(input), nil
		case "windows-1252", "cp1252":
			return charmap.Windows1252.NewDecoder().Reader(input), nil
		case "utf-8", "utf8", "":
			return input, nil
		default:
			return nil, fmt.Errorf("unsupported charset %q", charset)
		}
	}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Normalize prepares raw upload bytes for parsing: strips a UTF-8 BOM and
// transcodes Latin-1 payloads that carry no XML encoding declaration.
func Normalize(data []byte) []byte {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data
	}
	if bytes.Contains(data, []byte("iso-8859-1")) || bytes.Contains(data, []byte("ISO-8859-1")) {
		// Declared encoding, the charset reader handles it
		return data
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return data
	}
	return decoded
}

// Parse decodes one XML document into a generic Map. All leaf values stay
// strings; coercion is the caller's concern.
func Parse(data []byte) (Map, error) {
	m, err := mxj.NewMapXml(Normalize(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	return Map(m), nil
}

// Root returns the single top-level element name (namespace stripped) and
// its content map.
func Root(m Map) (string, Map) {
	for k, v := range m {
		if strings.HasPrefix(k, "-") || k == "#text" {
			continue
		}
		return localName(k), asMap(v)
	}
	return "", nil
}

// localName strips an attribute marker and any namespace prefix from a key
func localName(k string) string {
	k = strings.TrimPrefix(k, "-")
	if i := strings.LastIndex(k, ":"); i >= 0 {
		k = k[i+1:]
	}
	return k
}

// lookup finds a child by local name, tolerating namespace prefixes and
// the attribute marker
func lookup(m Map, name string) (interface{}, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	for k, v := range m {
		if localName(k) == name {
			return v, true
		}
	}
	return nil, false
}

func asMap(v interface{}) Map {
	switch t := v.(type) {
	case map[string]interface{}:
		return t
	case []interface{}:
		if len(t) > 0 {
			return asMap(t[0])
		}
	}
	return nil
}

// ChildMap walks path and returns the nested map at its end, or nil when
// any intermediate level is missing. A repeated element yields its first
// occurrence.
func ChildMap(m Map, path ...string) Map {
	cur := m
	for _, name := range path {
		if cur == nil {
			return nil
		}
		v, ok := lookup(cur, name)
		if !ok {
			return nil
		}
		cur = asMap(v)
	}
	return cur
}

// ChildList walks path and returns all maps at its end. A single element
// yields a one-entry slice; a missing path yields nil.
func ChildList(m Map, path ...string) []Map {
	if len(path) == 0 {
		return nil
	}
	parent := m
	if len(path) > 1 {
		parent = ChildMap(m, path[:len(path)-1]...)
	}
	if parent == nil {
		return nil
	}
	v, ok := lookup(parent, path[len(path)-1])
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case []interface{}:
		out := make([]Map, 0, len(t))
		for _, e := range t {
			if em := asMap(e); em != nil {
				out = append(out, em)
			}
		}
		return out
	case map[string]interface{}:
		return []Map{t}
	}
	return nil
}

// Text walks path and returns the scalar value at its end as a string.
// Handles both element text and attribute encodings; returns "" when the
// path is missing.
func Text(m Map, path ...string) string {
	if len(path) == 0 {
		return ""
	}
	parent := m
	if len(path) > 1 {
		parent = ChildMap(m, path[:len(path)-1]...)
	}
	if parent == nil {
		return ""
	}
	v, ok := lookup(parent, path[len(path)-1])
	if !ok {
		return ""
	}
	return scalar(v)
}

// Attr returns the named attribute of m, or ""
func Attr(m Map, name string) string {
	if m == nil {
		return ""
	}
	if v, ok := m["-"+name]; ok {
		return scalar(v)
	}
	for k, v := range m {
		if strings.HasPrefix(k, "-") && localName(k) == name {
			return scalar(v)
		}
	}
	return ""
}

// Has reports whether path resolves to anything at all
func Has(m Map, path ...string) bool {
	if len(path) == 0 {
		return false
	}
	parent := m
	if len(path) > 1 {
		parent = ChildMap(m, path[:len(path)-1]...)
	}
	if parent == nil {
		return false
	}
	_, ok := lookup(parent, path[len(path)-1])
	return ok
}

func scalar(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]interface{}:
		if txt, ok := t["#text"]; ok {
			return scalar(txt)
		}
		return ""
	case []interface{}:
		if len(t) > 0 {
			return scalar(t[0])
		}
		return ""
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}
