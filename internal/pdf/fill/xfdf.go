package fill

import (
	"bytes"
	"encoding/xml"
	"sort"
)

const xfdfNamespace = "http://ns.adobe.com/xfdf/"

type xfdfDocument struct {
	XMLName xml.Name    `xml:"xfdf"`
	XMLNS   string      `xml:"xmlns,attr"`
	Space   string      `xml:"xml:space,attr"`
	Fields  []xfdfField `xml:"fields>field"`
}

type xfdfField struct {
	Name   string   `xml:"name,attr"`
	Values []string `xml:"value"`
}

// XFDF encodes values as an XFDF document, fields sorted by name. Multi-valued
// fields get one <value> element per entry.
func XFDF(values Values) ([]byte, error) {
	doc := xfdfDocument{
		XMLNS: xfdfNamespace,
		Space: "preserve",
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v := values[name]
		if len(v) == 0 {
			v = Value{""}
		}
		doc.Fields = append(doc.Fields, xfdfField{Name: name, Values: v})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
