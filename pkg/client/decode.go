package client

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
)

// Record holds the flat string attributes of one feed element or row.
type Record map[string]string

// xmlNode is a generic XML element: its attributes and child elements.
// Feed documents are only ever read by element path, so no schema types
// are needed.
type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []xmlNode  `xml:",any"`
}

func parseXML(data []byte) (*xmlNode, error) {
	var root xmlNode
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &root, nil
}

// find returns the first child element named name, or nil.
func (n *xmlNode) find(name string) *xmlNode {
	if n == nil {
		return nil
	}
	for i := range n.Children {
		if n.Children[i].XMLName.Local == name {
			return &n.Children[i]
		}
	}
	return nil
}

// findPath walks child elements by name.
func (n *xmlNode) findPath(names ...string) *xmlNode {
	cur := n
	for _, name := range names {
		cur = cur.find(name)
	}
	return cur
}

func (n *xmlNode) findAll(name string) []*xmlNode {
	if n == nil {
		return nil
	}
	var out []*xmlNode
	for i := range n.Children {
		if n.Children[i].XMLName.Local == name {
			out = append(out, &n.Children[i])
		}
	}
	return out
}

func (n *xmlNode) record() Record {
	rec := make(Record, len(n.Attrs))
	for _, a := range n.Attrs {
		rec[a.Name.Local] = a.Value
	}
	return rec
}

// queryRows decodes the rows of a lookup-service JSON document:
//
//	{"<root>": {"queryResults": {"totalSize": "2", "row": [...]}}}
//
// The service sends a single object instead of an array when there is
// exactly one row, and omits row when there are none.
func queryRows(data []byte, root string) ([]Record, error) {
	var doc map[string]struct {
		QueryResults *struct {
			Row json.RawMessage `json:"row"`
		} `json:"queryResults"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	body, ok := doc[root]
	if !ok || body.QueryResults == nil {
		return nil, fmt.Errorf("%w: missing %s.queryResults", ErrMalformedPayload, root)
	}

	return decodeRows(body.QueryResults.Row)
}

// decodeRows decodes a queryResults row value: an array of objects, a
// single object, or nothing.
func decodeRows(value json.RawMessage) ([]Record, error) {
	raw := bytes.TrimSpace(value)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var rows []map[string]json.RawMessage
	if raw[0] == '{' {
		var row map[string]json.RawMessage
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		rows = append(rows, row)
	} else if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, flatten(row))
	}
	return out, nil
}

// flatten converts JSON values to strings. Strings are unquoted; any other
// value keeps its JSON text.
func flatten(row map[string]json.RawMessage) Record {
	rec := make(Record, len(row))
	for k, v := range row {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			rec[k] = s
			continue
		}
		rec[k] = string(v)
	}
	return rec
}
