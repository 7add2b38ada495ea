package document

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ryohey/warp/internal/ir"
)

// ParseChunk decodes one chunk's body into a Record.
//
// The body must be a YAML mapping with exactly one key, the record's type
// name, whose value is the attribute mapping. Scalars become ir.IRString
// with their source text; empty and null scalars become ir.IRNull; a mapping
// whose only key is "fileID" becomes ir.IRRef.
func ParseChunk(c Chunk) (ir.Record, error) {
	fail := func(msg string, err error) (ir.Record, error) {
		return ir.Record{}, &Error{Code: ErrCodeUnparsableRecord, Line: c.Line, StableID: c.StableID, Message: msg, Err: err}
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(c.Body), &doc); err != nil {
		return fail("invalid YAML", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return fail("empty record body", nil)
	}
	top := doc.Content[0]
	if top.Kind != yaml.MappingNode || len(top.Content) != 2 {
		return fail("record body must be a mapping with a single type key", nil)
	}

	typeName := top.Content[0].Value
	rec := ir.Record{
		Kind:       c.Kind,
		StableID:   c.StableID,
		TypeName:   typeName,
		Attributes: ir.IRObject{},
		Line:       c.Line,
	}

	attrs := top.Content[1]
	switch {
	case attrs.Kind == yaml.ScalarNode && isNull(attrs):
		return rec, nil
	case attrs.Kind != yaml.MappingNode:
		return fail(fmt.Sprintf("attributes of %s must be a mapping", typeName), nil)
	}

	for i := 0; i+1 < len(attrs.Content); i += 2 {
		key := attrs.Content[i].Value
		val, err := convert(attrs.Content[i+1])
		if err != nil {
			return fail(fmt.Sprintf("attribute %s", key), err)
		}
		if _, dup := rec.Attributes[key]; dup {
			return fail(fmt.Sprintf("duplicate attribute %s", key), nil)
		}
		rec.Attributes[key] = val
		rec.Order = append(rec.Order, key)
	}
	return rec, nil
}

// Parse splits and parses a whole document.
func Parse(text string) ([]ir.Record, error) {
	chunks, err := Split(text)
	if err != nil {
		return nil, err
	}
	records := make([]ir.Record, 0, len(chunks))
	for _, c := range chunks {
		rec, err := ParseChunk(c)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// ParseFile reads and parses a document from disk.
func ParseFile(path string) ([]ir.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	records, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

func convert(n *yaml.Node) (ir.IRValue, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		if isNull(n) {
			return ir.IRNull{}, nil
		}
		return ir.IRString(n.Value), nil

	case yaml.MappingNode:
		if len(n.Content) == 2 && n.Content[0].Value == ir.RefKey &&
			n.Content[1].Kind == yaml.ScalarNode && !isNull(n.Content[1]) {
			return ir.IRRef(n.Content[1].Value), nil
		}
		obj := make(ir.IRObject, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			val, err := convert(n.Content[i+1])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", n.Content[i].Value, err)
			}
			obj[n.Content[i].Value] = val
		}
		return obj, nil

	case yaml.SequenceNode:
		arr := make(ir.IRArray, len(n.Content))
		for i, elem := range n.Content {
			val, err := convert(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = val
		}
		return arr, nil

	case yaml.AliasNode:
		return nil, fmt.Errorf("aliases are not supported")

	default:
		return nil, fmt.Errorf("unexpected YAML node kind %d", n.Kind)
	}
}

func isNull(n *yaml.Node) bool {
	return n.ShortTag() == "!!null"
}
