// Package xmltree parses the embedded XML documents the gateway nests
// inside message content fields into a dynamic tree: attributes merge
// into the element's fields, repeated sibling tags become lists, and
// leaf text folds into plain string values.
package xmltree

import (
	"fmt"
	"strings"
	"sync"

	"github.com/clbanning/mxj/v2"
)

// textKey holds element text when an element also carries attributes
// or children, so the text cannot fold into a plain string.
const textKey = "#text"

// Tree is one level of a parsed document: tag -> string | Tree | list.
type Tree map[string]any

var configure sync.Once

// Parse decodes an XML document into a Tree. The XML declaration, if
// present, is handled by the decoder and needs no stripping.
func Parse(doc string) (Tree, error) {
	configure.Do(func() {
		// Merge attributes as plain fields instead of "-name" keys.
		mxj.SetAttrPrefix("")
	})
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return nil, fmt.Errorf("empty document")
	}
	m, err := mxj.NewMapXml([]byte(doc))
	if err != nil {
		return nil, fmt.Errorf("parse xml: %w", err)
	}
	return Tree(m), nil
}

// Child descends through nested elements, returning nil when any step
// is missing or not an element.
func (t Tree) Child(path ...string) Tree {
	cur := t
	for _, key := range path {
		if cur == nil {
			return nil
		}
		cur = asTree(cur[key])
	}
	return cur
}

// Text descends through nested elements and returns the text value at
// the end of the path, or "" when absent. A mixed element's text is
// read from its fold key.
func (t Tree) Text(path ...string) string {
	if len(path) == 0 {
		return ""
	}
	parent := t.Child(path[:len(path)-1]...)
	if parent == nil {
		return ""
	}
	switch v := parent[path[len(path)-1]].(type) {
	case string:
		return v
	case map[string]any:
		if s, ok := v[textKey].(string); ok {
			return s
		}
	case Tree:
		if s, ok := v[textKey].(string); ok {
			return s
		}
	}
	return ""
}

// List returns the repeated element at the end of the path as a slice
// of trees. A single (non-repeated) element yields a one-entry slice.
func (t Tree) List(path ...string) []Tree {
	if len(path) == 0 {
		return nil
	}
	parent := t.Child(path[:len(path)-1]...)
	if parent == nil {
		return nil
	}
	switch v := parent[path[len(path)-1]].(type) {
	case []any:
		out := make([]Tree, 0, len(v))
		for _, item := range v {
			if sub := asTree(item); sub != nil {
				out = append(out, sub)
			}
		}
		return out
	default:
		if sub := asTree(v); sub != nil {
			return []Tree{sub}
		}
	}
	return nil
}

func asTree(v any) Tree {
	switch m := v.(type) {
	case Tree:
		return m
	case map[string]any:
		return Tree(m)
	default:
		return nil
	}
}
