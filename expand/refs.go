package expand

import (
	"maps"
	"slices"
	"strings"

	"github.com/ohler55/ojg/gen"
)

// ExpandedKey is the field a resolved reference carries its fetched payload under.
const ExpandedKey = "__expanded__"

// URLOf returns the url of a reference and whether n is one. Any object
// with a string "url" field is a reference, whatever else it holds.
func URLOf(n gen.Node) (string, bool) {
	obj, ok := n.(gen.Object)
	if !ok {
		return "", false
	}
	u, ok := obj["url"].(gen.String)
	if !ok {
		return "", false
	}
	return string(u), true
}

// IsReference reports whether n is an object with a string url field.
func IsReference(n gen.Node) bool {
	_, ok := URLOf(n)
	return ok
}

// Expanded returns the payload attached to a reference, if any.
func Expanded(n gen.Node) (gen.Node, bool) {
	obj, ok := n.(gen.Object)
	if !ok {
		return nil, false
	}
	v, ok := obj[ExpandedKey]
	return v, ok
}

// ImmediateRefs returns the references that are direct children of n: field
// values of an object, and references one level inside array-valued fields.
// Nested objects that are not references themselves are not searched.
func ImmediateRefs(n gen.Node) []gen.Object {
	obj, ok := n.(gen.Object)
	if !ok {
		return nil
	}
	var out []gen.Object
	// Keys are walked in sorted order so frontiers are reproducible.
	for _, k := range slices.Sorted(maps.Keys(obj)) {
		if k == ExpandedKey {
			continue
		}
		switch v := obj[k].(type) {
		case gen.Object:
			if IsReference(v) {
				out = append(out, v)
			}
		case gen.Array:
			for _, item := range v {
				if ref, ok := item.(gen.Object); ok && IsReference(ref) {
					out = append(out, ref)
				}
			}
		}
	}
	return out
}

// AtPath evaluates a dot-separated path against root. Arrays met along the way
// are flattened, so "moves.move" selects root.moves[*].move. Only objects are
// returned, and the results alias root.
func AtPath(root gen.Node, path string) []gen.Object {
	if path == "" {
		return nil
	}
	frontier := []gen.Node{root}
	for _, seg := range strings.Split(path, ".") {
		var next []gen.Node
		for _, n := range frontier {
			switch v := n.(type) {
			case gen.Array:
				for _, item := range v {
					if obj, ok := item.(gen.Object); ok {
						if child, ok := obj[seg]; ok {
							next = append(next, child)
						}
					}
				}
			case gen.Object:
				if child, ok := v[seg]; ok {
					next = append(next, child)
				}
			}
		}
		frontier = flatten(next)
	}

	var out []gen.Object
	for _, n := range frontier {
		if obj, ok := n.(gen.Object); ok {
			out = append(out, obj)
		}
	}
	return out
}

func flatten(nodes []gen.Node) []gen.Node {
	out := make([]gen.Node, 0, len(nodes))
	for _, n := range nodes {
		if arr, ok := n.(gen.Array); ok {
			out = append(out, arr...)
			continue
		}
		out = append(out, n)
	}
	return out
}

// seed computes the initial frontier for root.
func seed(root gen.Node, paths []string) []gen.Object {
	if len(paths) == 0 {
		return ImmediateRefs(root)
	}
	var out []gen.Object
	for _, p := range paths {
		for _, obj := range AtPath(root, p) {
			if IsReference(obj) {
				out = append(out, obj)
			}
		}
	}
	return out
}
