package openapi

import (
	"strconv"
	"strings"
)

// ResolveRef walks a document-local JSON pointer (e.g. "#/components/schemas/Pet")
// through the document tree. It never mutates the tree. External or unresolved
// pointers return (nil, false).
func ResolveRef(root map[string]interface{}, ref string) (interface{}, bool) {
	if !strings.HasPrefix(ref, "#/") {
		return nil, false
	}

	var node interface{} = root
	for _, token := range strings.Split(ref[2:], "/") {
		token = strings.ReplaceAll(token, "~1", "/")
		token = strings.ReplaceAll(token, "~0", "~")

		switch typed := node.(type) {
		case map[string]interface{}:
			next, ok := typed[token]
			if !ok {
				return nil, false
			}
			node = next
		case []interface{}:
			idx, err := strconv.Atoi(token)
			if err != nil || idx < 0 || idx >= len(typed) {
				return nil, false
			}
			node = typed[idx]
		default:
			return nil, false
		}
	}
	return node, true
}

// derefFragment resolves a fragment that may be a {"$ref": "#/..."} wrapper.
// Unresolved refs yield nil so callers drop them instead of failing.
func derefFragment(root map[string]interface{}, fragment interface{}) interface{} {
	m, ok := fragment.(map[string]interface{})
	if !ok {
		return fragment
	}
	ref, ok := m["$ref"].(string)
	if !ok {
		return fragment
	}
	resolved, ok := ResolveRef(root, ref)
	if !ok {
		return nil
	}
	return resolved
}
