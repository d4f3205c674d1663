package openapi

// maxSchemaDepth bounds fragment recursion so cyclic or pathological
// description trees cannot wedge compilation.
const maxSchemaDepth = 32

// acceptAnything is the degenerate validator used wherever a fragment
// cannot be interpreted. Synthesis must never fail a compilation.
func acceptAnything() map[string]interface{} {
	return map[string]interface{}{}
}

// SynthesizeFragment converts one description schema fragment into a JSON
// Schema map suitable for runtime validation. Unknown shapes degrade to
// accept-anything.
func SynthesizeFragment(root map[string]interface{}, fragment interface{}) map[string]interface{} {
	return synthesize(root, fragment, 0)
}

func synthesize(root map[string]interface{}, fragment interface{}, depth int) map[string]interface{} {
	if depth >= maxSchemaDepth {
		return acceptAnything()
	}

	fragment = derefFragment(root, fragment)
	m, ok := fragment.(map[string]interface{})
	if !ok {
		return acceptAnything()
	}

	typ, _ := m["type"].(string)
	out := map[string]interface{}{}
	if desc, ok := m["description"].(string); ok && desc != "" {
		out["description"] = desc
	}

	switch typ {
	case "string":
		out["type"] = "string"
	case "integer":
		out["type"] = "integer"
	case "number":
		out["type"] = "number"
	case "boolean":
		out["type"] = "boolean"
	case "array":
		out["type"] = "array"
		out["items"] = synthesize(root, m["items"], depth+1)
	case "object":
		out["type"] = "object"
		props := map[string]interface{}{}
		declared, _ := m["properties"].(map[string]interface{})
		for name, prop := range declared {
			props[name] = synthesize(root, prop, depth+1)
		}
		out["properties"] = props

		if required := requiredNames(m["required"], declared); len(required) > 0 {
			out["required"] = required
		}

		switch extra := m["additionalProperties"].(type) {
		case bool:
			out["additionalProperties"] = extra
		case map[string]interface{}:
			out["additionalProperties"] = synthesize(root, extra, depth+1)
		}
	default:
		return acceptAnything()
	}
	return out
}

// requiredNames filters a raw required list down to names the fragment
// actually declares, preserving declaration intent without inventing fields.
func requiredNames(raw interface{}, declared map[string]interface{}) []string {
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	var names []string
	for _, item := range list {
		name, ok := item.(string)
		if !ok {
			continue
		}
		if declared != nil {
			if _, exists := declared[name]; !exists {
				continue
			}
		}
		names = append(names, name)
	}
	return names
}

// ToolSchema builds the whole-tool input schema: one property per parameter,
// required iff the parameter is required, plus an accept-anything "body"
// property when the tool declares a request body. Unknown keys are always
// tolerated at the top level (they feed the executor's leftover-argument
// body fallback); declaring a body marks that explicitly so callers may pass
// body fields either nested under "body" or flattened alongside parameters.
func ToolSchema(root map[string]interface{}, tool *Tool) map[string]interface{} {
	properties := map[string]interface{}{}
	var required []string

	for _, param := range tool.Parameters {
		properties[param.Name] = SynthesizeFragment(root, param.Schema)
		if param.Required {
			required = append(required, param.Name)
		}
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if tool.RequestBody != nil {
		properties["body"] = acceptAnything()
		schema["additionalProperties"] = true
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
