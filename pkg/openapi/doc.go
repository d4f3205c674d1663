// Package openapi loads API description documents and compiles them into
// callable tool definitions.
//
// Invariants:
// - Every valid (path, verb) operation yields exactly one tool.
// - A malformed operation is skipped and logged, never fatal to the catalog.
// - Schema synthesis always produces a validator; unrecognized fragments
//   degrade to accept-anything.
//
// Usage:
//
//	doc, err := openapi.LoadDocument("petstore.yaml")
//	if err != nil {
//		return err
//	}
//	tools := openapi.Compile(doc, openapi.CompileOptions{})
package openapi
