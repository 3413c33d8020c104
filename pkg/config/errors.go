package config

import "fmt"

// SchemaError reports a structural problem with a run document: a missing
// required key, an unknown key, or a scalar of the wrong type.
type SchemaError struct {
	Path   string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("schema error: %s", e.Reason)
	}
	return fmt.Sprintf("schema error at %s: %s", e.Path, e.Reason)
}

// ReferenceError reports an interpolation that cannot be resolved, either
// because the target path does not exist or because resolution loops back
// on itself.
type ReferenceError struct {
	Path   string
	Target string
	Reason string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("reference error at %s: ${%s}: %s", e.Path, e.Target, e.Reason)
}

// RangeError reports a well-typed value outside its documented domain.
type RangeError struct {
	Path   string
	Value  interface{}
	Domain string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("range error at %s: got %v, want %s", e.Path, e.Value, e.Domain)
}
