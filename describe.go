package atom

import (
	"fmt"
	"sort"
)

// FieldDescriptor describes a leaf path and the Go type found there.
type FieldDescriptor struct {
	Path string `json:"path" yaml:"path"`
	Type string `json:"type" yaml:"type"`
}

// Describe lists the leaf paths of doc in sorted order. Empty maps and slices
// are reported as leaves.
func Describe(doc Document) []FieldDescriptor {
	fields := describe(doc, nil)
	if fields == nil {
		return []FieldDescriptor{}
	}
	return fields
}

func describe(value any, prefix Path) []FieldDescriptor {
	switch typed := value.(type) {
	case map[string]any:
		if len(typed) == 0 {
			if len(prefix) == 0 {
				return nil
			}
			return []FieldDescriptor{{Path: prefix.String(), Type: "map[string]any"}}
		}
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var fields []FieldDescriptor
		for _, key := range keys {
			fields = append(fields, describe(typed[key], prefix.Child(key))...)
		}
		return fields
	case []any:
		elementType := "any"
		if len(typed) > 0 {
			elementType = typeName(typed[0])
		}
		return []FieldDescriptor{{Path: prefix.String(), Type: "[]" + elementType}}
	default:
		if len(prefix) == 0 {
			return nil
		}
		return []FieldDescriptor{{Path: prefix.String(), Type: typeName(typed)}}
	}
}

func typeName(value any) string {
	if value == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", value)
}
