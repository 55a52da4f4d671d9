// Package tree converts, copies and merges document trees: values built from
// map[string]any, []any and scalars.
package tree

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Normalize converts v into the document shape. Maps with string-like keys
// become map[string]any, slices and arrays become []any, structs go through
// their JSON encoding so field tags are honoured. Values that are already
// normal are returned untouched, which keeps existing subtrees identical.
func Normalize(v any) any {
	out, _ := normalize(v)
	return out
}

func normalize(v any) (any, bool) {
	switch typed := v.(type) {
	case nil, string, bool, float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return v, false
	case map[string]any:
		var out map[string]any
		for key, value := range typed {
			next, changed := normalize(value)
			if !changed {
				continue
			}
			if out == nil {
				out = make(map[string]any, len(typed))
				for k, val := range typed {
					out[k] = val
				}
			}
			out[key] = next
		}
		if out == nil {
			return typed, false
		}
		return out, true
	case []any:
		var out []any
		for i, value := range typed {
			next, changed := normalize(value)
			if !changed {
				continue
			}
			if out == nil {
				out = make([]any, len(typed))
				copy(out, typed)
			}
			out[i] = next
		}
		if out == nil {
			return typed, false
		}
		return out, true
	}
	return normalizeValue(reflect.ValueOf(v)), true
}

func normalizeValue(rv reflect.Value) any {
	if !rv.IsValid() {
		return nil
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return Normalize(rv.Elem().Interface())
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[mapKey(iter.Key())] = Normalize(iter.Value().Interface())
		}
		return out
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Struct:
		return normalizeJSON(rv.Interface())
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	default:
		return rv.Interface()
	}
}

func mapKey(key reflect.Value) string {
	if key.Kind() == reflect.String {
		return key.String()
	}
	return fmt.Sprint(key.Interface())
}

func normalizeJSON(v any) any {
	payload, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(payload, &out); err != nil {
		return v
	}
	return out
}

// Clone returns a deep copy of v. Containers are copied, scalars are shared.
func Clone(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		if typed == nil {
			return typed
		}
		out := make(map[string]any, len(typed))
		for key, value := range typed {
			out[key] = Clone(value)
		}
		return out
	case []any:
		if typed == nil {
			return typed
		}
		out := make([]any, len(typed))
		for i, value := range typed {
			out[i] = Clone(value)
		}
		return out
	case nil:
		return nil
	}
	cloned := cloneValue(reflect.ValueOf(v))
	if !cloned.IsValid() {
		return nil
	}
	return cloned.Interface()
}

func cloneValue(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.New(v.Type().Elem())
		clone.Elem().Set(cloneValue(v.Elem()))
		return clone
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		elem := cloneValue(v.Elem())
		if !elem.IsValid() {
			return reflect.Zero(v.Type())
		}
		return elem.Convert(v.Type())
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			clone.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return clone
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(cloneValue(v.Index(i)))
		}
		return clone
	default:
		return v
	}
}

// Merge layers strong over weak and returns a new tree. Keys present in
// strong win; nil values and missing keys fall back to weak. Slices and
// scalars are taken from strong as a whole.
func Merge(strong, weak any) any {
	if strong == nil {
		return Clone(weak)
	}
	strongMap, ok := strong.(map[string]any)
	if !ok {
		return Clone(strong)
	}
	weakMap, _ := weak.(map[string]any)
	out := make(map[string]any, len(strongMap)+len(weakMap))
	for key, value := range weakMap {
		out[key] = Clone(value)
	}
	for key, value := range strongMap {
		if existing, ok := out[key]; ok {
			out[key] = Merge(value, existing)
			continue
		}
		out[key] = Clone(value)
	}
	return out
}

// Share returns next with every subtree that is deeply equal to the matching
// subtree of prev replaced by prev's value. A next equal to prev as a whole
// returns prev itself. Numbers compare by value so a float64 decoded from
// JSON keeps the original int. next is rewritten in place and must not be
// shared.
func Share(prev, next any) any {
	out, _ := share(prev, next)
	return out
}

func share(prev, next any) (any, bool) {
	switch typed := next.(type) {
	case map[string]any:
		old, ok := prev.(map[string]any)
		if !ok || old == nil || typed == nil {
			return next, false
		}
		same := len(old) == len(typed)
		for key, value := range typed {
			previous, exists := old[key]
			if !exists {
				same = false
				continue
			}
			shared, equal := share(previous, value)
			typed[key] = shared
			same = same && equal
		}
		if same {
			return old, true
		}
		return typed, false
	case []any:
		old, ok := prev.([]any)
		if !ok || old == nil || typed == nil {
			return next, false
		}
		same := len(old) == len(typed)
		for i, value := range typed {
			if i >= len(old) {
				break
			}
			shared, equal := share(old[i], value)
			typed[i] = shared
			same = same && equal
		}
		if same {
			return old, true
		}
		return typed, false
	}
	if scalarEqual(prev, next) {
		return prev, true
	}
	return next, false
}

func scalarEqual(a, b any) bool {
	if af, ok := ToFloat(a); ok {
		bf, ok := ToFloat(b)
		return ok && af == bf
	}
	switch a.(type) {
	case string, bool, nil:
		return a == b
	}
	return false
}

// ToFloat reports the numeric value of v for every Go integer and float
// kind, and for json.Number.
func ToFloat(v any) (float64, bool) {
	switch typed := v.(type) {
	case int:
		return float64(typed), true
	case int8:
		return float64(typed), true
	case int16:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case uint:
		return float64(typed), true
	case uint8:
		return float64(typed), true
	case uint16:
		return float64(typed), true
	case uint32:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	case float32:
		return float64(typed), true
	case float64:
		return typed, true
	case json.Number:
		f, err := typed.Float64()
		return f, err == nil
	}
	return 0, false
}
