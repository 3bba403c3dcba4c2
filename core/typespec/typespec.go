// Package typespec validates runtime values against declared type specifiers.
//
// A specifier is one of:
//
//   - a tag string ("int", "str", "float", "bool", "nil", "any", ...)
//   - a []any of length one, meaning "list whose elements all match the inner spec"
//   - a []any of length two or more, meaning "union: match at least one"
//   - a Predicate, invoked with the value
//   - a reflect.Type, matched nominally (equal, assignable, or implements)
//
// Matches is pure: it never mutates the value and returns the same result
// for the same inputs.
package typespec

import (
	"fmt"
	"reflect"
	"time"
)

// Spec is a type specifier. See the package doc for the accepted forms.
type Spec = any

// Predicate is an opaque check over a value.
type Predicate func(value any) bool

// Tag constants for the atomic specifiers.
const (
	TagAny      = "any"
	TagString   = "str"
	TagInt      = "int"
	TagFloat    = "float"
	TagBool     = "bool"
	TagNil      = "nil"
	TagMap      = "map"
	TagList     = "list"
	TagDuration = "duration"
	TagTime     = "time"
)

// UnknownTypeError reports a type tag with no registered meaning.
// This is a declaration-time programmer error, distinct from a value
// simply failing to match.
type UnknownTypeError struct {
	Tag string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown type specifier %q", e.Tag)
}

// Matches reports whether value satisfies spec.
// It returns an error only for specifiers that cannot be resolved at all.
func Matches(value any, spec Spec) (bool, error) {
	switch s := spec.(type) {
	case nil:
		return true, nil
	case string:
		return matchTag(value, s)
	case Predicate:
		return s(value), nil
	case func(any) bool:
		return s(value), nil
	case reflect.Type:
		return matchNominal(value, s), nil
	case []any:
		return matchList(value, s)
	case []string:
		// Convenience: a slice of tags behaves like []any of tags.
		specs := make([]any, len(s))
		for i, tag := range s {
			specs[i] = tag
		}
		return matchList(value, specs)
	default:
		return false, &UnknownTypeError{Tag: fmt.Sprintf("%T", spec)}
	}
}

func matchList(value any, specs []any) (bool, error) {
	switch len(specs) {
	case 0:
		return false, &UnknownTypeError{Tag: "[]"}
	case 1:
		return matchElements(value, specs[0])
	default:
		return matchUnion(value, specs)
	}
}

// matchElements implements the [T] form: value must be a sequence whose
// elements all satisfy the inner spec.
func matchElements(value any, inner Spec) (bool, error) {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return false, nil
	}
	for i := 0; i < rv.Len(); i++ {
		ok, err := Matches(rv.Index(i).Interface(), inner)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// matchUnion returns true if the value satisfies any member.
// Unresolvable members surface as errors rather than silently failing.
func matchUnion(value any, specs []any) (bool, error) {
	for _, member := range specs {
		ok, err := Matches(value, member)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func matchTag(value any, tag string) (bool, error) {
	switch tag {
	case TagAny:
		return true, nil
	case TagNil, "null":
		return value == nil, nil
	case TagString, "string":
		_, ok := value.(string)
		return ok, nil
	case TagBool:
		_, ok := value.(bool)
		return ok, nil
	case TagInt, "integer":
		return isInteger(value), nil
	case TagFloat, "number":
		switch value.(type) {
		case float32, float64:
			return true, nil
		}
		return false, nil
	case TagDuration:
		_, ok := value.(time.Duration)
		return ok, nil
	case TagTime, "timestamp":
		_, ok := value.(time.Time)
		return ok, nil
	case TagMap:
		if value == nil {
			return false, nil
		}
		return reflect.TypeOf(value).Kind() == reflect.Map, nil
	case TagList, "array", "slice":
		if value == nil {
			return false, nil
		}
		k := reflect.TypeOf(value).Kind()
		return k == reflect.Slice || k == reflect.Array, nil
	default:
		return false, &UnknownTypeError{Tag: tag}
	}
}

func isInteger(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

// matchNominal reports whether the value's runtime type equals, is
// assignable to, or implements the reference type.
func matchNominal(value any, ref reflect.Type) bool {
	rt := reflect.TypeOf(value)
	if rt == nil {
		return false
	}
	if rt == ref {
		return true
	}
	if ref.Kind() == reflect.Interface {
		return rt.Implements(ref)
	}
	return rt.AssignableTo(ref)
}

// Describe renders a specifier for error messages.
func Describe(spec Spec) string {
	switch s := spec.(type) {
	case nil:
		return TagAny
	case string:
		return s
	case reflect.Type:
		return s.String()
	case Predicate, func(any) bool:
		return "predicate"
	case []any:
		if len(s) == 1 {
			return "[" + Describe(s[0]) + "]"
		}
		out := ""
		for i, member := range s {
			if i > 0 {
				out += "|"
			}
			out += Describe(member)
		}
		return out
	default:
		return fmt.Sprintf("%T", spec)
	}
}
