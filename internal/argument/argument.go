// Package argument holds the presence checks shared by every registration and
// resolution surface.
package argument

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrInvalid is returned when a required argument is missing.
var ErrInvalid = errors.New("invalid argument")

// NotEmpty fails when value is the empty string.
func NotEmpty(param, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s must not be empty", ErrInvalid, param)
	}
	return nil
}

// NotNil fails when value is nil, including typed nil pointers and funcs.
func NotNil(param string, value any) error {
	if IsNil(value) {
		return fmt.Errorf("%w: %s must not be nil", ErrInvalid, param)
	}
	return nil
}

// First returns the first non-nil error.
func First(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// IsNil reports whether value is nil or a typed nil pointer, func, map, slice,
// interface or channel.
func IsNil(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
