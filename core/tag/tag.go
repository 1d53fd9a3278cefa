package tag

import (
	"fmt"
	"reflect"
	"strconv"
	"time"
)

const (
	tagName  = "default"
	maxDepth = 16
)

var (
	ErrTargetMustBePointer = fmt.Errorf("target must be a pointer")
	ErrTargetIsNil         = fmt.Errorf("target is nil")
	ErrUnsupportedType     = fmt.Errorf("unsupported type")
	ErrMaxDepthExceeded    = fmt.Errorf("max recursion depth exceeded")
)

// ApplyDefaults sets default values for struct fields based on the
// `default` struct tag. Only zero-valued fields are touched, so values
// already set by the caller or a config file win over the tag.
//
//	type Config struct {
//	    Addr    string        `default:"localhost:6379"`
//	    Timeout time.Duration `default:"5s"`
//	}
func ApplyDefaults(target any) error {
	valueOf := reflect.ValueOf(target)
	if valueOf.Kind() != reflect.Pointer {
		return ErrTargetMustBePointer
	}
	if valueOf.IsNil() {
		return ErrTargetIsNil
	}

	elem := valueOf.Elem()
	if elem.Kind() != reflect.Struct {
		return ErrUnsupportedType
	}

	return applyStruct(elem, "", 0)
}

func applyStruct(value reflect.Value, path string, depth int) error {
	if depth >= maxDepth {
		return ErrMaxDepthExceeded
	}

	typ := value.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		fv := value.Field(i)
		if !fv.CanSet() {
			continue
		}

		fieldPath := field.Name
		if path != "" {
			fieldPath = path + "." + field.Name
		}

		// Recurse into nested structs and non-nil struct pointers.
		switch fv.Kind() {
		case reflect.Struct:
			if fv.Type() != reflect.TypeFor[time.Time]() {
				if err := applyStruct(fv, fieldPath, depth+1); err != nil {
					return err
				}
				continue
			}
		case reflect.Pointer:
			if !fv.IsNil() && fv.Elem().Kind() == reflect.Struct {
				if err := applyStruct(fv.Elem(), fieldPath, depth+1); err != nil {
					return err
				}
				continue
			}
		}

		tagValue, ok := field.Tag.Lookup(tagName)
		if !ok || tagValue == "" || !fv.IsZero() {
			continue
		}

		if err := setValue(fv, tagValue); err != nil {
			return fmt.Errorf("field %q (tag: %q): %w", fieldPath, tagValue, err)
		}
	}

	return nil
}

func setValue(value reflect.Value, str string) error {
	switch value.Kind() {
	case reflect.String:
		value.SetString(str)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if value.Type() == reflect.TypeFor[time.Duration]() {
			d, err := time.ParseDuration(str)
			if err != nil {
				return err
			}
			value.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(str, 10, value.Type().Bits())
		if err != nil {
			return err
		}
		value.SetInt(n)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(str, 10, value.Type().Bits())
		if err != nil {
			return err
		}
		value.SetUint(n)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(str, value.Type().Bits())
		if err != nil {
			return err
		}
		value.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(str)
		if err != nil {
			return err
		}
		value.SetBool(b)

	default:
		return ErrUnsupportedType
	}

	return nil
}
