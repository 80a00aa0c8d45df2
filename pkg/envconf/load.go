package envconf

import (
	"encoding"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"
)

var (
	ErrMissingRequired = errors.New("missing required environment variable")
	ErrUnsupportedType = errors.New("unsupported field type")
)

var durationType = reflect.TypeOf(time.Duration(0))

// Load fills the exported fields of the struct dst points to from the
// environment.
//
// Tags:
//
//	env:"NAME"          read NAME (after any prefix from enclosing structs)
//	envDefault:"value"  used when NAME is unset; without it NAME is required
//	envPrefix:"PG_"     on a nested struct, prepended to the names inside it
//
// Untagged struct fields are loaded recursively. Every bad or missing
// variable is reported, not just the first.
func Load(dst any) error {
	if dst == nil {
		return errors.New("destination is nil")
	}

	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return errors.New("destination must be a non-nil pointer to a struct")
	}

	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return errors.New("destination must point to a struct")
	}

	return errors.Join(loadStruct(v, "")...)
}

func loadStruct(v reflect.Value, prefix string) []error {
	var errs []error

	t := v.Type()
	for i := range v.NumField() {
		sf := t.Field(i)
		fv := v.Field(i)

		if !sf.IsExported() {
			continue
		}

		tag := sf.Tag.Get("env")
		if tag == "-" {
			continue
		}

		if tag == "" {
			nested, ok := structTarget(fv)
			if ok {
				errs = append(errs, loadStruct(nested, prefix+sf.Tag.Get("envPrefix"))...)
			}

			continue
		}

		name := prefix + tag

		raw, ok := os.LookupEnv(name)
		if !ok {
			raw, ok = sf.Tag.Lookup("envDefault")
			if !ok {
				errs = append(errs, fmt.Errorf("%w: %s (field %q)", ErrMissingRequired, name, sf.Name))
				continue
			}
		}

		err := setValue(fv, raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse %s for field %q: %w", name, sf.Name, err))
		}
	}

	return errs
}

// structTarget returns the struct to recurse into for an untagged field,
// allocating nil struct pointers. time.Duration is never a target.
func structTarget(fv reflect.Value) (reflect.Value, bool) {
	switch {
	case fv.Kind() == reflect.Struct && fv.Type() != durationType:
		return fv, true
	case fv.Kind() == reflect.Pointer && fv.Type().Elem().Kind() == reflect.Struct:
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}

		return fv.Elem(), true
	default:
		return reflect.Value{}, false
	}
}

//nolint:cyclop
func setValue(fv reflect.Value, raw string) error {
	if !fv.CanSet() {
		return fmt.Errorf("field not settable: %w", ErrUnsupportedType)
	}

	if fv.CanAddr() {
		if u, ok := fv.Addr().Interface().(encoding.TextUnmarshaler); ok {
			return u.UnmarshalText([]byte(raw))
		}
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if fv.Type() == durationType {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return err
			}
			fv.SetInt(int64(d))

			return nil
		}

		n, err := strconv.ParseInt(raw, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	case reflect.Pointer:
		elem := reflect.New(fv.Type().Elem())

		err := setValue(elem.Elem(), raw)
		if err != nil {
			return err
		}
		fv.Set(elem)
	default:
		return fmt.Errorf("%s: %w", fv.Type(), ErrUnsupportedType)
	}

	return nil
}
