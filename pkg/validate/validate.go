// Package validate checks request structs against their `validate` tags.
//
//	required   non-zero, non-blank
//	nullable   an empty value skips the remaining rules
//	email      looks like an address
//	slug       lowercase letters, digits and single hyphens
//	min=N      numbers: value >= N; strings and slices: length >= N
//	max=N      numbers: value <= N; strings and slices: length <= N
//	gt=N gte=N lte=N
//	in=A|B|C   one of the listed values
//	dive       validate each element of a slice of structs; errors are
//	           keyed "<field>.<index>.<child>"
//
// Errors map the json field name to a message.
package validate

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

type rule struct {
	name, param string
}

type check func(v reflect.Value, param, label string) string

var (
	emailRE = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	slugRE  = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

var checks = map[string]check{
	"required": func(v reflect.Value, _, label string) string {
		if isEmpty(v) {
			return fmt.Sprintf("The %s field is required.", label)
		}
		return ""
	},
	"email": func(v reflect.Value, _, label string) string {
		if !emailRE.MatchString(text(v)) {
			return fmt.Sprintf("The %s must be a valid email address.", label)
		}
		return ""
	},
	"slug": func(v reflect.Value, _, label string) string {
		if !slugRE.MatchString(text(v)) {
			return fmt.Sprintf("The %s may only contain lowercase letters, numbers and hyphens.", label)
		}
		return ""
	},
	"min": func(v reflect.Value, param, label string) string {
		if n, ok := number(v); ok {
			if n < bound(param) {
				return fmt.Sprintf("The %s must be at least %s.", label, param)
			}
		} else if float64(size(v)) < bound(param) {
			return fmt.Sprintf("The %s must be at least %s characters.", label, param)
		}
		return ""
	},
	"max": func(v reflect.Value, param, label string) string {
		if n, ok := number(v); ok {
			if n > bound(param) {
				return fmt.Sprintf("The %s must not be greater than %s.", label, param)
			}
		} else if float64(size(v)) > bound(param) {
			return fmt.Sprintf("The %s must not exceed %s characters.", label, param)
		}
		return ""
	},
	"gt": func(v reflect.Value, param, label string) string {
		if n, _ := number(v); n <= bound(param) {
			return fmt.Sprintf("The %s must be greater than %s.", label, param)
		}
		return ""
	},
	"gte": func(v reflect.Value, param, label string) string {
		if n, _ := number(v); n < bound(param) {
			return fmt.Sprintf("The %s must be greater than or equal to %s.", label, param)
		}
		return ""
	},
	"lte": func(v reflect.Value, param, label string) string {
		if n, _ := number(v); n > bound(param) {
			return fmt.Sprintf("The %s must be less than or equal to %s.", label, param)
		}
		return ""
	},
	"in": func(v reflect.Value, param, label string) string {
		s := text(v)
		for _, allowed := range strings.Split(param, "|") {
			if s == allowed {
				return ""
			}
		}
		return fmt.Sprintf("The selected %s is invalid.", label)
	},
}

// Struct validates the tagged exported fields of v, which may be a struct
// or a pointer to one. An empty map means v is valid.
func Struct(v any) map[string]string {
	errs := map[string]string{}
	walk(errs, "", reflect.ValueOf(v))
	return errs
}

func HasErrors(errs map[string]string) bool { return len(errs) > 0 }

func walk(errs map[string]string, prefix string, rv reflect.Value) {
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return
	}

	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		tag := f.Tag.Get("validate")
		if tag == "" || !f.IsExported() {
			continue
		}
		value := rv.Field(i)
		name := prefix + fieldName(f)
		rules, dive, nullable := parse(tag)

		if nullable && isEmpty(value) {
			continue
		}
		if msg := first(rules, value, label(name)); msg != "" {
			errs[name] = msg
			continue
		}
		if dive && (value.Kind() == reflect.Slice || value.Kind() == reflect.Array) {
			for j := 0; j < value.Len(); j++ {
				walk(errs, fmt.Sprintf("%s.%d.", name, j), value.Index(j))
			}
		}
	}
}

// parse splits a tag into checks plus the dive and nullable modifiers.
// Unknown rule names panic: they are programming errors.
func parse(tag string) (rules []rule, dive, nullable bool) {
	for _, part := range strings.Split(tag, ",") {
		name, param, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch name {
		case "dive":
			dive = true
		case "nullable":
			nullable = true
		default:
			if _, ok := checks[name]; !ok {
				panic(fmt.Sprintf("validate: unknown rule %q", name))
			}
			rules = append(rules, rule{name: name, param: param})
		}
	}
	return rules, dive, nullable
}

func first(rules []rule, v reflect.Value, label string) string {
	for _, r := range rules {
		if msg := checks[r.name](v, r.param, label); msg != "" {
			return msg
		}
	}
	return ""
}

// label is the field name as shown in messages; nested paths stay as-is.
func label(field string) string {
	if strings.Contains(field, ".") {
		return field
	}
	return strings.ReplaceAll(field, "_", " ")
}

func fieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return strings.ToLower(f.Name)
	}
	return name
}

func deref(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Slice, reflect.Map, reflect.Array:
		return v.Len() == 0
	case reflect.Bool:
		return false
	}
	return v.IsValid() && v.IsZero()
}

func number(v reflect.Value) (float64, bool) {
	v = deref(v)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	return 0, false
}

func text(v reflect.Value) string {
	v = deref(v)
	if !v.IsValid() {
		return ""
	}
	if v.Kind() == reflect.String {
		return v.String()
	}
	return fmt.Sprint(v.Interface())
}

func size(v reflect.Value) int {
	v = deref(v)
	switch v.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return v.Len()
	case reflect.String:
		return len([]rune(v.String()))
	}
	return 0
}

func bound(param string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(param), 64)
	if err != nil {
		panic(fmt.Sprintf("validate: bad rule parameter %q", param))
	}
	return f
}
