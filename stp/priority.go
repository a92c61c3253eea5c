package stp

import "reflect"

// floatField, boolField, and stringField read a named field off an
// arbitrary payload struct (or a pointer to one) by reflection, for
// priority selection (spec.md §4.7). Payloads are plain domain structs
// the envelope does not otherwise depend on, so reflection keeps this
// package free of compile-time dependencies on domain/decision and
// domain/feedback.
func floatField(payload any, name string) (float64, bool) {
	v := fieldValue(payload, name)
	if !v.IsValid() {
		return 0, false
	}
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.Int, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	default:
		return 0, false
	}
}

func boolField(payload any, name string) (bool, bool) {
	v := fieldValue(payload, name)
	if !v.IsValid() || v.Kind() != reflect.Bool {
		return false, false
	}
	return v.Bool(), true
}

func stringField(payload any, name string) (string, bool) {
	v := fieldValue(payload, name)
	if !v.IsValid() || v.Kind() != reflect.String {
		return "", false
	}
	return v.String(), true
}

func fieldValue(payload any, name string) reflect.Value {
	v := reflect.ValueOf(payload)
	if !v.IsValid() {
		return reflect.Value{}
	}
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}
	}
	return v.FieldByName(name)
}
