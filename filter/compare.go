/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package filter

import (
	"cmp"
	"database/sql/driver"
	"reflect"
	"strings"
	"time"
)

// Normalize unwraps pointers and driver.Valuer implementations into the
// plain value a comparison or a SQL argument works on.
func Normalize(v interface{}) interface{} {
	for v != nil {
		if valuer, ok := v.(driver.Valuer); ok {
			rv := reflect.ValueOf(v)
			if rv.Kind() == reflect.Ptr && rv.IsNil() {
				return nil
			}
			out, err := valuer.Value()
			if err != nil {
				return v
			}
			v = out
			continue
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Ptr {
			return v
		}
		if rv.IsNil() {
			return nil
		}
		v = rv.Elem().Interface()
	}
	return nil
}

// compare orders two values of compatible kinds: numbers of any width,
// strings, booleans and times.
func compare(a, b interface{}) (int, bool) {
	a, b = Normalize(a), Normalize(b)
	if a == nil || b == nil {
		return 0, false
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return ta.Compare(tb), true
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch {
	case isNumber(ra.Kind()) && isNumber(rb.Kind()):
		return compareNumbers(ra, rb), true
	case ra.Kind() == reflect.String && rb.Kind() == reflect.String:
		return strings.Compare(ra.String(), rb.String()), true
	case ra.Kind() == reflect.Bool && rb.Kind() == reflect.Bool:
		x, y := ra.Bool(), rb.Bool()
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

type numberKind int

const (
	signedKind numberKind = iota + 1
	unsignedKind
	floatKind
)

func kindOf(k reflect.Kind) numberKind {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return signedKind
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return unsignedKind
	case reflect.Float32, reflect.Float64:
		return floatKind
	}
	return 0
}

func isNumber(k reflect.Kind) bool { return kindOf(k) != 0 }

// compareNumbers compares integers exactly; floats are used only when one
// side is a float.
func compareNumbers(a, b reflect.Value) int {
	ka, kb := kindOf(a.Kind()), kindOf(b.Kind())
	switch {
	case ka == floatKind || kb == floatKind:
		return cmp.Compare(toFloat(a), toFloat(b))
	case ka == signedKind && kb == signedKind:
		return cmp.Compare(a.Int(), b.Int())
	case ka == unsignedKind && kb == unsignedKind:
		return cmp.Compare(a.Uint(), b.Uint())
	case ka == signedKind:
		if a.Int() < 0 {
			return -1
		}
		return cmp.Compare(uint64(a.Int()), b.Uint())
	default:
		if b.Int() < 0 {
			return 1
		}
		return cmp.Compare(a.Uint(), uint64(b.Int()))
	}
}

func toFloat(v reflect.Value) float64 {
	switch kindOf(v.Kind()) {
	case signedKind:
		return float64(v.Int())
	case unsignedKind:
		return float64(v.Uint())
	}
	return v.Float()
}
