package disqus

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

// Args is an ordered set of call arguments. Values that are nil, "", "0",
// 0, false or an empty list are dropped when the set is encoded, so a zero
// or empty value cannot be transmitted unless it is wrapped with Explicit.
type Args struct {
	pairs []argPair
}

type argPair struct {
	name  string
	value any
}

type explicitValue struct {
	value any
}

// Explicit marks a value that is transmitted even when it is empty or zero.
// A nil value is still omitted.
func Explicit(value any) any {
	return explicitValue{value: value}
}

// Set stores value under name, replacing an existing value in place.
func (a *Args) Set(name string, value any) *Args {
	for i := range a.pairs {
		if a.pairs[i].name == name {
			a.pairs[i].value = value
			return a
		}
	}
	a.pairs = append(a.pairs, argPair{name: name, value: value})
	return a
}

func (a Args) Get(name string) (any, bool) {
	for _, pair := range a.pairs {
		if pair.name == name {
			return pair.value, true
		}
	}
	return nil, false
}

// IsSet reports whether name holds a non-nil value.
func (a Args) IsSet(name string) bool {
	value, ok := a.Get(name)
	if !ok {
		return false
	}
	return !isNil(value)
}

func (a Args) Len() int {
	return len(a.pairs)
}

func (a Args) Clone() Args {
	if len(a.pairs) == 0 {
		return Args{}
	}
	pairs := make([]argPair, len(a.pairs))
	copy(pairs, a.pairs)
	return Args{pairs: pairs}
}

// Encode renders the arguments as name=value pairs joined by "&", in
// insertion order, skipping every value the omission policy drops.
func (a Args) Encode() string {
	var b strings.Builder
	for _, pair := range a.pairs {
		value, ok := formatArg(pair.value)
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(pair.name)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(value))
	}
	return b.String()
}

// Values returns the transmitted arguments as url.Values.
func (a Args) Values() url.Values {
	values := url.Values{}
	for _, pair := range a.pairs {
		if value, ok := formatArg(pair.value); ok {
			values.Set(pair.name, value)
		}
	}
	return values
}

func formatArg(value any) (string, bool) {
	if explicit, ok := value.(explicitValue); ok {
		if isNil(explicit.value) {
			return "", false
		}
		return stringify(explicit.value), true
	}
	if isNil(value) {
		return "", false
	}
	formatted := stringify(value)
	// false renders as "0" and empty lists as "", so both fall out here.
	if formatted == "" || formatted == "0" {
		return "", false
	}
	return formatted, true
}

func stringify(value any) string {
	switch v := deref(value).(type) {
	case nil:
		return ""
	case string:
		return v
	case ID:
		return string(v)
	case int:
		return strconv.Itoa(v)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case []string:
		return strings.Join(v, ",")
	case []ID:
		parts := make([]string, 0, len(v))
		for _, id := range v {
			parts = append(parts, string(id))
		}
		return strings.Join(parts, ",")
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func deref(value any) any {
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

func isNil(value any) bool {
	if explicit, ok := value.(explicitValue); ok {
		return isNil(explicit.value)
	}
	if value == nil {
		return true
	}
	switch rv := reflect.ValueOf(value); rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
