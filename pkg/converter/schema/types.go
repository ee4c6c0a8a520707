package schema

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

type valueCheck func(string) bool

var (
	integerPattern  = regexp.MustCompile(`^[+-]?[0-9]+$`)
	decimalPattern  = regexp.MustCompile(`^[+-]?([0-9]+(\.[0-9]*)?|\.[0-9]+)$`)
	datePattern     = regexp.MustCompile(`^([0-9]{4}-[0-9]{2}-[0-9]{2})(Z|[+-][0-9]{2}:[0-9]{2})?$`)
	dateTimePattern = regexp.MustCompile(`^([0-9]{4}-[0-9]{2}-[0-9]{2}T[0-9]{2}:[0-9]{2}:[0-9]{2})(\.[0-9]+)?(Z|[+-][0-9]{2}:[0-9]{2})?$`)
)

// builtinTypes lists the supported XSD built-in simple types. Values are
// whitespace-collapsed before the check runs, except for string.
var builtinTypes = map[string]valueCheck{
	"anyType":            func(string) bool { return true },
	"anySimpleType":      func(string) bool { return true },
	"string":             func(string) bool { return true },
	"normalizedString":   func(s string) bool { return !strings.ContainsAny(s, "\t\r\n") },
	"token":              func(string) bool { return true },
	"integer":            integerPattern.MatchString,
	"int":                intOfSize(32),
	"long":               intOfSize(64),
	"short":              intOfSize(16),
	"byte":               intOfSize(8),
	"nonNegativeInteger": func(s string) bool { return integerPattern.MatchString(s) && !strings.HasPrefix(s, "-") || isZero(s) },
	"positiveInteger":    func(s string) bool { return integerPattern.MatchString(s) && !strings.HasPrefix(s, "-") && !isZero(s) },
	"decimal":            decimalPattern.MatchString,
	"boolean":            func(s string) bool { return s == "true" || s == "false" || s == "1" || s == "0" },
	"date":               validDate,
	"dateTime":           validDateTime,
}

// isBuiltin reports whether qname names a supported built-in type. Built-in
// names take precedence over same-named user types.
func isBuiltin(qname string) bool {
	_, ok := builtinTypes[localName(qname)]
	return ok
}

func intOfSize(bits int) valueCheck {
	return func(s string) bool {
		_, err := strconv.ParseInt(strings.TrimPrefix(s, "+"), 10, bits)
		return err == nil
	}
}

func isZero(s string) bool {
	return strings.Trim(strings.TrimLeft(s, "+-"), "0") == "" && integerPattern.MatchString(s)
}

func validDate(s string) bool {
	m := datePattern.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	_, err := time.Parse("2006-01-02", m[1])
	return err == nil
}

func validDateTime(s string) bool {
	m := dateTimePattern.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	_, err := time.Parse("2006-01-02T15:04:05", m[1])
	return err == nil
}

// check validates a lexical value against the type's base and facets.
func (st *simpleType) check(raw string) (string, bool) {
	value := raw
	if st.base != "string" && st.base != "anyType" && st.base != "anySimpleType" {
		value = strings.Join(strings.Fields(raw), " ")
	}
	baseCheck, ok := builtinTypes[st.base]
	if !ok || !baseCheck(value) {
		return "is not a valid " + st.base, false
	}
	if len(st.enumeration) > 0 {
		found := false
		for _, e := range st.enumeration {
			if e == value {
				found = true
				break
			}
		}
		if !found {
			return "is not one of the enumerated values", false
		}
	}
	for _, p := range st.patterns {
		if !p.MatchString(value) {
			return "does not match pattern " + p.String(), false
		}
	}
	length := utf8.RuneCountInString(value)
	if length < st.minLength {
		return "is shorter than minLength " + strconv.Itoa(st.minLength), false
	}
	if st.maxLength >= 0 && length > st.maxLength {
		return "is longer than maxLength " + strconv.Itoa(st.maxLength), false
	}
	return "", true
}
