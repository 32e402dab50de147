// Package common holds naming helpers shared by the code generation backends.
package common

import (
	"go/token"
	"sort"
	"strings"
	"unicode"
)

// ToPascalCase joins the words of s, split on '_', '-', '.' and spaces, with
// each word's first letter upper-cased. Inner casing is preserved, so
// "orderLine" and "order_line" both become "OrderLine".
func ToPascalCase(s string) string {
	if s == "" {
		return ""
	}

	words := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || unicode.IsSpace(r)
	})

	var result strings.Builder
	for _, word := range words {
		r := []rune(word)
		r[0] = unicode.ToUpper(r[0])
		result.WriteString(string(r))
	}
	return result.String()
}

func ToSnakeCase(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '.' || r == '-' || unicode.IsSpace(r) {
			r = '_'
		}
		isUpper := r >= 'A' && r <= 'Z'

		if i > 0 && isUpper {
			prevIsLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
			// end of an acronym: "XMLParser" splits before 'P'
			nextIsLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			prevIsSep := strings.ContainsRune("_.- ", runes[i-1])

			if (prevIsLower || nextIsLower) && !prevIsSep {
				b.WriteByte('_')
			}
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

// SanitizeLeadingDigit prefixes names that start with a digit with "Num".
func SanitizeLeadingDigit(name string) string {
	if name == "" {
		return ""
	}
	if name[0] >= '0' && name[0] <= '9' {
		return "Num" + name
	}
	return name
}

// ExportedName turns an Avro name into an exported Go identifier.
// Names without any letters or digits map to "X".
func ExportedName(name string) string {
	id := SanitizeLeadingDigit(ToPascalCase(name))
	if id == "" || !token.IsIdentifier(id) {
		return "X" + id
	}
	return id
}

// IsPackageName reports whether name can be used as a Go package clause.
func IsPackageName(name string) bool {
	return token.IsIdentifier(name) && !token.IsKeyword(name) && name != "_"
}

// SortedStringKeys returns the sorted keys of m.
func SortedStringKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
