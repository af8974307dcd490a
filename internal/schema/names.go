package schema

import (
	"strings"
	"unicode"
)

// ToSnake converts a mixed-case field name to its underscore-separated
// column name: "isCompleted" -> "is_completed", "blogID" -> "blog_id".
// It is deterministic and pure, but not a proven inverse of ToCamel for
// names containing digits or pre-existing underscores; descriptors carry
// an explicit stored name mapping so derived conversion is only a
// fallback for unknown names.
func ToSnake(name string) string {
	if name == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(name) + 4)
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			// Break before an uppercase rune unless it continues an
			// uppercase run that is not followed by a lowercase rune.
			if i > 0 && runes[i-1] != '_' {
				prevUpper := unicode.IsUpper(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if !prevUpper || nextLower {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ToCamel converts an underscore-separated column name back to a
// mixed-case field name: "is_completed" -> "isCompleted". Leading
// underscores are preserved so system columns like "_version" survive:
// "_last_changed_at" -> "_lastChangedAt".
func ToCamel(name string) string {
	if name == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(name))
	i := 0
	for i < len(name) && name[i] == '_' {
		b.WriteByte('_')
		i++
	}
	upperNext := false
	for ; i < len(name); i++ {
		c := name[i]
		if c == '_' {
			upperNext = true
			continue
		}
		if upperNext {
			b.WriteRune(unicode.ToUpper(rune(c)))
			upperNext = false
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
