package rules

import "strings"

// RenderTemplate substitutes {name} placeholders in tmpl with values from
// fields. A placeholder with no corresponding field renders as
// <missing:name> so a gap is visible in the report instead of corrupting
// the surrounding text. A lone "{" with no closing brace is kept verbatim.
func RenderTemplate(tmpl string, fields map[string]string) string {
	if !strings.ContainsRune(tmpl, '{') {
		return tmpl
	}

	var b strings.Builder
	b.Grow(len(tmpl) + 16)

	for {
		open := strings.IndexByte(tmpl, '{')
		if open < 0 {
			b.WriteString(tmpl)
			return b.String()
		}
		close := strings.IndexByte(tmpl[open:], '}')
		if close < 0 {
			b.WriteString(tmpl)
			return b.String()
		}
		close += open

		b.WriteString(tmpl[:open])
		name := tmpl[open+1 : close]

		if !validPlaceholder(name) {
			// Not a placeholder; emit the brace and keep scanning
			// from the next character.
			b.WriteByte('{')
			tmpl = tmpl[open+1:]
			continue
		}

		if v, ok := fields[name]; ok {
			b.WriteString(v)
		} else {
			b.WriteString("<missing:")
			b.WriteString(name)
			b.WriteString(">")
		}
		tmpl = tmpl[close+1:]
	}
}

func validPlaceholder(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_':
		default:
			return false
		}
	}
	return true
}
