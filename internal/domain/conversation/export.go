package conversation

import "strings"

// Export renders turns as plain text: a capitalized role label, one line per
// block, then a blank separator line.
func Export(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(roleLabel(t.Role))
		b.WriteString(":\n")
		for _, c := range t.Content {
			switch c.Kind {
			case BlockImage:
				b.WriteString(ImagePlaceholder)
			default:
				b.WriteString(c.Text)
			}
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func roleLabel(r Role) string {
	s := string(r)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
