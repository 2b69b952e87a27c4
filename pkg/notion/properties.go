package notion

import (
	"strings"

	"github.com/jomei/notionapi"
)

// PlainText concatenates the plain_text values of rich text.
func PlainText(rts []notionapi.RichText) string {
	var b strings.Builder
	for _, rt := range rts {
		b.WriteString(rt.PlainText)
	}
	return b.String()
}

// Text returns the trimmed text of a title, rich_text, select, status or
// url property. Missing or unsupported properties yield "".
func Text(props notionapi.Properties, name string) string {
	prop, ok := props[name]
	if !ok {
		return ""
	}
	var s string
	switch p := prop.(type) {
	case *notionapi.TitleProperty:
		s = PlainText(p.Title)
	case *notionapi.RichTextProperty:
		s = PlainText(p.RichText)
	case *notionapi.SelectProperty:
		s = p.Select.Name
	case *notionapi.StatusProperty:
		s = p.Status.Name
	case *notionapi.URLProperty:
		s = p.URL
	}
	return strings.TrimSpace(s)
}

// Options returns the option names of a multi_select property. A rich_text
// property is split on commas and newlines instead.
func Options(props notionapi.Properties, name string) []string {
	prop, ok := props[name]
	if !ok {
		return nil
	}
	var out []string
	switch p := prop.(type) {
	case *notionapi.MultiSelectProperty:
		for _, opt := range p.MultiSelect {
			if n := strings.TrimSpace(opt.Name); n != "" {
				out = append(out, n)
			}
		}
	case *notionapi.RichTextProperty:
		fields := strings.FieldsFunc(PlainText(p.RichText), func(r rune) bool { return r == ',' || r == '\n' })
		for _, f := range fields {
			if f = strings.TrimSpace(f); f != "" {
				out = append(out, f)
			}
		}
	}
	return out
}
