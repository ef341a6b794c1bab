package navigation

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// sanitize strips markup from a catalog string and escapes what remains
// for direct output. Surrounding whitespace is kept and entities in the
// stored text are escaped as written, not decoded.
func sanitize(s string) string {
	if !strings.ContainsAny(s, "<>&") {
		return html.EscapeString(s)
	}

	// parsing in body mode keeps leading whitespace; pre-escaping & stops
	// the parser from decoding entities
	body := "<body>" + strings.ReplaceAll(s, "&", "&amp;")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return html.EscapeString(s)
	}

	return html.EscapeString(doc.Find("body").Text())
}

func sanitizeFields(fields map[string]string, names []string) map[string]string {
	if len(names) == 0 {
		return nil
	}
	out := make(map[string]string, len(names))
	for _, name := range names {
		out[name] = sanitize(fields[name])
	}
	return out
}
