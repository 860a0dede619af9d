package browser

import (
	"net/url"
	"strings"

	htmlmd "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// extractContent turns rendered page HTML into the visible text the
// analyzer consumes, plus a markdown rendition kept for storage. Parse
// failures degrade to empty text rather than an error: an unparseable
// page is handled the same way as an empty one.
func extractContent(htmlStr, pageURL string) (text, markdown string) {
	host := ""
	if u, err := url.Parse(pageURL); err == nil {
		host = u.Hostname()
	}

	converter := htmlmd.NewConverter(host, true, nil)
	if md, err := converter.ConvertString(htmlStr); err == nil {
		markdown = md
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return "", markdown
	}

	// Script and style text is invisible and would pollute the prompt.
	doc.Find("script, style, noscript").Remove()

	body := doc.Find("body")
	if body.Length() > 0 {
		text = body.Text()
	} else {
		text = doc.Text()
	}

	return normalizeWhitespace(text), markdown
}

// normalizeWhitespace collapses runs of spaces inside lines and drops
// blank lines so the extracted text stays compact.
func normalizeWhitespace(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
