// Package text renders feed content into the plain text that ends up in a post.
package text

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Separator joins the texts of combined entries.
const Separator = "\n\n"

var (
	blankLinesRegex     = regexp.MustCompile(`\n{3,}`)
	trailingSpacesRegex = regexp.MustCompile(`[ \t]+\n`)
)

// markupTags are the elements that mark content as HTML. Anything else that
// looks like a tag, e.g. List<String>, is left as typed.
var markupTags = map[string]struct{}{
	"a": {}, "br": {}, "p": {}, "div": {}, "li": {}, "ul": {}, "ol": {},
	"span": {}, "strong": {}, "em": {}, "blockquote": {}, "pre": {}, "code": {},
}

// Format converts entry content to post text. HTML markup is flattened:
// line breaks and paragraphs become newlines, links keep their text and
// append the target when it differs from the text. Plain text, including
// stray < and & characters, passes through unchanged.
func Format(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	if hasMarkup(content) {
		content = flattenHTML(content)
	}

	content = trailingSpacesRegex.ReplaceAllString(content, "\n")
	content = blankLinesRegex.ReplaceAllString(content, Separator)

	return strings.TrimSpace(content)
}

// Join concatenates non-empty texts with Separator.
func Join(texts []string) string {
	parts := make([]string, 0, len(texts))

	for _, t := range texts {
		if t != "" {
			parts = append(parts, t)
		}
	}

	return strings.Join(parts, Separator)
}

// Length counts characters the way the post length limit is enforced.
func Length(s string) int {
	return utf8.RuneCountInString(s)
}

// hasMarkup reports whether content carries at least one complete tag of a
// known element.
func hasMarkup(content string) bool {
	if !strings.Contains(content, "<") {
		return false
	}

	z := html.NewTokenizer(strings.NewReader(content))

	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			if !strings.HasSuffix(string(z.Raw()), ">") {
				continue
			}

			name, _ := z.TagName()

			if _, ok := markupTags[string(name)]; ok {
				return true
			}
		}
	}
}

func flattenHTML(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))

	if err != nil {
		return content
	}

	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		label := strings.TrimSpace(s.Text())

		if href != "" && href != label {
			if label == "" {
				label = href
			} else {
				label += " (" + href + ")"
			}
		}

		s.ReplaceWithNodes(textNode(label))
	})

	doc.Find("br").ReplaceWithNodes(textNode("\n"))

	doc.Find("p, div, li").Each(func(_ int, s *goquery.Selection) {
		s.AppendNodes(textNode(Separator))
	})

	return doc.Text()
}

func textNode(data string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: data}
}
