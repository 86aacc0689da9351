package signals

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DOM answers the same questions as Regex by walking the parsed document,
// so markers in comments or inline scripts are not counted.
type DOM struct {
	paging *regexp.Regexp
}

// NewDOM returns a goquery based extractor.
func NewDOM() *DOM {
	return &DOM{paging: regexp.MustCompile(PagingMarkerPattern)}
}

const (
	pagingSelector    = "a[href], li, span, button"
	challengeSelector = `img[src*="/captcha/"], form[action*="validateCaptcha"]`
)

// MaxPageIndex implements Extractor.
func (d *DOM) MaxPageIndex(content string) (int, bool) {
	doc, err := parse(content)
	if err != nil {
		return 0, false
	}
	return d.maxPage(doc)
}

// IsChallengePage implements Extractor.
func (d *DOM) IsChallengePage(content string) bool {
	doc, err := parse(content)
	if err != nil {
		return false
	}
	return isChallenge(doc)
}

// Inspect implements Inspector, parsing content once.
func (d *DOM) Inspect(content string) Page {
	doc, err := parse(content)
	if err != nil {
		return Page{}
	}
	best, ok := d.maxPage(doc)
	return Page{Challenge: isChallenge(doc), MaxPage: best, HasMaxPage: ok}
}

func (d *DOM) maxPage(doc *goquery.Document) (int, bool) {
	best, ok := 0, false
	doc.Find(pagingSelector).Each(func(_ int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			for _, attr := range n.Attr {
				if attr.Key == "href" || attr.Key == "id" || attr.Key == "class" || strings.HasPrefix(attr.Key, "data-") {
					best, ok = maxIndex(d.paging, attr.Val, best, ok)
				}
			}
		}
	})
	return best, ok
}

func isChallenge(doc *goquery.Document) bool {
	return doc.Find(challengeSelector).Length() > 0
}

func parse(content string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(content))
}
