package crawl

import (
	"fmt"
	"net/url"
	"strings"
)

const pagePathFormat = "/product-reviews/%s/?ie=UTF8&showViewpoints=0&pageNumber=%d&sortBy=bySubmissionDateDescending"

// SiteURL returns the site root for a locale, e.g. http://www.amazon.co.uk.
func SiteURL(domain string) string {
	return "http://www.amazon." + domain
}

// PageURL builds the review listing URL of one page under base.
func PageURL(base, id string, page int) string {
	return strings.TrimRight(base, "/") + fmt.Sprintf(pagePathFormat, url.PathEscape(id), page)
}
