// Package signals extracts crawl-control signals from fetched review pages:
// the highest page index referenced by the paging control, and whether the
// page is an anti-bot challenge instead of real content.
package signals

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrUnknownExtractor is returned by ByName for an unsupported extractor name.
var ErrUnknownExtractor = errors.New("unknown extractor")

// Extractor inspects page content for crawl-control signals.
// Implementations must be pure: same content, same answer.
type Extractor interface {
	// MaxPageIndex returns the largest page number referenced by paging
	// markers in content. ok is false when no valid marker was found.
	MaxPageIndex(content string) (page int, ok bool)

	// IsChallengePage reports whether content is an anti-bot challenge.
	IsChallengePage(content string) bool
}

// Page signals of a single fetched page.
type Page struct {
	Challenge  bool
	MaxPage    int
	HasMaxPage bool
}

// Inspector is implemented by extractors that can answer both questions
// in one pass over content.
type Inspector interface {
	Inspect(content string) Page
}

// Inspect runs both extractor checks over content.
func Inspect(e Extractor, content string) Page {
	if in, ok := e.(Inspector); ok {
		return in.Inspect(content)
	}
	best, ok := e.MaxPageIndex(content)
	return Page{
		Challenge:  e.IsChallengePage(content),
		MaxPage:    best,
		HasMaxPage: ok,
	}
}

// Marker patterns used by the review listing.
const (
	PagingMarkerPattern    = `cm_cr_arp_d_paging_btm_([0-9]+)`
	ChallengeMarkerPattern = `images-amazon\.com/captcha/`
)

// Regex matches paging and challenge markers with regular expressions.
type Regex struct {
	paging    *regexp.Regexp
	challenge *regexp.Regexp
}

// NewRegex returns the default regex extractor.
func NewRegex() *Regex {
	return &Regex{
		paging:    regexp.MustCompile(PagingMarkerPattern),
		challenge: regexp.MustCompile(ChallengeMarkerPattern),
	}
}

// NewRegexWith builds a regex extractor from custom patterns. The paging
// pattern must have one capture group holding the page number.
func NewRegexWith(paging, challenge string) (*Regex, error) {
	p, err := regexp.Compile(paging)
	if err != nil {
		return nil, fmt.Errorf("compile paging pattern: %w", err)
	}
	if p.NumSubexp() < 1 {
		return nil, fmt.Errorf("paging pattern %q has no capture group", paging)
	}
	c, err := regexp.Compile(challenge)
	if err != nil {
		return nil, fmt.Errorf("compile challenge pattern: %w", err)
	}
	return &Regex{paging: p, challenge: c}, nil
}

// MaxPageIndex implements Extractor.
func (r *Regex) MaxPageIndex(content string) (int, bool) {
	return maxIndex(r.paging, content, 0, false)
}

// IsChallengePage implements Extractor.
func (r *Regex) IsChallengePage(content string) bool {
	return r.challenge.MatchString(content)
}

// maxIndex folds every paging match found in s into (best, ok).
// Matches that do not parse as an int are ignored.
func maxIndex(re *regexp.Regexp, s string, best int, ok bool) (int, bool) {
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		v, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if !ok || v > best {
			best, ok = v, true
		}
	}
	return best, ok
}

// ByName returns the extractor registered under name ("regex" or "dom").
func ByName(name string) (Extractor, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "regex":
		return NewRegex(), nil
	case "dom":
		return NewDOM(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExtractor, name)
	}
}
