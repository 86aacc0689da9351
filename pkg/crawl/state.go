package crawl

import (
	"time"
)

// Target is one product identifier being crawled.
type Target struct {
	ID     string
	Domain string
}

// CrawlState is the mutable state of one target's loop. It is owned by a
// single Run call and never shared.
type CrawlState struct {
	Target Target

	// CurrentPage is the page about to be fetched (or fetched again).
	CurrentPage int

	// LastKnownPage is the highest page index seen in content. It never shrinks.
	LastKnownPage int

	// PauseSeconds is the delay slept after each completed read.
	PauseSeconds float64

	// RefererURL is the URL of the last successfully processed page.
	RefererURL string

	// Retries counts consecutive retries of CurrentPage.
	Retries int
}

// NewCrawlState returns the initial state of a target.
func NewCrawlState(target Target, pause float64, firstPageURL string) *CrawlState {
	return &CrawlState{
		Target:        target,
		CurrentPage:   1,
		LastKnownPage: 1,
		PauseSeconds:  pause,
		RefererURL:    firstPageURL,
	}
}

// HasMore reports whether the current page is within the known range.
func (s *CrawlState) HasMore() bool {
	return s.CurrentPage <= s.LastKnownPage
}

// Observe raises LastKnownPage to page if it is larger.
func (s *CrawlState) Observe(page int) bool {
	if page > s.LastKnownPage {
		s.LastKnownPage = page
		return true
	}
	return false
}

// Relieve relaxes pacing after a captured page.
func (s *CrawlState) Relieve() {
	if s.PauseSeconds >= ReliefThreshold {
		s.PauseSeconds -= ReliefStep
	}
}

// Advance records pageURL as the referer and moves to the next page.
func (s *CrawlState) Advance(pageURL string) {
	s.RefererURL = pageURL
	s.Retries = 0
	s.CurrentPage++
}

// Skip moves past a page already captured by an earlier run.
func (s *CrawlState) Skip() {
	s.Retries = 0
	s.CurrentPage++
}

// Pause returns PauseSeconds as a duration.
func (s *CrawlState) Pause() time.Duration {
	if s.PauseSeconds <= 0 {
		return 0
	}
	return time.Duration(s.PauseSeconds * float64(time.Second))
}
