// Package crawl drives one product identifier at a time through its review
// pages.
//
// The total page count is unknown up front: it is discovered from paging
// markers in the pages themselves, so the loop runs while the current page
// does not exceed the highest index seen so far. Each fetched page is turned
// into a Decision by a pure function (Decide) that looks only at the HTTP
// status, the content signals, the captcha mode and whether it is the first
// page:
//
//	200, no challenge           -> Continue (save, relieve pacing, advance)
//	200, challenge, page 1      -> RetrySamePage, pause doubled
//	200, challenge, strict mode -> RetrySamePage, pause doubled
//	200, challenge, lenient     -> Continue, pause +2
//	503                         -> RetrySamePage, pause +2
//	anything else               -> StopTarget
//
// Pages already present on disk are skipped on later runs, except page 1,
// which is always fetched again to refresh the page count.
//
// Example usage:
//
//	ctrl, err := crawl.New(f, store, signals.NewRegex(), crawl.DefaultConfig(), logger)
//	results, err := ctrl.RunAll(ctx, []string{"B00EXAMPLE"})
//
// Targets and pages are processed strictly one after another.
package crawl
