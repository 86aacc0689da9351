package crawl

import (
	"testing"
	"time"

	"github.com/aesuli/amadown2py/pkg/signals"
)

func TestDecide(t *testing.T) {
	plain := signals.Page{MaxPage: 7, HasMaxPage: true}
	challenge := signals.Page{Challenge: true}

	tests := []struct {
		name       string
		obs        Observation
		strict     bool
		firstPage  bool
		wantAction Action
		wantPause  PauseChange
		wantReason string
	}{
		{
			name:       "normal page",
			obs:        Observation{StatusCode: 200, HasContent: true, Signals: plain},
			wantAction: Continue,
			wantReason: ReasonCaptured,
		},
		{
			name:       "rate limited",
			obs:        Observation{StatusCode: 503, HasContent: true},
			wantAction: RetrySamePage,
			wantPause:  PauseChange{Op: PauseAdd, Delta: 2},
			wantReason: ReasonRateLimited,
		},
		{
			name:       "rate limited without body",
			obs:        Observation{StatusCode: 503},
			wantAction: RetrySamePage,
			wantPause:  PauseChange{Op: PauseAdd, Delta: 2},
			wantReason: ReasonRateLimited,
		},
		{
			name:       "not found",
			obs:        Observation{StatusCode: 404, HasContent: true},
			wantAction: StopTarget,
			wantReason: ReasonFetchFailed,
		},
		{
			name:       "server error",
			obs:        Observation{StatusCode: 500, HasContent: true},
			wantAction: StopTarget,
			wantReason: ReasonFetchFailed,
		},
		{
			name:       "empty 200",
			obs:        Observation{StatusCode: 200},
			wantAction: StopTarget,
			wantReason: ReasonFetchFailed,
		},
		{
			name:       "challenge on first page",
			obs:        Observation{StatusCode: 200, HasContent: true, Signals: challenge},
			firstPage:  true,
			wantAction: RetrySamePage,
			wantPause:  PauseChange{Op: PauseDouble},
			wantReason: ReasonChallenge,
		},
		{
			name:       "challenge in strict mode",
			obs:        Observation{StatusCode: 200, HasContent: true, Signals: challenge},
			strict:     true,
			wantAction: RetrySamePage,
			wantPause:  PauseChange{Op: PauseDouble},
			wantReason: ReasonChallenge,
		},
		{
			name:       "challenge tolerated",
			obs:        Observation{StatusCode: 200, HasContent: true, Signals: challenge},
			wantAction: Continue,
			wantPause:  PauseChange{Op: PauseAdd, Delta: 2},
			wantReason: ReasonChallengeTolerated,
		},
		{
			name:       "challenge marker ignored on error status",
			obs:        Observation{StatusCode: 404, HasContent: true, Signals: challenge},
			firstPage:  true,
			wantAction: StopTarget,
			wantReason: ReasonFetchFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.obs, tt.strict, tt.firstPage)
			if d.Action != tt.wantAction {
				t.Errorf("Action = %v, want %v", d.Action, tt.wantAction)
			}
			if d.Pause != tt.wantPause {
				t.Errorf("Pause = %+v, want %+v", d.Pause, tt.wantPause)
			}
			if d.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", d.Reason, tt.wantReason)
			}
		})
	}
}

func TestPauseChange_Apply(t *testing.T) {
	tests := []struct {
		change PauseChange
		pause  float64
		want   float64
	}{
		{PauseChange{}, 1.5, 1.5},
		{PauseChange{Op: PauseAdd, Delta: 2}, 1, 3},
		{PauseChange{Op: PauseDouble}, 1.5, 3},
		{PauseChange{Op: PauseDouble}, 0, 0},
	}
	for _, tt := range tests {
		if got := tt.change.Apply(tt.pause); got != tt.want {
			t.Errorf("%+v.Apply(%v) = %v, want %v", tt.change, tt.pause, got, tt.want)
		}
	}
}

func TestAction_String(t *testing.T) {
	if got := RetrySamePage.String(); got != "retry_same_page" {
		t.Errorf("String() = %q, want retry_same_page", got)
	}
	if got := Action(42).String(); got != "unknown" {
		t.Errorf("String() = %q, want unknown", got)
	}
}

func TestCrawlState_Relieve(t *testing.T) {
	tests := []struct {
		pause float64
		want  float64
	}{
		{0, 0},
		{1, 1},
		{1.9, 1.9},
		{2, 1},
		{5, 4},
	}
	for _, tt := range tests {
		s := &CrawlState{PauseSeconds: tt.pause}
		s.Relieve()
		if s.PauseSeconds != tt.want {
			t.Errorf("Relieve(%v) = %v, want %v", tt.pause, s.PauseSeconds, tt.want)
		}
	}
}

func TestCrawlState_ObserveNeverShrinks(t *testing.T) {
	s := NewCrawlState(Target{ID: "X", Domain: "com"}, 1, "u1")

	if !s.Observe(5) {
		t.Error("Observe(5) = false, want true")
	}
	if s.Observe(3) {
		t.Error("Observe(3) = true, want false")
	}
	if s.LastKnownPage != 5 {
		t.Errorf("LastKnownPage = %d, want 5", s.LastKnownPage)
	}
}

func TestCrawlState_AdvanceAndSkip(t *testing.T) {
	s := NewCrawlState(Target{ID: "X", Domain: "com"}, 1, "u1")
	if s.CurrentPage != 1 || s.RefererURL != "u1" {
		t.Fatalf("initial state = %+v", s)
	}

	s.Retries = 2
	s.Advance("u1")
	if s.CurrentPage != 2 || s.Retries != 0 || s.RefererURL != "u1" {
		t.Errorf("after Advance: %+v", s)
	}

	s.Skip()
	if s.CurrentPage != 3 || s.RefererURL != "u1" {
		t.Errorf("after Skip: %+v", s)
	}
	if s.HasMore() {
		t.Error("HasMore() = true with current page past last known page")
	}
}

func TestCrawlState_Pause(t *testing.T) {
	s := &CrawlState{PauseSeconds: 1.5}
	if got := s.Pause(); got != 1500*time.Millisecond {
		t.Errorf("Pause() = %v, want 1.5s", got)
	}
	s.PauseSeconds = -1
	if got := s.Pause(); got != 0 {
		t.Errorf("Pause() = %v, want 0", got)
	}
}

func TestPageURL(t *testing.T) {
	tests := []struct {
		base string
		id   string
		page int
		want string
	}{
		{
			base: SiteURL("com"),
			id:   "B00EXAMPLE",
			page: 1,
			want: "http://www.amazon.com/product-reviews/B00EXAMPLE/?ie=UTF8&showViewpoints=0&pageNumber=1&sortBy=bySubmissionDateDescending",
		},
		{
			base: SiteURL("co.uk"),
			id:   "0123456789",
			page: 12,
			want: "http://www.amazon.co.uk/product-reviews/0123456789/?ie=UTF8&showViewpoints=0&pageNumber=12&sortBy=bySubmissionDateDescending",
		},
		{
			base: "http://127.0.0.1:8080/",
			id:   "B1",
			page: 2,
			want: "http://127.0.0.1:8080/product-reviews/B1/?ie=UTF8&showViewpoints=0&pageNumber=2&sortBy=bySubmissionDateDescending",
		},
	}
	for _, tt := range tests {
		if got := PageURL(tt.base, tt.id, tt.page); got != tt.want {
			t.Errorf("PageURL(%q, %q, %d) = %q, want %q", tt.base, tt.id, tt.page, got, tt.want)
		}
	}
}
