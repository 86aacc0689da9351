package signals

import (
	"errors"
	"testing"
)

const reviewPage = `<html><body>
<div id="cm_cr-review_list">review text</div>
<ul class="a-pagination">
  <li class="a-normal" data-reftag="cm_cr_arp_d_paging_btm_2"><a href="/product-reviews/B000TEST/ref=cm_cr_arp_d_paging_btm_2?pageNumber=2">2</a></li>
  <li class="a-normal"><a href="/product-reviews/B000TEST/ref=cm_cr_arp_d_paging_btm_3?pageNumber=3">3</a></li>
  <li class="a-last"><a href="/product-reviews/B000TEST/ref=cm_cr_arp_d_paging_btm_next_2?pageNumber=2">Next</a></li>
  <li class="a-normal"><a href="/product-reviews/B000TEST/ref=cm_cr_arp_d_paging_btm_17?pageNumber=17">17</a></li>
</ul>
</body></html>`

const challengePage = `<html><body>
<form method="get" action="/errors/validateCaptcha">
  <img src="https://images-na.ssl-images-amazon.com/captcha/abcdef/Captcha_xyz.jpg">
</form>
</body></html>`

func extractors() map[string]Extractor {
	return map[string]Extractor{
		"regex": NewRegex(),
		"dom":   NewDOM(),
	}
}

func TestMaxPageIndex(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantOK  bool
	}{
		{name: "paging control", content: reviewPage, want: 17, wantOK: true},
		{name: "no markers", content: `<html><body><p>only one page</p></body></html>`, want: 0, wantOK: false},
		{name: "single marker", content: `<a href="x/ref=cm_cr_arp_d_paging_btm_4">4</a>`, want: 4, wantOK: true},
		{
			name:    "overflowing number ignored",
			content: `<a href="ref=cm_cr_arp_d_paging_btm_99999999999999999999999">x</a><a href="ref=cm_cr_arp_d_paging_btm_6">6</a>`,
			want:    6,
			wantOK:  true,
		},
		{name: "empty content", content: "", want: 0, wantOK: false},
	}

	for name, e := range extractors() {
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				got, ok := e.MaxPageIndex(tt.content)
				if got != tt.want || ok != tt.wantOK {
					t.Errorf("MaxPageIndex() = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantOK)
				}
			})
		}
	}
}

func TestIsChallengePage(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{name: "captcha form", content: challengePage, want: true},
		{name: "review page", content: reviewPage, want: false},
		{name: "empty", content: "", want: false},
	}

	for name, e := range extractors() {
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				if got := e.IsChallengePage(tt.content); got != tt.want {
					t.Errorf("IsChallengePage() = %v, want %v", got, tt.want)
				}
			})
		}
	}
}

func TestDOM_IgnoresMarkersOutsideMarkup(t *testing.T) {
	content := `<html><body><!-- cm_cr_arp_d_paging_btm_40 --><script>var s="images-amazon.com/captcha/";</script>
<a href="ref=cm_cr_arp_d_paging_btm_3">3</a></body></html>`

	d := NewDOM()
	if got, ok := d.MaxPageIndex(content); !ok || got != 3 {
		t.Errorf("MaxPageIndex() = (%d, %v), want (3, true)", got, ok)
	}
	if d.IsChallengePage(content) {
		t.Error("IsChallengePage() = true, want false for a script-only mention")
	}

	// The regex extractor sees raw text, so both markers count there.
	r := NewRegex()
	if got, _ := r.MaxPageIndex(content); got != 40 {
		t.Errorf("regex MaxPageIndex() = %d, want 40", got)
	}
	if !r.IsChallengePage(content) {
		t.Error("regex IsChallengePage() = false, want true")
	}
}

func TestInspect(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Page
	}{
		{name: "review page", content: reviewPage, want: Page{MaxPage: 17, HasMaxPage: true}},
		{name: "challenge page", content: challengePage, want: Page{Challenge: true}},
		{name: "empty", content: "", want: Page{}},
	}

	for name, e := range extractors() {
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				if got := Inspect(e, tt.content); got != tt.want {
					t.Errorf("Inspect() = %+v, want %+v", got, tt.want)
				}
			})
		}
	}
}

func TestDOM_InspectMatchesSeparateChecks(t *testing.T) {
	d := NewDOM()
	var _ Inspector = d

	for _, content := range []string{reviewPage, challengePage, reviewPage + challengePage} {
		best, ok := d.MaxPageIndex(content)
		want := Page{Challenge: d.IsChallengePage(content), MaxPage: best, HasMaxPage: ok}
		if got := d.Inspect(content); got != want {
			t.Errorf("Inspect() = %+v, want %+v", got, want)
		}
	}
}

func TestNewRegexWith(t *testing.T) {
	if _, err := NewRegexWith(`page_[0-9]+`, `captcha`); err == nil {
		t.Error("expected error for pattern without capture group")
	}
	if _, err := NewRegexWith(`(`, `captcha`); err == nil {
		t.Error("expected error for invalid paging pattern")
	}

	r, err := NewRegexWith(`page_([0-9]+)`, `robot`)
	if err != nil {
		t.Fatalf("NewRegexWith() error = %v", err)
	}
	if got, ok := r.MaxPageIndex("page_2 page_9 page_5"); !ok || got != 9 {
		t.Errorf("MaxPageIndex() = (%d, %v), want (9, true)", got, ok)
	}
	if !r.IsChallengePage("are you a robot?") {
		t.Error("IsChallengePage() = false, want true")
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"", "regex", "DOM"} {
		if _, err := ByName(name); err != nil {
			t.Errorf("ByName(%q) error = %v", name, err)
		}
	}
	if _, err := ByName("xpath"); !errors.Is(err, ErrUnknownExtractor) {
		t.Errorf("ByName(\"xpath\") error = %v, want ErrUnknownExtractor", err)
	}
}
