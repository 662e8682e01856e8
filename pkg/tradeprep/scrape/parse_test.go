package scrape

import (
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const listingHTML = `<html><body>
<div class="view-header"><p>Displaying 1 - 20 of 45</p></div>
<table>
<thead><tr><th>Pub #</th><th>Title</th><th>Date</th><th>Subject</th><th>Type</th></tr></thead>
<tbody>
<tr>
  <td><a href="/publications/701_731/pub5001.pdf">5001</a></td>
  <td><a href="/publications/steel-wire-rod">Certain Steel Wire Rod</a> <em>from</em> China</td>
  <td>01/02/2020</td><td>Import Injury</td><td>Final</td>
</tr>
<tr><td>5002</td><td>Number Not Used</td><td></td><td></td><td></td></tr>
<tr><td>5003</td><td>Footwear</td><td>03/04/2020</td><td>Section 332</td></tr>
<tr><td>5004</td><td>Fresh Garlic</td><td>2021</td><td>Import Injury</td><td>Review</td></tr>
</tbody>
</table>
</body></html>`

func TestParsePublications(t *testing.T) {
	base, _ := url.Parse(DefaultBaseURL)

	got, err := ParsePublications(listingHTML, base)
	if err != nil {
		t.Fatalf("ParsePublications: %v", err)
	}
	want := []Publication{
		{
			PubNumber:   "5001",
			Title:       "Certain Steel Wire Rod from China",
			Date:        "01/02/2020",
			Subject:     "Import Injury",
			Type:        "Final",
			Link:        "https://www.usitc.gov/publications/steel-wire-rod",
			PubFileLink: "/publications/701_731/pub5001.pdf",
		},
		{PubNumber: "5004", Title: "Fresh Garlic", Date: "2021", Subject: "Import Injury", Type: "Review"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("publications mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePublicationsNoTable(t *testing.T) {
	got, err := ParsePublications("<html><body><p>Challenge</p></body></html>", nil)
	if err != nil {
		t.Fatalf("ParsePublications: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no publications, got %+v", got)
	}
}

func TestParseTotalPages(t *testing.T) {
	tests := []struct {
		name string
		html string
		want int
	}{
		{name: "displaying banner", html: listingHTML, want: 2},
		{name: "exact multiple", html: "<div>Displaying 1 - 20 of 40</div>", want: 1},
		{
			name: "pager fallback",
			html: `<ul>
<li class="usa-pagination__item usa-pagination__page-no"><a>1</a></li>
<li class="usa-pagination__item usa-pagination__page-no"><a>7</a></li>
<li class="usa-pagination__item usa-pagination__overflow">…</li>
<li class="usa-pagination__item usa-pagination__page-no"><a>3</a></li>
</ul>`,
			want: 6,
		},
		{name: "nothing", html: "<p>empty</p>", want: 0},
		{name: "no results", html: "<div>Displaying 0 - 0 of 0</div>", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTotalPages(tt.html)
			if err != nil {
				t.Fatalf("ParseTotalPages: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseTotalPages = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTopSubjects(t *testing.T) {
	pubs := []Publication{
		{Subject: "Import Injury"}, {Subject: "Section 332"}, {Subject: "Import Injury"},
		{Subject: "Antidumping"}, {Subject: "Section 332"}, {Subject: "Import Injury"},
	}
	want := []SubjectCount{{Subject: "Import Injury", Count: 3}, {Subject: "Section 332", Count: 2}}
	if diff := cmp.Diff(want, TopSubjects(pubs, 2)); diff != "" {
		t.Errorf("TopSubjects mismatch (-want +got):\n%s", diff)
	}
}
