package linker

import (
	"strings"
	"testing"
)

func bodyWithWordsAndLinks(words, links int) string {
	var b strings.Builder
	b.WriteString("<p>")
	for i := 0; i < words; i++ {
		b.WriteString("word ")
	}
	for i := 0; i < links; i++ {
		b.WriteString(`<a href="/x">link</a> `)
	}
	b.WriteString("</p>")
	return b.String()
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		name      string
		words     int
		links     int
		wantClass string
	}{
		{name: "short body no links is fine", words: 100, links: 0, wantClass: ClassificationGood},
		{name: "long body no links", words: 1500, links: 0, wantClass: ClassificationNeedsOpt},
		{name: "long body well linked", words: 1500, links: 4, wantClass: ClassificationGood},
		{name: "over linked", words: 300, links: 5, wantClass: ClassificationOverOpt},
		{name: "very long body capped ceiling", words: 5000, links: 7, wantClass: ClassificationGood},
		{name: "very long body above capped ceiling", words: 5000, links: 8, wantClass: ClassificationOverOpt},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status := Status(bodyWithWordsAndLinks(tc.words, tc.links))
			if status.Classification != tc.wantClass {
				t.Errorf("classification = %q (status %+v), want %q", status.Classification, status, tc.wantClass)
			}
		})
	}
}

func TestStatusBounds(t *testing.T) {
	status := Status(bodyWithWordsAndLinks(5000, 0))
	if status.IdealMin != 3 {
		t.Errorf("IdealMin = %d, want floor capped at 3", status.IdealMin)
	}
	if status.IdealMax != 7 {
		t.Errorf("IdealMax = %d, want ceiling capped at 7", status.IdealMax)
	}
}

func TestStatusStripsMarkupFromWordCount(t *testing.T) {
	status := Status(`<div class="wide body markup"><p>only four words here</p></div>`)
	if status.WordCount != 4 {
		t.Errorf("WordCount = %d, want 4", status.WordCount)
	}
}
