package verify

import (
	"testing"
	"time"
)

func TestResolve(t *testing.T) {
	checker := NewChecker("https://psm.example.com/", 10*time.Second)

	cases := []struct {
		target string
		want   string
	}{
		{target: "/guides/phuket-villas", want: "https://psm.example.com/guides/phuket-villas"},
		{target: "guides/phuket-villas", want: "https://psm.example.com/guides/phuket-villas"},
		{target: "https://other.example.com/page", want: "https://other.example.com/page"},
	}
	for _, tc := range cases {
		got, err := checker.resolve(tc.target)
		if err != nil {
			t.Fatalf("resolve(%q): %v", tc.target, err)
		}
		if got != tc.want {
			t.Errorf("resolve(%q) = %q, want %q", tc.target, got, tc.want)
		}
	}
}

func TestLooksLikeNotFound(t *testing.T) {
	cases := []struct {
		title string
		want  bool
	}{
		{title: "Phuket Villa Guide | PSM", want: false},
		{title: "404 - Page Not Found", want: true},
		{title: "Not Found", want: true},
		{title: "This page does not exist", want: true},
		{title: "", want: false},
	}
	for _, tc := range cases {
		if got := LooksLikeNotFound(tc.title); got != tc.want {
			t.Errorf("LooksLikeNotFound(%q) = %v, want %v", tc.title, got, tc.want)
		}
	}
}
