package linker

import (
	"strings"
	"testing"
)

func TestFindInjectionPointEarliestWins(t *testing.T) {
	body := "The villa guide is long. " + strings.Repeat("filler text ", 30) + "Another villa guide mention."
	span, ok := FindInjectionPoint(body, "villa guide", nil)
	if !ok {
		t.Fatal("expected a match")
	}
	want := strings.Index(body, "villa guide")
	if span.Start != want || span.End != want+len("villa guide") {
		t.Errorf("got span %+v, want start %d", span, want)
	}
}

func TestFindInjectionPointCaseInsensitive(t *testing.T) {
	body := "Read our Villa Guide today."
	span, ok := FindInjectionPoint(body, "villa guide", nil)
	if !ok {
		t.Fatal("expected a case-insensitive match")
	}
	if got := body[span.Start:span.End]; got != "Villa Guide" {
		t.Errorf("matched %q, want the document's own casing", got)
	}
}

func TestFindInjectionPointSpacing(t *testing.T) {
	// The only occurrence sits 50 characters after an accepted offset, well
	// under the 200-character minimum.
	body := strings.Repeat("x", 50) + "villa guide" + strings.Repeat("y", 300)
	if _, ok := FindInjectionPoint(body, "villa guide", []int{0}); ok {
		t.Error("expected occurrence 50 chars from accepted offset to be rejected")
	}

	// A second occurrence beyond the spacing window is accepted instead.
	body = strings.Repeat("x", 50) + "villa guide" + strings.Repeat("y", 300) + "villa guide tail"
	span, ok := FindInjectionPoint(body, "villa guide", []int{0})
	if !ok {
		t.Fatal("expected the distant occurrence to be accepted")
	}
	if span.Start < MinAnchorSpacing {
		t.Errorf("accepted offset %d is within the spacing window", span.Start)
	}
}

func TestFindInjectionPointSkipsUnsafeOccurrences(t *testing.T) {
	body := `<h2>Phuket Overview</h2>` + strings.Repeat("z", 10) + ` all about Phuket beaches`
	span, ok := FindInjectionPoint(body, "Phuket", nil)
	if !ok {
		t.Fatal("expected the occurrence outside the heading to be found")
	}
	if body[span.Start:span.End] != "Phuket" || span.Start < strings.Index(body, "</h2>") {
		t.Errorf("got span %+v inside the heading", span)
	}
}

func TestFindInjectionPointNone(t *testing.T) {
	if _, ok := FindInjectionPoint("nothing to see here", "villa guide", nil); ok {
		t.Error("expected no match")
	}
	if _, ok := FindInjectionPoint(`<h2>Phuket Overview</h2>`, "Phuket", nil); ok {
		t.Error("expected the only occurrence, inside a heading, to be rejected")
	}
	if _, ok := FindInjectionPoint("some body", "", nil); ok {
		t.Error("expected empty anchor to never match")
	}
}

func TestContextSnippetBounds(t *testing.T) {
	body := strings.Repeat("a", 200) + "anchor" + strings.Repeat("b", 200)
	span := Span{Start: 200, End: 206}
	snippet := ContextSnippet(body, span)
	if !strings.Contains(snippet, "anchor") {
		t.Fatalf("snippet %q does not contain the anchor", snippet)
	}
	if len(snippet) > 6+2*60 {
		t.Errorf("snippet length %d exceeds bound", len(snippet))
	}

	short := "tiny anchor body"
	if got := ContextSnippet(short, Span{Start: 5, End: 11}); got != short {
		t.Errorf("short body snippet = %q, want whole body", got)
	}
}
