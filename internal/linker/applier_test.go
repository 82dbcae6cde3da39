package linker

import (
	"errors"
	"strings"
	"testing"

	"interlink/api/internal/store"
)

func TestApplyPlanSingleInsertion(t *testing.T) {
	body := "Visit our Phuket villa guide today."
	catalog := map[string]store.LinkCatalogEntry{
		"L1": {ID: "L1", URL: "/guides/phuket-villas", IsActive: true, PageExists: true},
	}
	plan := PlanInjections(body, []Candidate{{LinkID: "L1", AnchorText: "villa guide"}}, catalog)
	if len(plan) != 1 {
		t.Fatalf("got %d plan entries, want 1", len(plan))
	}

	result, err := ApplyPlan(body, plan)
	if err != nil {
		t.Fatalf("ApplyPlan: %v", err)
	}
	want := `Visit our Phuket <a href="/guides/phuket-villas" class="internal-link">villa guide</a> today.`
	if result != want {
		t.Errorf("got  %q\nwant %q", result, want)
	}
}

func TestApplyPlanMultipleInsertionsNoDrift(t *testing.T) {
	filler := strings.Repeat("x", MinAnchorSpacing)
	body := "first anchor " + filler + " second anchor " + filler + " third anchor"
	plan := []InjectionPoint{
		{LinkID: "L1", URL: "/a", AnchorText: "first anchor", Start: strings.Index(body, "first anchor"), End: strings.Index(body, "first anchor") + len("first anchor")},
		{LinkID: "L2", URL: "/b", AnchorText: "second anchor", Start: strings.Index(body, "second anchor"), End: strings.Index(body, "second anchor") + len("second anchor")},
		{LinkID: "L3", URL: "/c", AnchorText: "third anchor", Start: strings.Index(body, "third anchor"), End: strings.Index(body, "third anchor") + len("third anchor")},
	}

	result, err := ApplyPlan(body, plan)
	if err != nil {
		t.Fatalf("ApplyPlan: %v", err)
	}
	for _, entry := range plan {
		wrapped := WrapLink(entry.AnchorText, entry.URL)
		if !strings.Contains(result, wrapped) {
			t.Errorf("result missing %q", wrapped)
		}
	}
	if got := strings.Count(result, "<a href="); got != 3 {
		t.Errorf("result has %d links, want 3", got)
	}
}

func TestApplyPlanIsPure(t *testing.T) {
	body := "some villa guide content"
	plan := []InjectionPoint{{LinkID: "L1", URL: "/v", AnchorText: "villa guide", Start: 5, End: 16}}
	first, err := ApplyPlan(body, plan)
	if err != nil {
		t.Fatalf("ApplyPlan: %v", err)
	}
	second, err := ApplyPlan(body, plan)
	if err != nil {
		t.Fatalf("ApplyPlan: %v", err)
	}
	if first != second {
		t.Error("ApplyPlan is not deterministic")
	}
	if !strings.HasPrefix(first, "some <a href=") {
		t.Errorf("unexpected result %q", first)
	}
}

func TestApplyPlanRejectsOverlap(t *testing.T) {
	body := "overlapping anchors here"
	plan := []InjectionPoint{
		{LinkID: "L1", URL: "/a", AnchorText: "overlapping anchors", Start: 0, End: 19},
		{LinkID: "L2", URL: "/b", AnchorText: "anchors here", Start: 12, End: 24},
	}
	if _, err := ApplyPlan(body, plan); !errors.Is(err, ErrOverlappingPlan) {
		t.Errorf("got err %v, want ErrOverlappingPlan", err)
	}
}

func TestApplyPlanRejectsOutOfRange(t *testing.T) {
	if _, err := ApplyPlan("short", []InjectionPoint{{LinkID: "L1", URL: "/a", Start: 2, End: 99}}); err == nil {
		t.Error("expected out-of-range error")
	}
}

func TestUnwrapLinkOnlyMarked(t *testing.T) {
	auto := WrapLink("villa guide", "/guides/phuket-villas")
	manual := `<a href="/guides/phuket-villas">hand placed</a>`
	body := "intro " + auto + " middle " + manual + " end"

	result, ok := UnwrapLink(body, "/guides/phuket-villas")
	if !ok {
		t.Fatal("expected the marked wrapper to unwrap")
	}
	if strings.Contains(result, "internal-link") {
		t.Errorf("marker class survived: %q", result)
	}
	if !strings.Contains(result, "villa guide") {
		t.Errorf("anchor text lost: %q", result)
	}
	if !strings.Contains(result, manual) {
		t.Errorf("hand-authored link was touched: %q", result)
	}
}

func TestUnwrapLinkNoMatch(t *testing.T) {
	body := "no wrappers at all"
	result, ok := UnwrapLink(body, "/guides/phuket-villas")
	if ok || result != body {
		t.Errorf("expected no-op, got ok=%v result=%q", ok, result)
	}
}
