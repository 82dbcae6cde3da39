package linker

import (
	"strings"
	"testing"

	"interlink/api/internal/store"
)

func testCatalog() map[string]store.LinkCatalogEntry {
	return map[string]store.LinkCatalogEntry{
		"L1": {ID: "L1", URL: "/guides/phuket-villas", IsActive: true, PageExists: true},
		"L2": {ID: "L2", URL: "/guides/beaches", IsActive: true, PageExists: true},
		"L3": {ID: "L3", URL: "/guides/retired", IsActive: false, PageExists: true},
		"L4": {ID: "L4", URL: "/guides/dead", IsActive: true, PageExists: false},
		"L5": {ID: "L5", URL: "/guides/food", IsActive: true, PageExists: true},
		"L6": {ID: "L6", URL: "/guides/diving", IsActive: true, PageExists: true},
		"L7": {ID: "L7", URL: "/guides/temples", IsActive: true, PageExists: true},
	}
}

// spacedBody builds a body where each phrase is separated by enough filler to
// satisfy the minimum spacing rule.
func spacedBody(phrases ...string) string {
	filler := strings.Repeat("lorem ipsum dolor sit amet ", 10)
	return strings.Join(phrases, " "+filler)
}

func TestPlanInjectionsHappyPath(t *testing.T) {
	body := spacedBody("our villa guide here", "white sand beaches there")
	plan := PlanInjections(body, []Candidate{
		{LinkID: "L1", AnchorText: "villa guide"},
		{LinkID: "L2", AnchorText: "beaches"},
	}, testCatalog())

	if len(plan) != 2 {
		t.Fatalf("got %d plan entries, want 2", len(plan))
	}
	if plan[0].LinkID != "L1" || plan[0].URL != "/guides/phuket-villas" {
		t.Errorf("unexpected first entry %+v", plan[0])
	}
	for _, entry := range plan {
		if body[entry.Start:entry.End] != entry.AnchorText {
			t.Errorf("entry %s anchor %q does not match body range", entry.LinkID, entry.AnchorText)
		}
	}
}

func TestPlanInjectionsDropsInvalidCandidates(t *testing.T) {
	body := spacedBody("villa guide", "beaches", "retired page", "dead page", "ok")
	plan := PlanInjections(body, []Candidate{
		{LinkID: "unknown", AnchorText: "villa guide"},
		{LinkID: "L3", AnchorText: "retired page"},
		{LinkID: "L4", AnchorText: "dead page"},
		{LinkID: "L1", AnchorText: "ok"}, // too short
		{LinkID: "L1", AnchorText: "  x "},
		{LinkID: "L2", AnchorText: "beaches"},
	}, testCatalog())

	if len(plan) != 1 {
		t.Fatalf("got %d plan entries, want only the valid one", len(plan))
	}
	if plan[0].LinkID != "L2" {
		t.Errorf("surviving entry = %+v, want L2", plan[0])
	}
}

func TestPlanInjectionsCap(t *testing.T) {
	body := spacedBody("villa guide", "beaches", "thai food", "diving spots", "old temples", "one more villa guide")
	plan := PlanInjections(body, []Candidate{
		{LinkID: "L1", AnchorText: "villa guide"},
		{LinkID: "L2", AnchorText: "beaches"},
		{LinkID: "L5", AnchorText: "thai food"},
		{LinkID: "L6", AnchorText: "diving spots"},
		{LinkID: "L7", AnchorText: "old temples"},
	}, testCatalog())

	if len(plan) != MaxInjectionsPerPlan {
		t.Fatalf("got %d plan entries, want the cap of %d", len(plan), MaxInjectionsPerPlan)
	}
}

func TestPlanInjectionsSpacingBetweenCandidates(t *testing.T) {
	// Both anchors resolve 50 characters apart; only the first fits.
	body := "visit the villa guide and nearby beaches today"
	plan := PlanInjections(body, []Candidate{
		{LinkID: "L1", AnchorText: "villa guide"},
		{LinkID: "L2", AnchorText: "beaches"},
	}, testCatalog())

	if len(plan) != 1 {
		t.Fatalf("got %d plan entries, want 1 after spacing rejection", len(plan))
	}
	if plan[0].LinkID != "L1" {
		t.Errorf("kept entry = %+v, want the first candidate", plan[0])
	}
}

func TestPlanInjectionsNonOverlapProperty(t *testing.T) {
	body := spacedBody("villa guide top", "beaches middle", "thai food end", "diving spots deep")
	plan := PlanInjections(body, []Candidate{
		{LinkID: "L1", AnchorText: "villa guide"},
		{LinkID: "L2", AnchorText: "beaches"},
		{LinkID: "L5", AnchorText: "thai food"},
		{LinkID: "L6", AnchorText: "diving spots"},
	}, testCatalog())

	for i := range plan {
		for j := i + 1; j < len(plan); j++ {
			a, b := plan[i], plan[j]
			if a.Start < b.End && b.Start < a.End {
				t.Errorf("entries %d and %d overlap: %+v %+v", i, j, a, b)
			}
			distance := a.Start - b.Start
			if distance < 0 {
				distance = -distance
			}
			if distance < MinAnchorSpacing {
				t.Errorf("entries %d and %d closer than %d: %+v %+v", i, j, MinAnchorSpacing, a, b)
			}
		}
		if IsUnsafeOffset(body, plan[i].Start) {
			t.Errorf("entry %d sits at an unsafe offset: %+v", i, plan[i])
		}
	}
}
