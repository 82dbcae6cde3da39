package linker

import (
	"strings"
	"unicode/utf8"

	"interlink/api/internal/store"
)

const (
	// MaxInjectionsPerPlan caps how many links one planning pass may accept.
	MaxInjectionsPerPlan = 4
	// Anchors shorter than this are too ambiguous to place safely.
	minAnchorRunes = 3
)

// Candidate is an unvalidated {linkId, anchorText} proposal. Candidates come
// from an external generator and are treated as untrusted input.
type Candidate struct {
	LinkID     string `json:"linkId"`
	AnchorText string `json:"anchorText"`
}

// InjectionPoint is one accepted, resolved insertion in a plan.
type InjectionPoint struct {
	LinkID     string `json:"linkId"`
	URL        string `json:"url"`
	AnchorText string `json:"anchorText"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
}

// PlanInjections validates candidates against the catalog snapshot and the
// document body and returns the accepted plan in input order. Invalid
// candidates are dropped, never raised: unknown, inactive, or dead-page link
// ids, anchors under three characters, anchors with no safe occurrence, and
// anything past the per-plan cap.
func PlanInjections(body string, candidates []Candidate, catalog map[string]store.LinkCatalogEntry) []InjectionPoint {
	plan := make([]InjectionPoint, 0, MaxInjectionsPerPlan)
	acceptedOffsets := make([]int, 0, MaxInjectionsPerPlan)

	for _, candidate := range candidates {
		if len(plan) >= MaxInjectionsPerPlan {
			break
		}

		entry, ok := catalog[candidate.LinkID]
		if !ok || !entry.IsActive || !entry.PageExists {
			continue
		}

		anchor := strings.TrimSpace(candidate.AnchorText)
		if utf8.RuneCountInString(anchor) < minAnchorRunes {
			continue
		}

		span, ok := FindInjectionPoint(body, anchor, acceptedOffsets)
		if !ok {
			continue
		}

		plan = append(plan, InjectionPoint{
			LinkID: entry.ID,
			URL:    entry.URL,
			// Keep the exact substring found, not the candidate's casing.
			AnchorText: body[span.Start:span.End],
			Start:      span.Start,
			End:        span.End,
		})
		acceptedOffsets = append(acceptedOffsets, span.Start)
	}
	return plan
}
