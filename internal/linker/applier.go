package linker

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
)

// MarkerClass tags engine-authored links so later passes can tell them apart
// from hand-authored ones.
const MarkerClass = "internal-link"

// ErrOverlappingPlan means the plan violated the planner's non-overlap
// guarantee. This is a programming error, not bad input.
var ErrOverlappingPlan = errors.New("injection plan contains overlapping ranges")

// WrapLink produces the fixed wrapper element for an injected link.
func WrapLink(text, url string) string {
	return fmt.Sprintf(`<a href="%s" class="%s">%s</a>`, url, MarkerClass, text)
}

// ApplyPlan rewrites body with every plan entry wrapped in link markup. Pure:
// identical inputs give identical output, so it serves both preview and
// commit.
//
// Entries are applied highest offset first. Replacing from the back keeps
// every lower, not-yet-processed offset valid on the progressively rewritten
// string; this ordering is what makes multi-insertion edits correct without
// re-scanning.
func ApplyPlan(body string, plan []InjectionPoint) (string, error) {
	if len(plan) == 0 {
		return body, nil
	}

	ordered := make([]InjectionPoint, len(plan))
	copy(ordered, plan)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Start > ordered[j].Start })

	for i, entry := range ordered {
		if entry.Start < 0 || entry.End > len(body) || entry.Start >= entry.End {
			return "", fmt.Errorf("injection point %s out of range [%d,%d)", entry.LinkID, entry.Start, entry.End)
		}
		if i+1 < len(ordered) && ordered[i+1].End > entry.Start {
			return "", ErrOverlappingPlan
		}
	}

	result := body
	for _, entry := range ordered {
		before := result[:entry.Start]
		matched := result[entry.Start:entry.End]
		after := result[entry.End:]
		result = before + WrapLink(matched, entry.URL) + after
	}
	return result, nil
}

// UnwrapLink removes the first engine-authored wrapper pointing at url,
// keeping the anchor text as plain prose. Only wrappers carrying the marker
// class match; hand-authored links are never touched. Returns ok=false when
// no wrapper matched, e.g. the URL changed since insertion.
func UnwrapLink(body, url string) (string, bool) {
	pattern, err := regexp.Compile(`<a href="` + regexp.QuoteMeta(url) + `" class="` + MarkerClass + `">(.*?)</a>`)
	if err != nil {
		return body, false
	}
	loc := pattern.FindStringSubmatchIndex(body)
	if loc == nil {
		return body, false
	}
	return body[:loc[0]] + body[loc[2]:loc[3]] + body[loc[1]:], true
}
