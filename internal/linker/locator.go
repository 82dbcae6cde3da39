package linker

import "strings"

// MinAnchorSpacing is the minimum distance in characters between two injected
// links. Closer matches are rejected so pages do not end up with clusters of
// adjacent links.
const MinAnchorSpacing = 200

// Span is a half-open [Start, End) character range in a document body.
type Span struct {
	Start int
	End   int
}

// FindInjectionPoint scans body forward for the earliest safe, well-spaced,
// case-insensitive occurrence of anchorText. acceptedOffsets are the start
// offsets of previously accepted injections in the same planning pass.
//
// A "could not place" outcome is normal and reported via ok=false, never as an
// error.
func FindInjectionPoint(body, anchorText string, acceptedOffsets []int) (Span, bool) {
	if anchorText == "" {
		return Span{}, false
	}
	lowerBody := strings.ToLower(body)
	lowerAnchor := strings.ToLower(anchorText)

	cursor := 0
	for cursor <= len(lowerBody)-len(lowerAnchor) {
		rel := strings.Index(lowerBody[cursor:], lowerAnchor)
		if rel < 0 {
			return Span{}, false
		}
		p := cursor + rel

		if tooClose(p, acceptedOffsets) || IsUnsafeOffset(body, p) {
			// Advance one character past the rejected match so overlapping
			// occurrences of the same substring are still considered.
			cursor = p + 1
			continue
		}
		return Span{Start: p, End: p + len(anchorText)}, true
	}
	return Span{}, false
}

func tooClose(offset int, acceptedOffsets []int) bool {
	for _, accepted := range acceptedOffsets {
		distance := offset - accepted
		if distance < 0 {
			distance = -distance
		}
		if distance < MinAnchorSpacing {
			return true
		}
	}
	return false
}

// ContextSnippet extracts a bounded excerpt around a span for audit records.
func ContextSnippet(body string, span Span) string {
	const radius = 60
	start := span.Start - radius
	if start < 0 {
		start = 0
	}
	end := span.End + radius
	if end > len(body) {
		end = len(body)
	}
	// Avoid splitting UTF-8 sequences at the excerpt edges.
	for start > 0 && body[start]&0xC0 == 0x80 {
		start--
	}
	for end < len(body) && body[end]&0xC0 == 0x80 {
		end++
	}
	return body[start:end]
}
