package linker

import "strings"

// The three hazards that make an offset unsafe for link insertion: the offset
// sits inside an open markup tag, inside an existing hyperlink element, or
// inside a heading element. Detection is positional over the prefix before the
// offset; it does not validate that the markup is well formed.

var headingOpenMarkers = []string{"<h1", "<h2", "<h3", "<h4", "<h5", "<h6"}
var headingCloseMarkers = []string{"</h1", "</h2", "</h3", "</h4", "</h5", "</h6"}

// IsUnsafeOffset reports whether inserting markup at offset would corrupt the
// document. Pure and deterministic; cost is linear in the prefix length, so
// callers should only probe candidate occurrence offsets.
func IsUnsafeOffset(body string, offset int) bool {
	if offset <= 0 {
		return false
	}
	if offset > len(body) {
		offset = len(body)
	}
	prefix := strings.ToLower(body[:offset])

	// Inside an open tag: the nearest '<' has no matching '>' yet.
	lastOpen := strings.LastIndex(prefix, "<")
	lastClose := strings.LastIndex(prefix, ">")
	if lastOpen > lastClose {
		return true
	}

	// Inside an existing hyperlink: the nearest <a ...> precedes the nearest </a>.
	if lastMarker(prefix, "<a ", "<a>") > strings.LastIndex(prefix, "</a>") {
		return true
	}

	// Inside a heading element.
	if lastMarker(prefix, headingOpenMarkers...) > lastMarker(prefix, headingCloseMarkers...) {
		return true
	}

	return false
}

func lastMarker(prefix string, markers ...string) int {
	best := -1
	for _, marker := range markers {
		if idx := strings.LastIndex(prefix, marker); idx > best {
			best = idx
		}
	}
	return best
}
