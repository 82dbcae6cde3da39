package linker

import (
	"regexp"
	"strings"
)

// Optimization classifications derived from word count and link density.
const (
	ClassificationGood     = "good"
	ClassificationNeedsOpt = "needs_optimization"
	ClassificationOverOpt  = "over_optimized"
)

// OptimizationStatus is a pure derivation used for listing and reporting.
type OptimizationStatus struct {
	WordCount      int    `json:"wordCount"`
	ActualLinks    int    `json:"actualLinks"`
	IdealMin       int    `json:"idealMin"`
	IdealMax       int    `json:"idealMax"`
	Classification string `json:"classification"`
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Status classifies a document body: roughly one link per 300-500 words, with
// a floor capped at 3 and a ceiling capped at 7.
func Status(content string) OptimizationStatus {
	stripped := tagPattern.ReplaceAllString(content, " ")
	wordCount := len(strings.Fields(stripped))

	idealMin := wordCount / 500
	if idealMin > 3 {
		idealMin = 3
	}
	idealMax := (wordCount + 299) / 300
	if idealMax > 7 {
		idealMax = 7
	}

	actualLinks := strings.Count(strings.ToLower(content), "<a ")

	classification := ClassificationGood
	switch {
	case actualLinks < idealMin:
		classification = ClassificationNeedsOpt
	case actualLinks > idealMax:
		classification = ClassificationOverOpt
	}

	return OptimizationStatus{
		WordCount:      wordCount,
		ActualLinks:    actualLinks,
		IdealMin:       idealMin,
		IdealMax:       idealMax,
		Classification: classification,
	}
}
