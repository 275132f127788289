package intent

import (
	"regexp"
	"strings"

	"github.com/ternarybob/consilium/internal/models"
)

// Rule tables are compiled once at package init. Classification is a pure
// function of the question text plus these tables: no I/O, no side effects.

// structuredPatterns match numeric/aggregate phrasing that needs the
// structured data backend
var structuredPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bhow\s+many\b`),
	regexp.MustCompile(`(?i)\bcount\b`),
	regexp.MustCompile(`(?i)\bnumber\s+of\b`),
	regexp.MustCompile(`(?i)\b(average|mean|median|percentage|percent|rate|ratio)\b`),
	regexp.MustCompile(`(?i)\b(total|sum)\b.*\b(patients?|admissions?|visits?|claims?|records?|cases?)\b`),
	regexp.MustCompile(`(?i)\b(trend|breakdown|per\s+(month|quarter|year|department))\b`),
	regexp.MustCompile(`(?i)\b(last|this|previous)\s+(week|month|quarter|year)\b`),
	regexp.MustCompile(`(?i)\b(top|highest|lowest|most|least)\s+\d*\s*\w+\s+(by|in)\b`),
	regexp.MustCompile(`(?i)\bcompare[ds]?\b.*\b(numbers?|figures?|volumes?|counts?)\b`),
}

// unstructuredPatterns match procedural/policy phrasing that needs the
// document search backend
var unstructuredPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(guideline|guidance|protocol|policy|policies|procedure)\b`),
	regexp.MustCompile(`(?i)\b(recommend(ation|ed)?|best\s+practice)\b`),
	regexp.MustCompile(`(?i)\bwhat\s+(is|are)\s+the\s+(steps?|process)\b`),
	regexp.MustCompile(`(?i)\bhow\s+(do|should|to)\b`),
	regexp.MustCompile(`(?i)\b(explain|describe|summari[sz]e|overview\s+of)\b`),
	regexp.MustCompile(`(?i)\b(criteria|eligibility|indication|contraindication)\b`),
	regexp.MustCompile(`(?i)\b(screening|treatment|management|diagnosis)\s+(of|for)\b`),
	regexp.MustCompile(`(?i)\b(documentation|consent|compliance|regulation)\b`),
}

// Classify decides which backend tool(s) a question needs. The function is
// total: a question matching neither cue set returns IntentUnknown, which
// the orchestrator dispatches as hybrid rather than silently skipping a tool.
// A question matching both cue sets is hybrid for the same reason.
func Classify(question string, hint string) models.Intent {
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return models.IntentUnknown
	}

	structured := matchesAny(q, structuredPatterns)
	unstructured := matchesAny(q, unstructuredPatterns)

	// A persona hint nudges ambiguous questions toward that persona's tool,
	// but never suppresses a tool the text explicitly asks for
	switch {
	case structured && unstructured:
		return models.IntentHybrid
	case structured:
		return models.IntentStructuredOnly
	case unstructured:
		return models.IntentUnstructuredOnly
	}

	switch hint {
	case "data_analyst":
		return models.IntentStructuredOnly
	case "clinical":
		return models.IntentUnstructuredOnly
	}

	return models.IntentUnknown
}

func matchesAny(q string, patterns []*regexp.Regexp) bool {
	for _, pattern := range patterns {
		if pattern.MatchString(q) {
			return true
		}
	}
	return false
}
