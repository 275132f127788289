package orchestrator

import (
	"regexp"

	"github.com/ternarybob/consilium/internal/models"
)

var citationTagPattern = regexp.MustCompile(`\[([DS]\d+)\]`)

// limitedScoreThreshold marks document evidence as weak/indirect when no
// chunk clears it. Tunable alongside the concordance threshold.
const limitedScoreThreshold = 0.4

// extractCitations keeps the citation candidates whose tags the model echoed
// in the generated text. A grounded answer that echoes no tags at all keeps
// every candidate: the evidence still backs the answer even if the model
// ignored the citation instruction.
func extractCitations(text string, candidates []models.Citation) []models.Citation {
	if len(candidates) == 0 {
		return nil
	}

	echoed := make(map[string]bool)
	for _, match := range citationTagPattern.FindAllStringSubmatch(text, -1) {
		echoed[match[1]] = true
	}
	if len(echoed) == 0 {
		return candidates
	}

	var cited []models.Citation
	for _, c := range candidates {
		if echoed[c.ID] {
			cited = append(cited, c)
		}
	}
	if len(cited) == 0 {
		return candidates
	}
	return cited
}

// gradeEvidence computes the categorical confidence label from the quantity
// and strength of tool evidence:
//   - strong: at least minConcordant distinct sources
//   - moderate: a single source
//   - limited: sources exist but none clears the relevance threshold
//   - insufficient: no tool evidence at all
func gradeEvidence(results []*models.ToolResult, minConcordant int) models.EvidenceGrade {
	if minConcordant <= 0 {
		minConcordant = 2
	}

	sources := make(map[string]bool)
	maxScore := 0.0
	structuredRows := 0

	for _, r := range results {
		if r.Empty() {
			continue
		}
		switch r.Kind {
		case models.ToolDocumentSearch:
			for _, chunk := range r.Search.Chunks {
				sources[chunk.SourceID] = true
				if chunk.Score > maxScore {
					maxScore = chunk.Score
				}
			}
		case models.ToolStructuredData:
			structuredRows += len(r.Analytics.Rows)
		}
	}

	sourceCount := len(sources)
	if structuredRows > 0 {
		// The structured backend counts as one concordant source: its rows
		// come from a single authoritative query
		sourceCount++
		if maxScore < 1.0 {
			maxScore = 1.0
		}
	}

	switch {
	case sourceCount == 0:
		return models.EvidenceInsufficient
	case maxScore < limitedScoreThreshold:
		return models.EvidenceLimited
	case sourceCount >= minConcordant:
		return models.EvidenceStrong
	default:
		return models.EvidenceModerate
	}
}

// needsDisclaimer decides whether the persona's required disclaimer is
// attached: always when the intent touched structured health data, and
// always for the clinical persona
func needsDisclaimer(intent models.Intent, persona *models.Persona) bool {
	if persona.Disclaimer == "" {
		return false
	}
	return intent.NeedsStructuredData() || persona.ID == "clinical"
}
