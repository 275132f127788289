package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/consilium/internal/models"
)

// Evidence blocks are tagged [D1]..[Dn] for document chunks and [S1]..[Sn]
// for structured results. The persona instructs the model to echo these tags
// so synthesis can attach citations to the final answer.

// buildPrompt deterministically assembles the grounded prompt: bounded
// recent history, evidence blocks with citation tags, then the question.
// It returns the prompt plus the citation candidates the tags refer to.
func buildPrompt(question string, history []models.Turn, results []*models.ToolResult) (string, []models.Citation) {
	var sb strings.Builder
	var citations []models.Citation

	if len(history) > 0 {
		sb.WriteString("## Conversation so far\n\n")
		for _, turn := range history {
			sb.WriteString("User: ")
			sb.WriteString(turn.Question)
			sb.WriteString("\nAssistant: ")
			sb.WriteString(turn.Answer)
			sb.WriteString("\n\n")
		}
	}

	hasEvidence := false
	for _, r := range results {
		if !r.Empty() {
			hasEvidence = true
			break
		}
	}

	if hasEvidence {
		sb.WriteString("## Evidence\n\n")
		docIdx, structIdx := 0, 0
		for _, r := range results {
			if r.Empty() {
				continue
			}
			switch r.Kind {
			case models.ToolDocumentSearch:
				for _, chunk := range r.Search.Chunks {
					docIdx++
					tag := fmt.Sprintf("D%d", docIdx)
					fmt.Fprintf(&sb, "[%s] (source: %s, relevance %.2f)\n%s\n\n", tag, chunk.SourceID, chunk.Score, chunk.Text)
					citations = append(citations, models.Citation{
						ID:       tag,
						SourceID: chunk.SourceID,
						Score:    chunk.Score,
					})
				}
			case models.ToolStructuredData:
				structIdx++
				tag := fmt.Sprintf("S%d", structIdx)
				fmt.Fprintf(&sb, "[%s] Structured data result", tag)
				if r.Analytics.GeneratedQuery != "" {
					fmt.Fprintf(&sb, " (query: %s)", r.Analytics.GeneratedQuery)
				}
				fmt.Fprintf(&sb, "\nRows (%d):\n", len(r.Analytics.Rows))
				for _, row := range r.Analytics.Rows {
					if line, err := json.Marshal(row); err == nil {
						sb.Write(line)
						sb.WriteString("\n")
					}
				}
				sb.WriteString("\n")
				citations = append(citations, models.Citation{
					ID:       tag,
					SourceID: string(models.ToolStructuredData),
					Locator:  r.Analytics.GeneratedQuery,
				})
			}
		}
	} else {
		sb.WriteString("## Evidence\n\nNo supporting evidence was retrieved for this question.\n\n")
	}

	sb.WriteString("## Question\n\n")
	sb.WriteString(question)
	sb.WriteString("\n\nAnswer using only the evidence above, citing evidence tags like [D1] or [S1]. ")
	sb.WriteString("If the evidence does not answer the question, say so.")

	return sb.String(), citations
}
