package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/consilium/internal/models"
)

// formatAnswer formats a synthesized answer as markdown
func formatAnswer(answer *models.Answer) string {
	var sb strings.Builder
	sb.WriteString(answer.Text)
	sb.WriteString("\n\n---\n")

	if len(answer.Citations) > 0 {
		sb.WriteString("\n**Sources:**\n")
		for _, c := range answer.Citations {
			sb.WriteString(fmt.Sprintf("- [%s] %s", c.ID, c.SourceID))
			if c.Locator != "" {
				sb.WriteString(fmt.Sprintf(" (%s)", c.Locator))
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString(fmt.Sprintf("\n**Evidence grade:** %s", answer.EvidenceGrade))
	if answer.Degraded {
		sb.WriteString(" (degraded: a tool backend was unavailable)")
	}
	sb.WriteString(fmt.Sprintf("\n**Persona:** %s | **Provider:** %s | %dms\n", answer.Persona, answer.Provider, answer.ElapsedMs))

	if answer.Disclaimer != "" {
		sb.WriteString(fmt.Sprintf("\n> %s\n", answer.Disclaimer))
	}

	return sb.String()
}

// formatProviderHealth formats the gateway health snapshot as markdown
func formatProviderHealth(health []models.ProviderHealth) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Provider Chain (%d providers)\n\n", len(health)))

	for _, p := range health {
		sb.WriteString(fmt.Sprintf("### %d. %s\n", p.Priority, p.ProviderID))
		sb.WriteString(fmt.Sprintf("**Status:** %s\n", p.Status))
		if !p.LastAttempt.IsZero() {
			sb.WriteString(fmt.Sprintf("**Last attempt:** %s\n", p.LastAttempt.Format(time.RFC3339)))
		}
		if p.LastError != "" {
			sb.WriteString(fmt.Sprintf("**Last error:** %s\n", p.LastError))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatPersonas formats the persona registry as markdown
func formatPersonas(personas []*models.Persona) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Personas (%d)\n\n", len(personas)))

	for _, p := range personas {
		sb.WriteString(fmt.Sprintf("- **%s** (%s)", p.Name, p.ID))
		if p.CitationRule != "" {
			sb.WriteString(fmt.Sprintf(" | citations: %s", p.CitationRule))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
