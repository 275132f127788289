package orchestrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/consilium/internal/models"
)

func TestBuildPrompt_TagsDocumentChunks(t *testing.T) {
	results := []*models.ToolResult{
		docResult(
			models.Chunk{Text: "Discharge within 24 hours requires review.", SourceID: "policy-7", Score: 0.91},
			models.Chunk{Text: "Weekend discharges need senior sign-off.", SourceID: "policy-9", Score: 0.62},
		),
	}

	prompt, citations := buildPrompt("Which discharge policy applies?", nil, results)

	assert.Contains(t, prompt, "[D1]")
	assert.Contains(t, prompt, "[D2]")
	assert.Contains(t, prompt, "policy-7")
	assert.Contains(t, prompt, "Which discharge policy applies?")

	require.Len(t, citations, 2)
	assert.Equal(t, "D1", citations[0].ID)
	assert.Equal(t, "policy-7", citations[0].SourceID)
	assert.Equal(t, "D2", citations[1].ID)
}

func TestBuildPrompt_TagsStructuredResults(t *testing.T) {
	results := []*models.ToolResult{
		dataResult(models.Record{"month": "2026-07", "admissions": 412}),
	}

	prompt, citations := buildPrompt("How many admissions last month?", nil, results)

	assert.Contains(t, prompt, "[S1]")
	assert.Contains(t, prompt, "SELECT count(*) FROM admissions")
	assert.Contains(t, prompt, "412")

	require.Len(t, citations, 1)
	assert.Equal(t, "S1", citations[0].ID)
	assert.Equal(t, string(models.ToolStructuredData), citations[0].SourceID)
}

func TestBuildPrompt_MixedEvidenceOrdersDocumentsFirst(t *testing.T) {
	results := []*models.ToolResult{
		docResult(models.Chunk{Text: "policy text", SourceID: "doc-1", Score: 0.8}),
		dataResult(models.Record{"rate": 0.12}),
	}

	prompt, citations := buildPrompt("q", nil, results)

	require.Len(t, citations, 2)
	assert.Less(t, strings.Index(prompt, "[D1]"), strings.Index(prompt, "[S1]"))
}

func TestBuildPrompt_IncludesBoundedHistory(t *testing.T) {
	history := []models.Turn{
		{Question: "first question", Answer: "first answer"},
		{Question: "second question", Answer: "second answer"},
	}

	prompt, _ := buildPrompt("follow-up?", history, nil)

	assert.Contains(t, prompt, "Conversation so far")
	assert.Contains(t, prompt, "first question")
	assert.Contains(t, prompt, "second answer")
	// History precedes evidence and question
	assert.Less(t, strings.Index(prompt, "first question"), strings.Index(prompt, "follow-up?"))
}

func TestBuildPrompt_NoEvidencePlaceholder(t *testing.T) {
	prompt, citations := buildPrompt("q", nil, nil)

	assert.Contains(t, prompt, "No supporting evidence was retrieved")
	assert.Empty(t, citations)
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	results := []*models.ToolResult{
		docResult(models.Chunk{Text: "a", SourceID: "s1", Score: 0.5}),
		dataResult(models.Record{"k": "v"}),
	}

	p1, c1 := buildPrompt("q", nil, results)
	p2, c2 := buildPrompt("q", nil, results)

	assert.Equal(t, p1, p2)
	assert.Equal(t, c1, c2)
}
