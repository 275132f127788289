package models

// Persona is an immutable bundle of system instructions and formatting rules.
// Personas are loaded once at startup and never mutated.
type Persona struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt"`
	Disclaimer   string `json:"disclaimer,omitempty" yaml:"disclaimer"`
	CitationRule string `json:"citation_rule,omitempty" yaml:"citation_rule"`
}
