package domain

// PromptVersion is a stored persona prompt
type PromptVersion struct {
	PromptID string
	Intro    string
}
