package domain

import "context"

// TextGenerator defines the capability to produce text from a system
// instruction and a user prompt. Model identity and endpoint are
// configuration of the implementation, not part of this contract.
type TextGenerator interface {
	Complete(ctx context.Context, systemInstruction, userPrompt string, maxTokens int) (string, error)
	Model() string
}
