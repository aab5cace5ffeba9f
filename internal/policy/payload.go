package policy

import (
	"fmt"
	"os"
)

// Payload is the policy bundle handed to hosts that assemble their own requests.
type Payload struct {
	System        string   `json:"system"`
	PolicyExcerpt string   `json:"policy_excerpt"`
	AllowedDocs   []string `json:"allowed_docs"`
}

// NewPayload combines a prompt with the excerpt of an optional guidelines file.
// An empty guidelinesPath yields an empty excerpt.
func NewPayload(p Prompt, guidelinesPath string) (*Payload, error) {
	payload := &Payload{
		System:      p.Text(),
		AllowedDocs: p.References(),
	}
	if guidelinesPath == "" {
		return payload, nil
	}
	data, err := os.ReadFile(guidelinesPath)
	if err != nil {
		return nil, fmt.Errorf("read guidelines: %w", err)
	}
	payload.PolicyExcerpt = Excerpt(string(data))
	return payload, nil
}
