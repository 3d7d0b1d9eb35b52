package narrative

import (
	"context"
	"fmt"
	"strings"
)

// NewProvider builds the named provider. It returns nil without error when
// apiKey is empty, which leaves the narrative feature disabled.
func NewProvider(ctx context.Context, name, apiKey, model string) (Provider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, nil
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "anthropic":
		return NewAnthropicProvider(apiKey, model), nil
	case "gemini", "google":
		p, err := NewGeminiProvider(ctx, apiKey, model)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown narrative provider %q", name)
	}
}
