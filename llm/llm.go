package llm

import (
	"context"

	"github.com/sweetpotato0/docqa/message"
)

// Client defines the interface for LLM providers. One configured instance is
// constructed by the service entrypoint and injected into every component
// that needs model access.
type Client interface {
	// Invoke sends an ordered message sequence and returns the model reply
	Invoke(ctx context.Context, messages []*message.Message) (*message.Message, error)

	// SetTemperature updates the temperature setting for generation
	SetTemperature(temp float64)

	// SetMaxTokens updates the maximum tokens limit for generation
	SetMaxTokens(max int64)

	// SetModel updates the model to use for generation
	SetModel(model string)
}
