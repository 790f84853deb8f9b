package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic implements Model on the Anthropic Messages API.
type Anthropic struct {
	client *anthropic.Client
	model  string
}

// NewAnthropic creates a new Anthropic provider from ANTHROPIC_API_KEY.
func NewAnthropic(model string, opts ...option.RequestOption) (*Anthropic, error) {
	key, err := apiKey("anthropic")
	if err != nil {
		return nil, err
	}
	// Retries are handled by retryWithBackoff so rate limits are classified once.
	base := []option.RequestOption{option.WithAPIKey(key), option.WithMaxRetries(0)}
	client := anthropic.NewClient(append(base, opts...)...)
	return &Anthropic{client: &client, model: model}, nil
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) ModelID() string { return a.model }

func (a *Anthropic) Invoke(ctx context.Context, req Request) (Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(maxTokens(req)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	var resp Response
	err := retryWithBackoff(ctx, 3, func() error {
		message, err := a.client.Messages.New(ctx, params)
		if err != nil {
			var apiErr *anthropic.Error
			if errors.As(err, &apiErr) {
				if classified := classifyStatus(apiErr.StatusCode, apiErr.Error()); classified != nil {
					return classified
				}
			}
			return fmt.Errorf("anthropic: %w", err)
		}

		var text strings.Builder
		for _, block := range message.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		resp = Response{
			Text:       text.String(),
			TokensUsed: int(message.Usage.InputTokens + message.Usage.OutputTokens),
		}
		return nil
	})
	return resp, err
}
