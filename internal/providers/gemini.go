package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements Model on Google's Gemini API.
type Gemini struct {
	apiKey string
	model  string
}

// NewGemini creates a new Gemini provider from GEMINI_API_KEY or GOOGLE_API_KEY.
func NewGemini(model string) (*Gemini, error) {
	key, err := apiKey("gemini")
	if err != nil {
		return nil, err
	}
	return &Gemini{apiKey: key, model: model}, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) ModelID() string { return g.model }

func (g *Gemini) Invoke(ctx context.Context, req Request) (Response, error) {
	var resp Response
	err := retryWithBackoff(ctx, 3, func() error {
		client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
		if err != nil {
			return fmt.Errorf("gemini: creating client: %w", err)
		}
		defer func() { _ = client.Close() }()

		model := client.GenerativeModel(g.model)
		model.SetMaxOutputTokens(int32(maxTokens(req)))
		if req.System != "" {
			model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
		}

		out, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
		if err != nil {
			if classified := classifyMessage(err.Error()); classified != nil {
				return classified
			}
			return fmt.Errorf("gemini: %w", err)
		}
		resp = geminiResponse(out)
		return nil
	})
	return resp, err
}

func geminiResponse(out *genai.GenerateContentResponse) Response {
	var resp Response
	if out == nil {
		return resp
	}
	if out.UsageMetadata != nil {
		resp.TokensUsed = int(out.UsageMetadata.TotalTokenCount)
	}
	if len(out.Candidates) == 0 || out.Candidates[0].Content == nil {
		return resp
	}
	var text strings.Builder
	for _, part := range out.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	resp.Text = text.String()
	return resp
}
