package providers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1/"
	defaultOllamaURL  = "http://localhost:11434"
)

// OpenAI implements Model on the Chat Completions API. The same wire protocol
// serves OpenAI, OpenRouter and local Ollama / LM Studio servers.
type OpenAI struct {
	client *openai.Client
	name   string
	model  string
	// legacyMaxTokens sends max_tokens instead of max_completion_tokens for
	// compatible servers that predate the newer field.
	legacyMaxTokens bool
}

// NewOpenAI creates a provider for api.openai.com (or TRIBUNAL_OPENAI_BASE_URL).
func NewOpenAI(model string, opts ...option.RequestOption) (*OpenAI, error) {
	key, err := apiKey("openai")
	if err != nil {
		return nil, err
	}
	base := []option.RequestOption{option.WithAPIKey(key), option.WithMaxRetries(0)}
	if u := os.Getenv("TRIBUNAL_OPENAI_BASE_URL"); u != "" {
		base = append(base, option.WithBaseURL(withSlash(u)))
	}
	return newOpenAICompatible("openai", model, false, append(base, opts...)), nil
}

// NewOpenRouter creates a provider for the OpenRouter gateway.
func NewOpenRouter(model string, opts ...option.RequestOption) (*OpenAI, error) {
	key, err := apiKey("openrouter")
	if err != nil {
		return nil, err
	}
	base := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithBaseURL(openRouterBaseURL),
		option.WithMaxRetries(0),
	}
	return newOpenAICompatible("openrouter", model, true, append(base, opts...)), nil
}

// NewOllama creates a provider for a local Ollama or LM Studio server at
// OLLAMA_HOST. No API key is required.
func NewOllama(model string, opts ...option.RequestOption) (*OpenAI, error) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = defaultOllamaURL
	}
	// Accept bare hosts as well as full /v1 or /v1/chat/completions URLs.
	host = strings.TrimRight(host, "/")
	host = strings.TrimSuffix(host, "/v1/chat/completions")
	host = strings.TrimSuffix(host, "/v1")

	key := os.Getenv("TRIBUNAL_OLLAMA_API_KEY")
	if key == "" {
		key = "ollama"
	}
	base := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithBaseURL(host + "/v1/"),
		option.WithMaxRetries(0),
	}
	return newOpenAICompatible("ollama", model, true, append(base, opts...)), nil
}

func newOpenAICompatible(name, model string, legacy bool, opts []option.RequestOption) *OpenAI {
	client := openai.NewClient(opts...)
	return &OpenAI{client: &client, name: name, model: model, legacyMaxTokens: legacy}
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) ModelID() string { return o.model }

func (o *OpenAI) Invoke(ctx context.Context, req Request) (Response, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessageParamUnion{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(req.System),
				},
			},
		})
	}
	messages = append(messages, openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfString: openai.String(req.Prompt),
			},
		},
	})

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(o.model),
		Messages: messages,
	}
	if o.legacyMaxTokens {
		params.MaxTokens = openai.Int(int64(maxTokens(req)))
	} else {
		params.MaxCompletionTokens = openai.Int(int64(maxTokens(req)))
	}

	var resp Response
	err := retryWithBackoff(ctx, 3, func() error {
		completion, err := o.client.Chat.Completions.New(ctx, params)
		if err != nil {
			var apiErr *openai.Error
			if errors.As(err, &apiErr) {
				if classified := classifyStatus(apiErr.StatusCode, apiErr.Error()); classified != nil {
					return classified
				}
			}
			return fmt.Errorf("%s: %w", o.name, err)
		}
		if len(completion.Choices) == 0 {
			return fmt.Errorf("%s: no choices in response", o.name)
		}
		resp = Response{
			Text:       completion.Choices[0].Message.Content,
			TokensUsed: int(completion.Usage.TotalTokens),
		}
		return nil
	})
	return resp, err
}

func withSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}
