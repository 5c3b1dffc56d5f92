package parser

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// maxHTMLPrefix bounds the HTML sent to the model so the request fits the
// context window. The cutoff is part of the parser contract.
const maxHTMLPrefix = 10000

const systemPrompt = `You are a web crawler specializing in e-commerce sites.
Given the HTML of a page and its base URL, identify the product page URLs
present in the document. Respond with a JSON object of the form
{"urls": ["..."], "reasoning": "..."} and nothing else.`

// ChatCompleter is the single model operation the AI parser needs.
// *openai.Client satisfies it; tests substitute a stub.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// AIParser classifies product URLs with a large language model. Failures of
// any kind yield an empty result, never an error: a flaky model must not
// poison the pipeline.
type AIParser struct {
	client  ChatCompleter
	model   string
	timeout time.Duration
	log     zerolog.Logger
}

// AIParserConfig holds configuration for the AI parser.
type AIParserConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// NewAIParser creates an AI parser backed by an OpenAI-compatible endpoint.
func NewAIParser(cfg AIParserConfig, log zerolog.Logger) *AIParser {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &AIParser{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: timeout,
		log:     log.With().Str("component", "ai_parser").Logger(),
	}
}

// NewAIParserWithClient creates an AI parser around an existing client.
func NewAIParserWithClient(client ChatCompleter, model string, log zerolog.Logger) *AIParser {
	return &AIParser{
		client:  client,
		model:   model,
		timeout: 30 * time.Second,
		log:     log.With().Str("component", "ai_parser").Logger(),
	}
}

func (p *AIParser) Name() string { return NameAI }

type aiResponse struct {
	URLs      []string `json:"urls"`
	Reasoning string   `json:"reasoning"`
}

func (p *AIParser) Parse(ctx context.Context, html, baseURL string) ([]string, error) {
	prefix := html
	if len(prefix) > maxHTMLPrefix {
		prefix = prefix[:maxHTMLPrefix]
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Base URL: " + baseURL + "\n\nHTML:\n" + prefix},
		},
	})
	if err != nil {
		p.log.Warn().Str("base_url", baseURL).Err(err).Msg("model request failed")
		return nil, nil
	}
	if len(resp.Choices) == 0 {
		p.log.Warn().Str("base_url", baseURL).Msg("model returned no choices")
		return nil, nil
	}

	var parsed aiResponse
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		p.log.Warn().Str("base_url", baseURL).Err(err).Msg("model returned malformed output")
		return nil, nil
	}

	return absolutize(parsed.URLs, baseURL), nil
}

// absolutize joins relative model output against base, deduplicates while
// preserving first-seen order, and drops empties.
func absolutize(urls []string, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		base = nil
	}

	seen := make(map[string]bool)
	var out []string
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		full := raw
		if base != nil && !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
			ref, err := url.Parse(raw)
			if err != nil {
				continue
			}
			full = base.ResolveReference(ref).String()
		}
		if seen[full] {
			continue
		}
		seen[full] = true
		out = append(out, full)
	}
	return out
}
