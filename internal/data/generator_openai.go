package data

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tessbot/slack-chat-bridge/internal/biz/repo"
	"github.com/tessbot/slack-chat-bridge/internal/conf"
)

// openAIGenerator produces replies with a single chat completion
type openAIGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	persona     *Persona
}

// NewOpenAIGenerator creates a reply generator for any OpenAI-compatible endpoint
func NewOpenAIGenerator(cfg conf.LLMConfig, persona *Persona) repo.ReplyGenerator {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	if cfg.Temperature == 0 {
		config.HTTPClient = zeroTemperatureDoer{next: config.HTTPClient}
	}

	return &openAIGenerator{
		client:      openai.NewClientWithConfig(config),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		persona:     persona,
	}
}

// zeroTemperatureDoer writes an explicit "temperature": 0 into chat completion
// bodies. go-openai drops a zero temperature, which leaves the server default.
type zeroTemperatureDoer struct {
	next openai.HTTPDoer
}

func (d zeroTemperatureDoer) Do(req *http.Request) (*http.Response, error) {
	if req.Body == nil || !strings.HasSuffix(req.URL.Path, "/chat/completions") {
		return d.next.Do(req)
	}
	body, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err == nil {
		if _, ok := fields["temperature"]; !ok {
			fields["temperature"] = json.RawMessage("0")
			if patched, err := json.Marshal(fields); err == nil {
				body = patched
			}
		}
	}

	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return d.next.Do(req)
}

func (g *openAIGenerator) Generate(ctx context.Context, req repo.ReplyRequest) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: g.persona.SystemPrompt(ctx)},
			{Role: openai.ChatMessageRoleUser, Content: g.persona.UserPrompt(req.PriorHistory, req.Current)},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		User:        req.SessionID,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response choices")
	}
	return resp.Choices[0].Message.Content, nil
}
