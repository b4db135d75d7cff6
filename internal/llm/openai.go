package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rcliao/guardia-ai/internal/model"
)

// Options configures an OpenAIClient.
type Options struct {
	APIKey      string
	BaseURL     string // empty uses the OpenAI default; any compatible endpoint works
	Model       string
	Timeout     time.Duration
	Temperature float32
}

// OpenAIClient calls an OpenAI-compatible chat completions API.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAIClient constructs a client from opts, falling back to defaults
// for the model, timeout and temperature.
func NewOpenAIClient(opts Options) *OpenAIClient {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	name := opts.Model
	if name == "" {
		name = "gpt-4o-mini"
	}
	temp := opts.Temperature
	if temp == 0 {
		temp = 0.2
	}
	return &OpenAIClient{
		client:      openai.NewClientWithConfig(cfg),
		model:       name,
		temperature: temp,
	}
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string { return c.model }

func (c *OpenAIClient) Analyze(ctx context.Context, rec model.PatientRecord) (*model.Analysis, error) {
	content, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: analysisSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: analysisPrompt(rec)},
		},
		Temperature: c.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, errors.New("no response text")
	}
	return parseAnalysis(content)
}

func (c *OpenAIClient) GenerateNote(ctx context.Context, rec model.PatientRecord) (string, error) {
	return c.complete(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: notePrompt(rec)},
		},
		Temperature: c.temperature,
	})
}

func (c *OpenAIClient) Chat(ctx context.Context, rec model.PatientRecord, history []model.ChatMessage) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: chatSystemPrompt(rec)})
	for _, m := range history {
		if m.Error {
			continue
		}
		role := openai.ChatMessageRoleUser
		if m.Role == model.RoleModel {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Text})
	}
	return c.complete(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: c.temperature,
	})
}

func (c *OpenAIClient) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("chat completion: status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// parseAnalysis decodes the model's JSON, tolerating a markdown code fence
// around it.
func parseAnalysis(content string) (*model.Analysis, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	var a model.Analysis
	if err := json.Unmarshal([]byte(s), &a); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	if a.SyndromeName == "" && a.TriageLevel == "" {
		return nil, errors.New("analysis missing syndrome and triage level")
	}
	return &a, nil
}
