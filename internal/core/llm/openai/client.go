package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/joseph-ayodele/relief-evidence/internal/common"
	"github.com/joseph-ayodele/relief-evidence/internal/core/llm"
)

// Client implements llm.Provider on the chat completions API with strict
// structured output. Images are sent as vision content parts.
type Client struct {
	cfg    Config
	api    *goopenai.Client
	logger *slog.Logger
}

var _ llm.Provider = (*Client)(nil)

func NewClient(cfg Config, logger *slog.Logger) *Client {
	cfg = cfg.withDefaults()
	oc := goopenai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	oc.HTTPClient = newHTTPClient(cfg)
	return &Client{
		cfg:    cfg,
		api:    goopenai.NewClientWithConfig(oc),
		logger: defaultLogger(logger),
	}
}

func (c *Client) Model() string { return c.cfg.Model }

// Complete sends one schema-constrained chat completion and returns the
// assistant message content untouched.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) ([]byte, error) {
	log := common.LoggerFromContext(ctx, c.logger)
	start := time.Now()

	schema, err := json.Marshal(req.Schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	creq := goopenai.ChatCompletionRequest{
		Model: c.cfg.Model,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.SchemaName,
				Schema: json.RawMessage(schema),
				Strict: true,
			},
		},
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: req.System},
			userMessage(req),
		},
	}
	// reasoning models (o1/o3/o4/gpt-5*) reject max_tokens and temperature
	if isReasoningModel(c.cfg.Model) {
		creq.MaxCompletionTokens = c.cfg.MaxTokens
	} else {
		creq.MaxTokens = c.cfg.MaxTokens
		creq.Temperature = c.cfg.Temperature
	}

	log.Info("llm.openai.request",
		"model", c.cfg.Model,
		"prompt_len", len(req.Prompt),
		"attachments", len(req.Attachments),
	)

	resp, err := c.api.CreateChatCompletion(ctx, creq)
	if err != nil {
		log.Error("llm.openai.error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		log.Error("llm.openai.no_choices", "elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("no choices in openai response")
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		log.Warn("llm.openai.refusal", "refusal", choice.Message.Refusal)
	}
	content := strings.TrimSpace(choice.Message.Content)

	log.Info("llm.openai.ok",
		"finish_reason", string(choice.FinishReason),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return []byte(content), nil
}

func userMessage(req llm.CompletionRequest) goopenai.ChatCompletionMessage {
	if len(req.Attachments) == 0 {
		return goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt}
	}
	parts := make([]goopenai.ChatMessagePart, 0, len(req.Attachments)*2+1)
	parts = append(parts, goopenai.ChatMessagePart{Type: goopenai.ChatMessagePartTypeText, Text: req.Prompt})
	for _, a := range req.Attachments {
		// name the image so the model can tie it to source_file
		parts = append(parts,
			goopenai.ChatMessagePart{Type: goopenai.ChatMessagePartTypeText, Text: "Image file: " + a.Filename},
			goopenai.ChatMessagePart{
				Type:     goopenai.ChatMessagePartTypeImageURL,
				ImageURL: &goopenai.ChatMessageImageURL{URL: a.DataURL, Detail: goopenai.ImageURLDetailAuto},
			},
		)
	}
	return goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, MultiContent: parts}
}

func isReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}
