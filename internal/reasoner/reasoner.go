// Package reasoner adapts the language-reasoning service behind the three
// prompted call shapes the pipeline needs: intent classification, parameter
// extraction and reply synthesis. One client, one timeout policy.
package reasoner

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"fashion-search/internal/domain"
)

// Client calls an OpenAI-compatible chat completion endpoint (OpenRouter in
// production, serving a Gemini-class multimodal model).
type Client struct {
	llm     *openai.LLM
	timeout time.Duration
}

// Config for the reasoning client.
type Config struct {
	BaseURL string
	Key     string
	Model   string
	Timeout time.Duration
}

// New creates the reasoning client.
func New(cfg Config) (*Client, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing LLM client: %w", err)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{llm: llm, timeout: timeout}, nil
}

// ClassifyIntent decides search vs chat with a single categorical call.
func (c *Client) ClassifyIntent(ctx context.Context, message string, history []domain.ConversationTurn) (domain.Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	parts := []llms.ContentPart{llms.TextPart(fmt.Sprintf(intentPrompt, message))}
	messages := append(historyMessages(history, 10), llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: parts,
	})

	resp, err := c.llm.GenerateContent(ctx, messages, llms.WithTemperature(0))
	if err != nil {
		return "", &domain.ClassificationError{Err: err}
	}

	label := strings.ToLower(strings.Trim(firstChoice(resp), " \t\n\"'."))
	switch {
	case strings.Contains(label, "search"):
		return domain.IntentSearch, nil
	case strings.Contains(label, "chat"):
		return domain.IntentChat, nil
	}
	return "", &domain.ClassificationError{Err: fmt.Errorf("unrecognized label %q", label)}
}

// rawParams mirrors the extraction JSON contract: five fields, absent
// constraints as explicit nulls.
type rawParams struct {
	Keywords string   `json:"keywords"`
	Category *string  `json:"category"`
	Color    *string  `json:"color"`
	Shape    *string  `json:"shape"`
	PriceMin *float64 `json:"price_min"`
	PriceMax *float64 `json:"price_max"`
}

// ExtractParams turns the message (and optional image) into a structured
// query with English keywords.
func (c *Client) ExtractParams(ctx context.Context, message string, image []byte, history []domain.ConversationTurn) (domain.ExtractedParams, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	parts := []llms.ContentPart{
		llms.TextPart(extractPrompt),
		llms.TextPart(fmt.Sprintf("User Input: %s", message)),
	}
	if len(image) > 0 {
		parts = append(parts,
			llms.ImageURLPart(dataURL(image)),
			llms.TextPart(extractImageNote),
		)
	}
	messages := append(historyMessages(history, 6), llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: parts,
	})

	resp, err := c.llm.GenerateContent(ctx, messages, llms.WithTemperature(0))
	if err != nil {
		return domain.ExtractedParams{}, &domain.ExtractionError{Err: err}
	}

	params, err := parseParams(firstChoice(resp))
	if err != nil {
		return domain.ExtractedParams{}, &domain.ExtractionError{Err: err}
	}
	return params, nil
}

// Synthesize produces the user-facing reply. For chat intent it is a plain
// conversational turn; for search it presents the grouped products, drawing
// attributes only from the provided data.
func (c *Client) Synthesize(ctx context.Context, in domain.SynthesisInput) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var prompt string
	if in.Intent == domain.IntentSearch {
		paramsJSON := []byte("null")
		if in.Params != nil {
			paramsJSON, _ = json.Marshal(in.Params)
		}
		prompt = fmt.Sprintf(synthesizePrompt, in.Message, productContext(in.Products), paramsJSON)
	} else {
		prompt = in.Message
	}

	messages := []llms.MessageContent{{
		Role:  llms.ChatMessageTypeSystem,
		Parts: []llms.ContentPart{llms.TextPart(systemPrompt)},
	}}
	messages = append(messages, historyMessages(in.History, 6)...)
	messages = append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(prompt)},
	})

	resp, err := c.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", &domain.SynthesisError{Err: err}
	}
	reply := strings.TrimSpace(firstChoice(resp))
	if reply == "" {
		return "", &domain.SynthesisError{Err: fmt.Errorf("empty completion")}
	}
	return reply, nil
}

// productContext renders the retrieved products into the grounding block of
// the synthesis prompt. Only data present in the group makes it in, which
// is what keeps the model from inventing attributes.
func productContext(products []domain.GroupedProduct) string {
	if len(products) == 0 {
		return noProductsContext
	}
	const maxShown = 8
	var b strings.Builder
	for i, p := range products {
		if i == maxShown {
			break
		}
		fmt.Fprintf(&b, "%d. Product: %s", i+1, p.Folder)
		if p.Price != nil {
			fmt.Fprintf(&b, " | Price: %.0f EGP", *p.Price)
		}
		if p.Description != "" {
			fmt.Fprintf(&b, " | Description: %s", p.Description)
		}
		fmt.Fprintf(&b, " | Match: %.0f%%\n", p.Score*100)
	}
	return b.String()
}

// historyMessages replays the most recent turns with mapped roles.
func historyMessages(history []domain.ConversationTurn, window int) []llms.MessageContent {
	if len(history) > window {
		history = history[len(history)-window:]
	}
	out := make([]llms.MessageContent, 0, len(history))
	for _, turn := range history {
		role := llms.ChatMessageTypeHuman
		if turn.Role == domain.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		out = append(out, llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextPart(turn.Content)},
		})
	}
	return out
}

// parseParams decodes the extraction reply, tolerating markdown code fences
// the model sometimes wraps JSON in.
func parseParams(text string) (domain.ExtractedParams, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var raw rawParams
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		log.Debug().Str("raw", text).Msg("extraction output did not parse")
		return domain.ExtractedParams{}, fmt.Errorf("decoding extraction output: %w", err)
	}
	return domain.ExtractedParams{
		Keywords: strings.TrimSpace(raw.Keywords),
		Category: raw.Category,
		Color:    raw.Color,
		Shape:    raw.Shape,
		PriceMin: raw.PriceMin,
		PriceMax: raw.PriceMax,
	}, nil
}

func firstChoice(resp *llms.ContentResponse) string {
	if resp == nil || len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Content
}

func dataURL(image []byte) string {
	mime := http.DetectContentType(image)
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)
}
