package strategy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"collections-backend/model"
)

// Client talks to OpenAI-compatible chat-completion APIs. Timeline planning
// goes to the xAI endpoint, per-block copywriting to the OpenAI one; both
// fall back deterministically at the call site on any error.
type Client struct {
	HTTPClient *http.Client
}

func NewClient() *Client {
	return &Client{HTTPClient: &http.Client{Timeout: 30 * time.Second}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const timelineSystemPrompt = "You are a collections strategy planner. " +
	"Given user or group details, output ONLY JSON with a 'timeline' key, " +
	"where 'timeline' is a list of columns with 'timing' and 'blocks'. " +
	"Each block has 'source', 'tone', and 'content'."

// GenerateTimeline asks the planner model for a raw timeline. The result is
// not yet enriched or validated.
func (c *Client) GenerateTimeline(ctx context.Context, details map[string]any, prompt string) ([]TimelineColumn, error) {
	apiKey := os.Getenv("XAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("XAI_API_KEY not configured")
	}

	baseURL := os.Getenv("XAI_API_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.x.ai"
	}
	aiModel := os.Getenv("XAI_MODEL")
	if aiModel == "" {
		aiModel = "grok-beta"
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return nil, err
	}

	body := chatRequest{
		Model: aiModel,
		Messages: []chatMessage{
			{Role: "system", Content: timelineSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Details: %s. Prompt: %s. Output JSON only.", detailsJSON, prompt)},
		},
		Temperature: 0.3,
	}

	content, err := c.complete(ctx, strings.TrimRight(baseURL, "/")+"/v1/chat/completions", apiKey, body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Timeline []TimelineColumn `json:"timeline"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("planner returned non-JSON content: %w", err)
	}
	if parsed.Timeline == nil {
		return nil, errors.New("planner response missing timeline")
	}
	return parsed.Timeline, nil
}

const blockContentSystemPrompt = "You are a collections communication assistant. " +
	"You write short, clear, and respectful messages for collections teams. " +
	"Use the requested tone but remain professional and compliant. " +
	"Return ONLY the message body, without explanations or surrounding quotes."

// GenerateBlockContent asks the copywriting model for a single action-block
// message body.
func (c *Client) GenerateBlockContent(ctx context.Context, d model.Details, b Block, userPrompt string) (string, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return "", errors.New("OPENAI_API_KEY not configured")
	}

	baseURL := os.Getenv("OPENAI_API_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	aiModel := os.Getenv("OPENAI_MODEL")
	if aiModel == "" {
		aiModel = "gpt-4o-mini"
	}

	source := strings.ToLower(b.Source)
	if source == "" {
		source = "email"
	}
	tone := strings.ToLower(b.Tone)
	if tone == "" {
		tone = "friendly"
	}

	plannerPrompt := userPrompt
	if plannerPrompt == "" {
		plannerPrompt = "Write a concise, clear collection reminder."
	}

	parts := []string{
		"Channel: " + source,
		"Tone: " + tone,
	}
	if name := customerName(d); name != "" {
		parts = append(parts, "Customer name: "+name)
	}
	if d.AmountOwed != nil {
		parts = append(parts, fmt.Sprintf("Outstanding amount: %v", *d.AmountOwed))
	}
	if d.DueDate != "" {
		parts = append(parts, "Due date: "+d.DueDate)
	}
	if d.PreferredContact != "" {
		parts = append(parts, "Preferred contact method: "+d.PreferredContact)
	}

	userContent := fmt.Sprintf(
		"%s\n\nContext: %s\n\nWrite the message as it should be sent to the customer.",
		plannerPrompt, strings.Join(parts, "; "),
	)

	body := chatRequest{
		Model: aiModel,
		Messages: []chatMessage{
			{Role: "system", Content: blockContentSystemPrompt},
			{Role: "user", Content: userContent},
		},
		Temperature: 0.4,
		MaxTokens:   300,
	}

	content, err := c.complete(ctx, strings.TrimRight(baseURL, "/")+"/chat/completions", apiKey, body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (c *Client) complete(ctx context.Context, url, apiKey string, body chatRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("completion API returned status %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("completion response has no choices")
	}
	return out.Choices[0].Message.Content, nil
}

func customerName(d model.Details) string {
	for _, key := range []string{"name", "customer_name"} {
		if v, ok := d.Extra[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
