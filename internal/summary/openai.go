package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rkobroo/Ownrkoapi/internal/config"
)

const (
	summarySystemPrompt = "You are an expert content summarizer. Create engaging, concise summaries " +
		"that capture the essence of video content."
	pointsSystemPrompt = "You are an expert content analyzer. Extract key points from video content " +
		"in a structured format."
)

// OpenAI 通过 chat completions 接口生成摘要
type OpenAI struct {
	http    *http.Client
	baseURL string
	apiKey  string
	model   string
}

// NewOpenAI 创建 OpenAI 摘要器
func NewOpenAI(cfg config.SummaryConfig, httpClient *http.Client) *OpenAI {
	return &OpenAI{
		http:    httpClient,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Summarize 生成 1-2 句摘要
func (o *OpenAI) Summarize(ctx context.Context, title, description string) (string, error) {
	prompt := fmt.Sprintf("Create a concise, engaging summary of this video content in 1-2 sentences.\n\n"+
		"Title: %s\nDescription: %s\n\n"+
		"Focus on the core message and value proposition. Make it compelling and informative.", title, description)

	content, err := o.complete(ctx, chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: summarySystemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   150,
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", errors.New("empty summary from model")
	}
	return content, nil
}

// MainPoints 生成要点列表, 要求模型返回 {"main_points": [...]}
func (o *OpenAI) MainPoints(ctx context.Context, title, description string) ([]string, error) {
	prompt := fmt.Sprintf("Analyze this video content and extract 5 main points or key takeaways.\n\n"+
		"Title: %s\nDescription: %s\n\n"+
		"Please respond with a JSON object containing an array of main points. "+
		"Each point should be concise and informative.\n"+
		`Format: {"main_points": ["point 1", "point 2", "point 3", "point 4", "point 5"]}`, title, description)

	content, err := o.complete(ctx, chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: pointsSystemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:      500,
		Temperature:    0.3,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}

	var result struct {
		MainPoints []string `json:"main_points"`
	}
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("failed to decode main points: %w", err)
	}
	if len(result.MainPoints) == 0 {
		return nil, errors.New("model returned no main points")
	}
	return result.MainPoints, nil
}

func (o *OpenAI) complete(ctx context.Context, body chatRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode openai response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != nil {
			return "", fmt.Errorf("openai returned status %d: %s", resp.StatusCode, out.Error.Message)
		}
		return "", fmt.Errorf("openai returned status %d", resp.StatusCode)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}
