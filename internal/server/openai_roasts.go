package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const generateIdeasSystemPrompt = `You will receive a photo which you must create roasts for.
Be creative and original. Avoid corny or overused jokes.

Instructions:
- Number of roasts to generate: %d
- Max length: 120 characters per roast
- Language: %s
- Output one roast per line, nothing else.

Guidelines:
- Keep each roast punchy and clever.
- Players will vote on their favorites, so make every one count.`

const generatePoemSystemPrompt = `You will receive a photo which you must roast in the form of a poem.
You will be given the top roast ideas voted by players.
Use the best elements from these ideas to create a clever and cohesive poem.

Instructions:
- Max length: 3 stanzas of 4 lines each
- Language: %s
- Output the poem directly, without any additional text.`

type openAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openAIChatMessage `json:"messages"`
	Temperature float64             `json:"temperature,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (s *Server) generateIdeasFromOpenAI(ctx context.Context, photo PhotoEntry, count int, language string) ([]string, error) {
	system := fmt.Sprintf(generateIdeasSystemPrompt, count, language)
	content, err := s.chatWithPhoto(ctx, system, photo)
	if err != nil {
		return nil, err
	}
	ideas := parseRoastLines(content)
	if len(ideas) == 0 {
		return nil, errors.New("OpenAI did not return roasts in the expected format")
	}
	if count > 0 && len(ideas) > count {
		ideas = ideas[:count]
	}
	return ideas, nil
}

func (s *Server) generatePoemFromOpenAI(ctx context.Context, photo PhotoEntry, ideas []string, language string) (string, error) {
	system := fmt.Sprintf(generatePoemSystemPrompt, language)
	system += "\nRoast ideas (voted by players):"
	for _, idea := range ideas {
		system += "\n- " + idea
	}
	content, err := s.chatWithPhoto(ctx, system, photo)
	if err != nil {
		return "", err
	}
	poem := strings.TrimSpace(content)
	if poem == "" {
		return "", errors.New("OpenAI returned an empty poem")
	}
	return poem, nil
}

// chatWithPhoto sends one chat-completion request carrying the photo
// reference and optional caption as the user content.
func (s *Server) chatWithPhoto(ctx context.Context, systemPrompt string, photo PhotoEntry) (string, error) {
	if strings.TrimSpace(s.cfg.OpenAIAPIKey) == "" {
		return "", errors.New("OpenAI API key is not configured")
	}
	userParts := []openAIContentPart{
		{Type: "image_url", ImageURL: &openAIImageURL{URL: photo.StorageKey}},
	}
	if photo.Caption != "" {
		userParts = append(userParts, openAIContentPart{
			Type: "text",
			Text: "Photo Caption = " + photo.Caption,
		})
	}
	reqBody := openAIChatRequest{
		Model: s.cfg.OpenAIModel,
		Messages: []openAIChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userParts},
		},
		Temperature: 0.9,
		MaxTokens:   700,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to build OpenAI request")
	}

	timeout := time.Duration(s.cfg.GenerateTimeoutSeconds) * time.Second
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := strings.TrimRight(s.cfg.OpenAIBaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build OpenAI request")
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(s.cfg.OpenAIAPIKey))
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach OpenAI: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read OpenAI response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("OpenAI request failed (%d)", resp.StatusCode)
	}

	var parsed openAIChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse OpenAI response")
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", fmt.Errorf("OpenAI error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("OpenAI returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func parseRoastLines(raw string) []string {
	lines := strings.Split(raw, "\n")
	unique := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*")
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "0123456789.")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key := strings.ToLower(line)
		if _, exists := unique[key]; exists {
			continue
		}
		unique[key] = struct{}{}
		out = append(out, line)
	}
	return out
}
