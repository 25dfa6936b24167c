package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const defaultAPIURL = "https://api.openai.com/v1/chat/completions"

// ChatGPT represents a client for the OpenAI chat completions API
type ChatGPT struct {
	apiKey      string
	apiURL      string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

// New creates a new ChatGPT client
func New(apiKey, model string) (*ChatGPT, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is not set")
	}
	if model == "" {
		model = "gpt-3.5-turbo"
	}

	return &ChatGPT{
		apiKey:      apiKey,
		apiURL:      defaultAPIURL,
		model:       model,
		maxTokens:   150,
		temperature: 0.3,
		client:      &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// WithURL points the client at another endpoint
func (c *ChatGPT) WithURL(url string) *ChatGPT {
	c.apiURL = url
	return c
}

// Message represents a message in the conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents a request to the chat completions API
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

// ChatResponse represents a response from the chat completions API
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Grade is the coach's verdict on a spoken attempt
type Grade struct {
	Score   int
	Comment string
}

var scoreLine = regexp.MustCompile(`(?i)score:\s*(\d{1,3})`)

// GradePronunciation compares what the learner said with the target text
// and returns a 0..100 score with a short comment
func (c *ChatGPT) GradePronunciation(ctx context.Context, target, transcript string) (Grade, error) {
	prompt := fmt.Sprintf(
		"Target sentence: %q\nWhat the learner said (speech recognition transcript): %q\n\n"+
			"Rate how closely the learner reproduced the target sentence from 0 to 100. "+
			"Answer in exactly this format:\nScore: <number>\nComment: <one short sentence of advice>",
		target, transcript,
	)

	messages := []Message{
		{Role: "system", Content: "You are a friendly pronunciation coach for language learners. You grade spoken attempts strictly but fairly."},
		{Role: "user", Content: prompt},
	}

	content, err := c.complete(ctx, messages)
	if err != nil {
		return Grade{}, err
	}
	return parseGrade(content)
}

func parseGrade(content string) (Grade, error) {
	m := scoreLine.FindStringSubmatch(content)
	if m == nil {
		return Grade{}, fmt.Errorf("no score in response: %q", content)
	}
	score, err := strconv.Atoi(m[1])
	if err != nil || score > 100 {
		return Grade{}, fmt.Errorf("invalid score in response: %q", m[1])
	}

	var comment string
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "comment:") {
			comment = strings.TrimSpace(strings.TrimSpace(line)[len("comment:"):])
		}
	}
	return Grade{Score: score, Comment: comment}, nil
}

func (c *ChatGPT) complete(ctx context.Context, messages []Message) (string, error) {
	request := ChatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	requestData, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(requestData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var response ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if response.Error != nil {
		return "", fmt.Errorf("API error: %s", response.Error.Message)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned")
	}

	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}
