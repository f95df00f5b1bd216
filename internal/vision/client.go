package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	classificationPrompt = "You are an automated traffic monitoring system. Classify the attached image based ONLY on whether a vehicle accident is visible. " +
		"Respond with exactly one word: 'accident' or 'no_accident'."
	descriptionPrompt = "An accident has been detected in the attached image. Provide a brief, factual description of the accident scene, " +
		"focusing on the vehicles involved and their apparent situation. Include the approximate time based on lighting if possible (e.g., daytime, nighttime). " +
		"Limit the description to 1-2 sentences."
)

// Client calls a hosted vision-language model over its chat-completions
// HTTP API. Classification uses a low temperature and a tiny token
// budget; description allows a longer, more creative reply.
type Client struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
}

// NewClient creates a vision inference client. The endpoint is the API
// base URL, e.g. https://api.together.xyz.
func NewClient(endpoint, model, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		model:    model,
		apiKey:   apiKey,
		client: &http.Client{
			Timeout: 30 * time.Second, // AI inference can be slow
		},
	}
}

// Classify asks the model whether an accident is visible in the frame.
func (c *Client) Classify(ctx context.Context, frame []byte) (string, error) {
	return c.complete(ctx, classificationPrompt, frame, 10, 0.1)
}

// Describe asks the model for a short description of the accident scene.
func (c *Client) Describe(ctx context.Context, frame []byte) (string, error) {
	return c.complete(ctx, descriptionPrompt, frame, 100, 0.7)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []chatContent `json:"content"`
}

type chatContent struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, prompt string, frame []byte, maxTokens int, temperature float64) (string, error) {
	frame = downscaleJPEG(frame, maxInferenceWidth)
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(frame)

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []chatContent{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &chatImageURL{URL: dataURL}},
			},
		}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("vision inference failed (%d): %s", resp.StatusCode, msg)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode inference response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("inference response contained no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// Ensure Client implements Classifier
var _ Classifier = (*Client)(nil)
