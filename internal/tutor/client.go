// Package tutor wraps the hosted language model behind the AI education
// assistant.
package tutor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/smk-lppmri/portal-api/pkg/config"
)

// Client calls the generateContent endpoint of the hosted model.
type Client struct {
	httpClient *http.Client
	cfg        config.TutorConfig
}

// NewClient constructs a Client instance.
func NewClient(cfg config.TutorConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
	}
}

type generatePart struct {
	Text string `json:"text"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generateRequest struct {
	SystemInstruction *generateContent  `json:"system_instruction,omitempty"`
	Contents          []generateContent `json:"contents"`
	GenerationConfig  struct {
		Temperature float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content generateContent `json:"content"`
	} `json:"candidates"`
}

// GenerateContent sends one prompt with a fixed system instruction and
// returns the first candidate's text.
func (c *Client) GenerateContent(ctx context.Context, systemInstruction, prompt string) (string, error) {
	reqBody := generateRequest{
		SystemInstruction: &generateContent{Parts: []generatePart{{Text: systemInstruction}}},
		Contents:          []generateContent{{Parts: []generatePart{{Text: prompt}}}},
	}
	reqBody.GenerationConfig.Temperature = c.cfg.Temperature

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.Endpoint, c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call language model: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read model response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("language model returned %d", res.StatusCode)
	}

	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decode model response: %w", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("language model returned no candidates")
	}

	answer := ""
	for _, part := range decoded.Candidates[0].Content.Parts {
		answer += part.Text
	}
	return answer, nil
}
