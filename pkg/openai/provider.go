package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lylexist/deepseek-ocr-ui/internal/utils"
	"github.com/lylexist/deepseek-ocr-ui/pkg/providers"
)

const (
	DefaultURL     = "http://localhost:11434"
	DefaultModel   = "deepseek-ocr"
	defaultTimeout = 300 * time.Second
)

// Provider implements an OpenAI-compatible /v1/chat/completions backend,
// such as Ollama's compatibility layer or vLLM.
type Provider struct{}

// Response represents a chat completions response
type Response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// New creates a new OpenAI-compatible provider
func New() *Provider {
	return &Provider{}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "openai"
}

// ValidateConfig validates the configuration. The API key is optional since
// local compatible servers usually run without one.
func (p *Provider) ValidateConfig(config providers.Config) error {
	if config.Prompt == "" {
		return fmt.Errorf("openai: prompt is empty")
	}
	if !strings.HasPrefix(baseURL(config), "http://") && !strings.HasPrefix(baseURL(config), "https://") {
		return fmt.Errorf("openai: base URL %q must be http or https", baseURL(config))
	}
	return nil
}

// ExtractText sends the image as a data: URL and returns the first choice
func (p *Provider) ExtractText(ctx context.Context, config providers.Config, imagePath, imageBase64 string) (string, providers.UsageInfo, error) {
	requestJSON, err := json.Marshal(chatRequest{
		Model: model(config),
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: config.Prompt},
					{Type: "image_url", ImageURL: &imageURL{
						URL: fmt.Sprintf("data:%s;base64,%s", utils.MimeType(imagePath), imageBase64),
					}},
				},
			},
		},
		Temperature: config.Temperature,
	})
	if err != nil {
		return "", providers.UsageInfo{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/chat/completions", strings.TrimSuffix(baseURL(config), "/"))
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &http.Client{Timeout: timeout}

	var body []byte
	err = providers.Do(ctx, config, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestJSON))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return &providers.StatusError{Provider: "openAI", StatusCode: resp.StatusCode, Body: providers.TruncateBody(body)}
		}
		return nil
	})
	if err != nil {
		return "", providers.UsageInfo{}, err
	}

	var openaiResp Response
	if err := json.Unmarshal(body, &openaiResp); err != nil {
		return "", providers.UsageInfo{}, fmt.Errorf("failed to parse JSON response: %w - body: %s", err, providers.TruncateBody(body))
	}

	if len(openaiResp.Choices) == 0 {
		return "", providers.UsageInfo{}, fmt.Errorf("no response from OpenAI - body: %s", providers.TruncateBody(body))
	}

	usage := providers.UsageInfo{
		InputTokens:  openaiResp.Usage.PromptTokens,
		OutputTokens: openaiResp.Usage.CompletionTokens,
	}

	return providers.ProcessResponse(p, openaiResp.Choices[0].Message.Content), usage, nil
}

func baseURL(config providers.Config) string {
	if config.BaseURL != "" {
		return config.BaseURL
	}
	for _, env := range []string{"OPENAI_BASE_URL", "OLLAMA_URL"} {
		if u := os.Getenv(env); u != "" {
			return u
		}
	}
	return DefaultURL
}

func model(config providers.Config) string {
	if config.Model != "" {
		return config.Model
	}
	if m := os.Getenv("OPENAI_MODEL"); m != "" {
		return m
	}
	return DefaultModel
}
