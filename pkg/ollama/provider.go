package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lylexist/deepseek-ocr-ui/pkg/providers"
)

const (
	DefaultURL   = "http://localhost:11434"
	DefaultModel = "deepseek-ocr"
	// local inference on large pages is slow
	defaultTimeout = 300 * time.Second
)

// Provider implements the Ollama native /api/generate backend
type Provider struct{}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Images  []string       `json:"images"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options"`
}

type generateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	Error           string `json:"error,omitempty"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// New creates a new Ollama provider
func New() *Provider {
	return &Provider{}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "ollama"
}

// ValidateConfig validates the Ollama configuration
func (p *Provider) ValidateConfig(config providers.Config) error {
	if config.Prompt == "" {
		return fmt.Errorf("ollama: prompt is empty")
	}
	return nil
}

// ExtractText runs a single non-streaming generate call
func (p *Provider) ExtractText(ctx context.Context, config providers.Config, imagePath, imageBase64 string) (string, providers.UsageInfo, error) {
	var (
		text  string
		usage providers.UsageInfo
	)
	err := providers.Do(ctx, config, func() error {
		body, err := p.post(ctx, config, imageBase64, false)
		if err != nil {
			return err
		}
		defer body.Close()

		raw, err := io.ReadAll(body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		var resp generateResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return fmt.Errorf("failed to parse JSON response: %w - body: %s", err, providers.TruncateBody(raw))
		}
		if resp.Error != "" {
			return fmt.Errorf("ollama error: %s", resp.Error)
		}
		if resp.Response == "" && !resp.Done {
			return fmt.Errorf("no response from Ollama - body: %s", providers.TruncateBody(raw))
		}

		text = resp.Response
		usage = providers.UsageInfo{InputTokens: resp.PromptEvalCount, OutputTokens: resp.EvalCount}
		return nil
	})
	if err != nil {
		return "", providers.UsageInfo{}, err
	}

	return providers.ProcessResponse(p, text), usage, nil
}

// StreamText runs a streaming generate call. Every NDJSON line's response
// fragment is appended and onChunk receives the accumulated text. Lines that
// are not valid JSON are skipped; the stream ends at done or EOF.
func (p *Provider) StreamText(ctx context.Context, config providers.Config, imagePath, imageBase64 string, onChunk providers.StreamFunc) (string, providers.UsageInfo, error) {
	var body io.ReadCloser
	// only the connection is retried, a half-read stream is not replayed
	err := providers.Do(ctx, config, func() error {
		var err error
		body, err = p.post(ctx, config, imageBase64, true)
		return err
	})
	if err != nil {
		return "", providers.UsageInfo{}, err
	}
	defer body.Close()

	var (
		sb    strings.Builder
		usage providers.UsageInfo
	)
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk generateResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			slog.Debug("Skipping malformed stream line", "line", providers.TruncateBody(line, 120))
			continue
		}
		if chunk.Error != "" {
			return sb.String(), usage, fmt.Errorf("ollama error: %s", chunk.Error)
		}

		if chunk.Response != "" {
			sb.WriteString(chunk.Response)
			if onChunk != nil {
				onChunk(sb.String())
			}
		}
		if chunk.Done {
			usage = providers.UsageInfo{InputTokens: chunk.PromptEvalCount, OutputTokens: chunk.EvalCount}
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return sb.String(), usage, fmt.Errorf("failed to read stream: %w", err)
	}

	return providers.ProcessResponse(p, sb.String()), usage, nil
}

func (p *Provider) post(ctx context.Context, config providers.Config, imageBase64 string, stream bool) (io.ReadCloser, error) {
	requestJSON, err := json.Marshal(generateRequest{
		Model:  model(config),
		Prompt: config.Prompt,
		Images: []string{imageBase64},
		Stream: stream,
		Options: map[string]any{
			"temperature": config.Temperature,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/generate", strings.TrimSuffix(baseURL(config), "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestJSON))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, &providers.StatusError{Provider: "ollama", StatusCode: resp.StatusCode, Body: providers.TruncateBody(body)}
	}

	return resp.Body, nil
}

func baseURL(config providers.Config) string {
	if config.BaseURL != "" {
		return config.BaseURL
	}
	if u := os.Getenv("OLLAMA_URL"); u != "" {
		return u
	}
	return DefaultURL
}

func model(config providers.Config) string {
	if config.Model != "" {
		return config.Model
	}
	if m := os.Getenv("OLLAMA_MODEL"); m != "" {
		return m
	}
	return DefaultModel
}
