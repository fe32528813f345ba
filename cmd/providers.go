package cmd

import (
	"encoding/base64"
	"os"
	"time"

	"github.com/lylexist/deepseek-ocr-ui/pkg/grounding"
	"github.com/lylexist/deepseek-ocr-ui/pkg/ollama"
	"github.com/lylexist/deepseek-ocr-ui/pkg/openai"
	"github.com/lylexist/deepseek-ocr-ui/pkg/providers"
	"github.com/spf13/cobra"
)

// backendFlags are shared by every command that talks to an OCR backend
type backendFlags struct {
	provider    string
	model       string
	prompt      string
	baseURL     string
	temperature float64
	timeout     time.Duration
	attempts    uint
	noGrounding bool
}

func (f *backendFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.provider, "provider", "ollama", "Backend to use: ollama, openai")
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "Model to use (uses OLLAMA_MODEL/OPENAI_MODEL or deepseek-ocr if not specified)")
	cmd.Flags().StringVarP(&f.prompt, "prompt", "p", grounding.DefaultPrompt, "Prompt to send with each image")
	cmd.Flags().StringVar(&f.baseURL, "api", "", "Backend base URL (uses OLLAMA_URL/OPENAI_BASE_URL if not specified)")
	cmd.Flags().Float64VarP(&f.temperature, "temperature", "t", 0.0, "Temperature for the model")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 300*time.Second, "Per-request timeout")
	cmd.Flags().UintVar(&f.attempts, "attempts", providers.DefaultAttempts, "Attempts per image for transient backend errors")
	cmd.Flags().BoolVar(&f.noGrounding, "no-grounding", false, "Do not prefix the prompt with "+grounding.GroundingPrefix)
}

func (f *backendFlags) config() providers.Config {
	prompt := f.prompt
	if !f.noGrounding {
		prompt = grounding.WithGrounding(prompt)
	}
	return providers.Config{
		Provider:    f.provider,
		Model:       f.model,
		Prompt:      prompt,
		Temperature: f.temperature,
		Timeout:     f.timeout,
		BaseURL:     f.baseURL,
		Attempts:    f.attempts,
	}
}

// newRegistry registers every supported backend
func newRegistry() *providers.Registry {
	registry := providers.NewRegistry()
	registry.Register(ollama.New())
	registry.Register(openai.New())
	return registry
}

func getImageAsBase64(imagePath string) (string, error) {
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(imageData), nil
}
