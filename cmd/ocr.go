package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lylexist/deepseek-ocr-ui/internal/utils"
	"github.com/lylexist/deepseek-ocr-ui/pkg/grounding"
	"github.com/lylexist/deepseek-ocr-ui/pkg/providers"
	"github.com/spf13/cobra"
	yaml "go.yaml.in/yaml/v3"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr PATH...",
	Short: "Convert images to markdown through an OCR backend",
	Long: `Send every image (or every image below a directory) to a DeepSeek-OCR backend and
write the result as markdown.

With --out all results are combined into one file. A single directory argument without
--out writes ocr.md inside that directory; otherwise each image gets an <image>.md next to it.
Images that fail are recorded inline and do not stop the batch.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOCR,
}

var (
	ocrBackend     backendFlags
	ocrNoClean     bool
	ocrStream      bool
	ocrOut         string
	ocrAnnotations bool
	ocrLetterbox   bool
)

func init() {
	RootCmd.AddCommand(ocrCmd)

	ocrBackend.register(ocrCmd)
	ocrCmd.Flags().BoolVar(&ocrNoClean, "no-clean", false, "Keep grounding tags in the markdown")
	ocrCmd.Flags().BoolVar(&ocrStream, "stream", false, "Stream output from backends that support it")
	ocrCmd.Flags().StringVar(&ocrOut, "out", "", "Write all results to one combined markdown file")
	ocrCmd.Flags().BoolVar(&ocrAnnotations, "annotations", false, "Also write <image>.grounding.yaml with resolved boxes")
	ocrCmd.Flags().BoolVar(&ocrLetterbox, "letterbox", false, "Resolve annotation sidecars with letterbox mapping")
}

// ocrOptions controls one batch run
type ocrOptions struct {
	Config      providers.Config
	NoClean     bool
	Stream      bool
	Annotations bool
	Mapping     grounding.Mapping
}

// ocrItem is one image and the text recorded for it
type ocrItem struct {
	ImagePath string
	Text      string
	Err       error
}

func runOCR(cmd *cobra.Command, args []string) error {
	var images []string
	for _, p := range args {
		found, err := utils.FindImages(p)
		if err != nil {
			return fmt.Errorf("path not found: %s: %w", p, err)
		}
		images = append(images, found...)
	}
	if len(images) == 0 {
		return fmt.Errorf("no images found")
	}

	config := ocrBackend.config()
	registry := newRegistry()
	provider, err := registry.Resolve(config)
	if err != nil {
		return err
	}
	if ocrStream && !registry.Streams(provider.Name()) {
		slog.Warn("Provider does not support streaming, waiting for full responses", "provider", provider.Name())
	}

	mapping := grounding.MappingPerAxis
	if ocrLetterbox {
		mapping = grounding.MappingLetterbox
	}
	opts := ocrOptions{
		Config:      config,
		NoClean:     ocrNoClean,
		Stream:      ocrStream,
		Annotations: ocrAnnotations,
		Mapping:     mapping,
	}

	slog.Info("Running OCR", "images", len(images), "provider", provider.Name(), "stream", ocrStream)
	items := runOCRBatch(cmd.Context(), provider, opts, images)

	failed := 0
	for _, item := range items {
		if item.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		slog.Warn("Some images failed", "failed", failed, "total", len(items))
	}

	return writeOCRResults(args, ocrOut, items)
}

// runOCRBatch processes images in order. A failed image keeps its error text
// in place of markdown.
func runOCRBatch(ctx context.Context, provider providers.Provider, opts ocrOptions, images []string) []ocrItem {
	items := make([]ocrItem, 0, len(images))
	for i, img := range images {
		slog.Info("Processing image", "image", img, "n", i+1, "total", len(images))

		text, err := ocrImage(ctx, provider, opts, img)
		if err != nil {
			err = utils.MaskSensitiveError(err)
			slog.Error("OCR failed", "image", img, "err", err)
			items = append(items, ocrItem{ImagePath: img, Text: fmt.Sprintf("<parse failed: %v>", err), Err: err})
			continue
		}

		if opts.Annotations {
			if err := writeAnnotations(img, text, opts.Mapping); err != nil {
				slog.Warn("Unable to write annotations", "image", img, "err", err)
			}
		}

		if !opts.NoClean {
			text = grounding.StripGrounding(text)
		}
		items = append(items, ocrItem{ImagePath: img, Text: text})
	}
	return items
}

func ocrImage(ctx context.Context, provider providers.Provider, opts ocrOptions, img string) (string, error) {
	imageBase64, err := getImageAsBase64(img)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	if opts.Stream {
		if sp, ok := provider.(providers.StreamingProvider); ok {
			text, usage, err := sp.StreamText(ctx, opts.Config, img, imageBase64, func(accumulated string) {
				slog.Debug("Stream progress", "image", img, "chars", len(accumulated), "annotations", len(grounding.Parse(accumulated)))
			})
			if err != nil {
				return "", err
			}
			slog.Debug("Stream finished", "image", img, "input_tokens", usage.InputTokens, "output_tokens", usage.OutputTokens)
			return text, nil
		}
	}

	text, usage, err := provider.ExtractText(ctx, opts.Config, img, imageBase64)
	if err != nil {
		return "", err
	}
	slog.Debug("OCR finished", "image", img, "input_tokens", usage.InputTokens, "output_tokens", usage.OutputTokens)
	return text, nil
}

// annotationsPath is the grounding sidecar for an image
func annotationsPath(img string) string {
	return img + ".grounding.yaml"
}

func writeAnnotations(img, text string, mapping grounding.Mapping) error {
	w, h, err := utils.ImageFileDimensions(img)
	if err != nil {
		return err
	}

	result := grounding.Resolve(text, float64(w), float64(h), grounding.WithMapping(mapping))
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal annotations: %w", err)
	}
	return os.WriteFile(annotationsPath(img), data, 0644)
}

// writeOCRResults picks the output layout from the arguments
func writeOCRResults(args []string, out string, items []ocrItem) error {
	if out != "" {
		return writeCombined(out, items)
	}

	if len(args) == 1 {
		if info, err := os.Stat(args[0]); err == nil && info.IsDir() {
			return writeCombined(filepath.Join(args[0], "ocr.md"), items)
		}
	}

	for _, item := range items {
		if err := writeSingle(item.ImagePath+".md", item.Text); err != nil {
			return err
		}
	}
	return nil
}

func writeCombined(path string, items []ocrItem) error {
	var sb strings.Builder
	for _, item := range items {
		fmt.Fprintf(&sb, "## %s\n\n", filepath.Base(item.ImagePath))
		sb.WriteString(item.Text + "\n\n")
		sb.WriteString("---\n\n")
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	slog.Info("Wrote markdown", "path", path, "images", len(items))
	return nil
}

func writeSingle(path, text string) error {
	if err := os.WriteFile(path, []byte(text+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	slog.Info("Wrote markdown", "path", path)
	return nil
}
