package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lylexist/deepseek-ocr-ui/internal/utils"
	"github.com/lylexist/deepseek-ocr-ui/pkg/grounding"
	"github.com/lylexist/deepseek-ocr-ui/pkg/hocr"
	"github.com/lylexist/deepseek-ocr-ui/pkg/overlay"
	"github.com/spf13/cobra"
	yaml "go.yaml.in/yaml/v3"
)

// ParseRequest describes one parse: model output plus the image it refers to
type ParseRequest struct {
	Text      string           `json:"text"`
	Viewport  overlay.Viewport `json:"viewport"`
	Letterbox bool             `json:"letterbox"`
	Active    *int             `json:"active,omitempty"`
}

// ParseOutput is what parse and /api/parse return
type ParseOutput struct {
	HasAnnotations bool             `json:"has_annotations" yaml:"has_annotations"`
	Result         grounding.Result `json:"result" yaml:"result"`
	Viewport       overlay.Viewport `json:"viewport" yaml:"viewport"`
	Active         int              `json:"active" yaml:"active"`
	ActiveRef      int              `json:"active_annotation" yaml:"active_annotation"`
	Regions        []overlay.Region `json:"regions" yaml:"regions"`
	Markdown       string           `json:"markdown" yaml:"markdown"`
}

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse grounding annotations from model output",
	Long: `Parse <|ref|>/<|det|> grounding annotations from DeepSeek-OCR output, classify their
coordinate space and map every box onto the source image.

The native image size comes from --image or from --width and --height. Without a rendered
size the regions are reported in native pixels.`,
	RunE: runParse,
}

var (
	parseInput          string
	parseImage          string
	parseWidth          float64
	parseHeight         float64
	parseRenderedWidth  float64
	parseRenderedHeight float64
	parseLetterbox      bool
	parseActive         int
	parseFormat         string
	parseOutputPath     string
)

func init() {
	RootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVarP(&parseInput, "input", "i", "-", "Model output to parse (- for stdin)")
	parseCmd.Flags().StringVar(&parseImage, "image", "", "Source image, used for its native size")
	parseCmd.Flags().Float64Var(&parseWidth, "width", 0, "Native image width in pixels")
	parseCmd.Flags().Float64Var(&parseHeight, "height", 0, "Native image height in pixels")
	parseCmd.Flags().Float64Var(&parseRenderedWidth, "rendered-width", 0, "Displayed image width (defaults to native)")
	parseCmd.Flags().Float64Var(&parseRenderedHeight, "rendered-height", 0, "Displayed image height (defaults to native)")
	parseCmd.Flags().BoolVar(&parseLetterbox, "letterbox", false, "Assume the model letterboxed the image into a square grid")
	parseCmd.Flags().IntVar(&parseActive, "active", overlay.None, "Region to mark active (-1 for none)")
	parseCmd.Flags().StringVarP(&parseFormat, "format", "f", "json", "Output format: json, yaml, hocr, markdown")
	parseCmd.Flags().StringVarP(&parseOutputPath, "output", "o", "", "Output path (prints to stdout if not specified)")

	parseCmd.MarkFlagsMutuallyExclusive("image", "width")
	parseCmd.MarkFlagsMutuallyExclusive("image", "height")
	parseCmd.MarkFlagsRequiredTogether("width", "height")
	parseCmd.MarkFlagsRequiredTogether("rendered-width", "rendered-height")
}

func runParse(cmd *cobra.Command, args []string) error {
	text, err := readInput(cmd.InOrStdin(), parseInput)
	if err != nil {
		return fmt.Errorf("failed to read model output: %w", err)
	}

	width, height := parseWidth, parseHeight
	if parseImage != "" {
		w, h, err := utils.ImageFileDimensions(parseImage)
		if err != nil {
			return err
		}
		width, height = float64(w), float64(h)
	}

	req := ParseRequest{
		Text: text,
		Viewport: overlay.Viewport{
			NativeWidth:    width,
			NativeHeight:   height,
			RenderedWidth:  parseRenderedWidth,
			RenderedHeight: parseRenderedHeight,
		},
		Letterbox: parseLetterbox,
		Active:    &parseActive,
	}
	output := BuildParseOutput(req)
	slog.Debug("Parsed model output",
		"annotations", len(output.Result.Annotations),
		"regions", len(output.Regions),
		"space", output.Result.Space,
		"mapping", output.Result.Mapping)

	w := cmd.OutOrStdout()
	if parseOutputPath != "" {
		f, err := os.Create(parseOutputPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	return WriteParseOutput(w, parseFormat, output)
}

// BuildParseOutput resolves the text against the viewport. A missing rendered
// size means regions are laid out at native size.
func BuildParseOutput(req ParseRequest) ParseOutput {
	v := req.Viewport
	if v.RenderedWidth <= 0 || v.RenderedHeight <= 0 {
		v.RenderedWidth, v.RenderedHeight = v.NativeWidth, v.NativeHeight
	}

	mapping := grounding.MappingPerAxis
	if req.Letterbox {
		mapping = grounding.MappingLetterbox
	}

	state := overlay.NewState(mapping)
	state.Resize(v)
	state.Update(req.Text)
	if req.Active != nil {
		state.Select(*req.Active)
	}

	return ParseOutput{
		HasAnnotations: state.HasAnnotations(),
		Result:         state.Result(),
		Viewport:       state.Viewport(),
		Active:         state.Active(),
		ActiveRef:      state.ActiveAnnotation(),
		Regions:        state.Regions(),
		Markdown:       grounding.StripGrounding(req.Text),
	}
}

// WriteParseOutput renders output in one of the supported formats
func WriteParseOutput(w io.Writer, format string, output ParseOutput) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(output)
	case "yaml", "yml":
		data, err := yaml.Marshal(output)
		if err != nil {
			return fmt.Errorf("failed to marshal yaml: %w", err)
		}
		_, err = w.Write(data)
		return err
	case "hocr":
		if !output.Viewport.HasNativeSize() {
			return fmt.Errorf("hocr output needs the native image size (--image or --width/--height)")
		}
		_, err := fmt.Fprintln(w, hocr.FromResult(output.Result))
		return err
	case "markdown", "md":
		_, err := fmt.Fprintln(w, output.Markdown)
		return err
	default:
		return fmt.Errorf("unknown format %q (want json, yaml, hocr or markdown)", format)
	}
}

func readInput(stdin io.Reader, path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
