package grounding

import (
	"regexp"
	"strings"
)

// GroundingPrefix asks the model to emit ref/det markup alongside its text
const GroundingPrefix = "<|grounding|>"

// DefaultPrompt is the document conversion prompt the OCR commands send by default
const DefaultPrompt = "Convert the document to markdown."

var (
	refBlockPattern = regexp.MustCompile(`(?s)<\|ref\|.*?<\|/ref\|>?`)
	detBlockPattern = regexp.MustCompile(`(?s)<\|det\|.*?<\|/det\|>?`)
	strayTagPattern = regexp.MustCompile(`<\|/?(ref|det)\|>?`)
	trailingSpace   = regexp.MustCompile(`[ \t]+\n`)
)

// WithGrounding prefixes prompt with GroundingPrefix unless it is already there
func WithGrounding(prompt string) string {
	if strings.HasPrefix(prompt, GroundingPrefix) {
		return prompt
	}
	return GroundingPrefix + prompt
}

// StripGrounding removes ref/det blocks and stray grounding tags, leaving the
// plain markdown the model produced.
func StripGrounding(text string) string {
	text = refBlockPattern.ReplaceAllString(text, "")
	text = detBlockPattern.ReplaceAllString(text, "")
	text = strayTagPattern.ReplaceAllString(text, "")
	text = trailingSpace.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}
