package grounding

import (
	"strings"
	"unicode"
)

// Grounding markup emitted by the model around each reference/detection pair
const (
	RefOpen  = "<|ref|>"
	RefClose = "<|/ref|>"
	DetOpen  = "<|det|>"
	DetClose = "<|/det|>"
)

// DefaultCaption is used when neither a caption line nor a label is available
const DefaultCaption = "Untitled region"

// Match is one well-formed ref/det pair found in the model output
type Match struct {
	Label   string
	Payload string
	// Start and End are byte offsets of the pair within the scanned text
	Start int
	End   int
}

// Scan finds every ref/det pair in text, left to right, without overlap.
// Incomplete or malformed markup is skipped, never reported.
func Scan(text string) []Match {
	var matches []Match

	pos := 0
	for pos < len(text) {
		open := strings.Index(text[pos:], RefOpen)
		if open == -1 {
			break
		}
		open += pos

		m, next, ok := matchAt(text, open)
		if ok {
			matches = append(matches, m)
			pos = m.End
			continue
		}
		pos = next
	}

	return matches
}

// matchAt tries to read a complete pair starting at the ref open tag at start.
// When it fails, next is where scanning should resume.
func matchAt(text string, start int) (Match, int, bool) {
	labelStart := start + len(RefOpen)
	fail := labelStart

	closeRel := strings.Index(text[labelStart:], RefClose)
	if closeRel == -1 {
		return Match{}, len(text), false
	}
	labelEnd := labelStart + closeRel

	// an open before the close means this open was never terminated. Only the
	// last one can pair with the close already found.
	if nested := strings.LastIndex(text[labelStart:labelEnd], RefOpen); nested != -1 {
		return Match{}, labelStart + nested, false
	}

	i := skipSpace(text, labelEnd+len(RefClose))
	if !strings.HasPrefix(text[i:], DetOpen) {
		return Match{}, fail, false
	}
	bodyStart := i + len(DetOpen)

	// the payload may not run into the next reference
	limit := len(text)
	if next := strings.Index(text[bodyStart:], RefOpen); next != -1 {
		limit = bodyStart + next
	}
	detRel := strings.Index(text[bodyStart:limit], DetClose)
	if detRel == -1 {
		return Match{}, fail, false
	}
	bodyEnd := bodyStart + detRel

	payload := strings.TrimFunc(text[bodyStart:bodyEnd], unicode.IsSpace)
	if len(payload) < 2 || payload[0] != '[' || payload[len(payload)-1] != ']' {
		return Match{}, fail, false
	}

	return Match{
		Label:   strings.TrimSpace(text[labelStart:labelEnd]),
		Payload: payload,
		Start:   start,
		End:     bodyEnd + len(DetClose),
	}, 0, true
}

func skipSpace(text string, i int) int {
	for i < len(text) {
		switch text[i] {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			i++
		default:
			return i
		}
	}
	return i
}

// Caption returns the first non-blank line of between, or the label, or DefaultCaption.
func Caption(between, label string) string {
	for _, line := range splitLines(between) {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	if label != "" {
		return label
	}
	return DefaultCaption
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Split(s, "\n")
}
