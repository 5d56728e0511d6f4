package aiassist

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Completion is the outcome of parsing completion text: Parsed or Malformed.
type Completion interface {
	completion()
}

// Parsed holds the JSON document found in the completion.
type Parsed struct {
	JSON json.RawMessage
}

// Malformed holds the cleaned text when no JSON document could be parsed.
type Malformed struct {
	Raw string
	Err error
}

func (Parsed) completion()    {}
func (Malformed) completion() {}

var fenced = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```")

// StripFences returns the content of the first fenced block, or the trimmed
// input when there is none.
func StripFences(raw string) string {
	if m := fenced.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "```json"))
}

// ParseCompletion strips fence markers and parses the remainder as JSON.
func ParseCompletion(raw string) Completion {
	text := StripFences(raw)
	var doc json.RawMessage
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return Malformed{Raw: text, Err: err}
	}
	return Parsed{JSON: doc}
}

const maxShortSummary = 200

// firstSentence returns the first sentence of text, capped at 200 characters.
func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, ".!?"); i >= 0 {
		text = text[:i+1]
	} else if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= maxShortSummary {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxShortSummary-1])) + "…"
}
