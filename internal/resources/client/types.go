// Package client is the typed Go client for the resource and AI endpoints.
// Timestamps are normalized to ISO-8601 strings whatever shape the backend
// sends them in.
package client

import (
	"bytes"
	"encoding/json"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
)

// isoLayout is the JavaScript Date#toISOString layout.
const isoLayout = "2006-01-02T15:04:05.000Z"

// Filter narrows a resource listing.
type Filter struct {
	Placement  string
	College    string
	Department string
	Year       string
	Semester   string
	Course     string
}

// Query encodes only the non-empty fields, without a leading "?".
func (f Filter) Query() string {
	v := url.Values{}
	set := func(k, val string) {
		if val = strings.TrimSpace(val); val != "" {
			v.Set(k, val)
		}
	}
	set("placement", f.Placement)
	set("college", f.College)
	set("department", f.Department)
	set("year", f.Year)
	set("semester", f.Semester)
	set("course", f.Course)
	return v.Encode()
}

// Timestamp is an ISO-8601 UTC string, or "" when the backend sent nothing usable.
type Timestamp string

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	*t = Timestamp(NormalizeTimestamp(data))
	return nil
}

type epoch struct {
	Seconds      *float64 `json:"seconds"`
	Nanoseconds  float64  `json:"nanoseconds"`
	USeconds     *float64 `json:"_seconds"`
	UNanoseconds float64  `json:"_nanoseconds"`
}

// NormalizeTimestamp converts {seconds}, {_seconds}, an ISO string or null
// into an ISO-8601 UTC string with milliseconds. Unrecognized input yields "".
func NormalizeTimestamp(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return normalizeString(s)
	case '{':
		var e epoch
		if err := json.Unmarshal(raw, &e); err != nil {
			return ""
		}
		switch {
		case e.Seconds != nil:
			return formatEpoch(*e.Seconds, e.Nanoseconds)
		case e.USeconds != nil:
			return formatEpoch(*e.USeconds, e.UNanoseconds)
		}
	}
	return ""
}

func normalizeString(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(isoLayout)
		}
	}
	return ""
}

func formatEpoch(seconds, nanos float64) string {
	whole, frac := math.Modf(seconds)
	t := time.Unix(int64(whole), int64(frac*1e9)+int64(nanos)).UTC()
	return t.Format(isoLayout)
}

// Resource mirrors models.Resource with normalized timestamps.
type Resource struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Placement   string            `json:"placement"`
	College     string            `json:"college,omitempty"`
	Department  string            `json:"department,omitempty"`
	Year        string            `json:"year,omitempty"`
	Semester    string            `json:"semester,omitempty"`
	Course      string            `json:"course,omitempty"`
	Tags        []string          `json:"tags"`
	PostedBy    models.Poster     `json:"postedBy"`
	File        models.Attachment `json:"file"`
	CreatedAt   Timestamp         `json:"createdAt"`
	UpdatedAt   Timestamp         `json:"updatedAt"`
}

// NewResource is the create payload.
type NewResource struct {
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Placement   string            `json:"placement"`
	College     string            `json:"college,omitempty"`
	Department  string            `json:"department,omitempty"`
	Year        string            `json:"year,omitempty"`
	Semester    string            `json:"semester,omitempty"`
	Course      string            `json:"course,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	File        models.Attachment `json:"file"`
}

// AIData is the AI-derived record for a resource.
type AIData struct {
	ShortSummary string             `json:"shortSummary,omitempty"`
	LongSummary  string             `json:"longSummary,omitempty"`
	KeyPoints    []string           `json:"keyPoints,omitempty"`
	Flashcards   []models.Flashcard `json:"flashcards,omitempty"`
	UpdatedAt    Timestamp          `json:"updatedAt"`
}

func (a *AIData) UnmarshalJSON(data []byte) error {
	var raw struct {
		ShortSummary string          `json:"shortSummary"`
		LongSummary  string          `json:"longSummary"`
		KeyPoints    []string        `json:"keyPoints"`
		Flashcards   json.RawMessage `json:"flashcards"`
		UpdatedAt    Timestamp       `json:"updatedAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = AIData{
		ShortSummary: raw.ShortSummary,
		LongSummary:  raw.LongSummary,
		KeyPoints:    raw.KeyPoints,
		Flashcards:   ParseFlashcards(raw.Flashcards),
		UpdatedAt:    raw.UpdatedAt,
	}
	return nil
}

// ParseFlashcards keeps only entries whose front and back are non-empty
// strings after trimming. Malformed input yields an empty deck.
func ParseFlashcards(raw json.RawMessage) []models.Flashcard {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []models.Flashcard{}
	}
	cards := make([]models.Flashcard, 0, len(items))
	for _, item := range items {
		var card struct {
			Front any `json:"front"`
			Back  any `json:"back"`
		}
		if err := json.Unmarshal(item, &card); err != nil {
			continue
		}
		front, _ := card.Front.(string)
		back, _ := card.Back.(string)
		front, back = strings.TrimSpace(front), strings.TrimSpace(back)
		if front == "" || back == "" {
			continue
		}
		cards = append(cards, models.Flashcard{Front: front, Back: back})
	}
	return cards
}

// Summary is the summary action's payload.
type Summary struct {
	ShortSummary string   `json:"shortSummary"`
	LongSummary  string   `json:"longSummary"`
	KeyPoints    []string `json:"keyPoints"`
	Degraded     bool     `json:"degraded"`
}

// ChatMessage is one turn of a chat history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
