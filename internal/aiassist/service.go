// Package aiassist generates summaries, flashcards and chat answers for a
// resource with the completion API and merges the results into its AI data.
package aiassist

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
	"github.com/angelmondragon/studyhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/studyhub-backend/pkg/errors"
	"github.com/angelmondragon/studyhub-backend/pkg/llm"
	"github.com/angelmondragon/studyhub-backend/pkg/logger"
	"github.com/angelmondragon/studyhub-backend/pkg/metrics"
)

const (
	DefaultFlashcards = 10
	MaxFlashcards     = 30
	maxChatHistory    = 20
	maxQuestionLength = 2000
)

type resourceReader interface {
	Get(ctx context.Context, id string) (*models.Resource, error)
}

type aiStore interface {
	MergeAI(ctx context.Context, resourceID string, patch models.AIDataPatch) (*models.ResourceAIData, error)
}

// ChatMessage is one turn of client-supplied history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request carries action-specific input. Question and ChatHistory apply to
// chat, Count to flashcards.
type Request struct {
	Question    string        `json:"question"`
	ChatHistory []ChatMessage `json:"chatHistory"`
	Count       int           `json:"count"`
}

type SummaryResult struct {
	ShortSummary string   `json:"shortSummary"`
	LongSummary  string   `json:"longSummary"`
	KeyPoints    []string `json:"keyPoints"`
	// Degraded is set when the completion was not valid JSON and the raw text was used.
	Degraded bool `json:"degraded"`
}

type FlashcardsResult struct {
	Flashcards []models.Flashcard `json:"flashcards"`
	Degraded   bool               `json:"degraded"`
}

type ChatResult struct {
	Answer string `json:"answer"`
}

type Service interface {
	// Generate returns *SummaryResult, *FlashcardsResult or *ChatResult.
	Generate(ctx context.Context, resourceID, action string, req Request) (any, error)
}

type ServiceParams struct {
	Resources resourceReader
	Store     aiStore
	// LLM may be nil; Generate then fails with a configuration error.
	LLM     llm.Completer
	Logger  *logger.Logger
	Metrics *metrics.DomainMetrics
}

type service struct {
	resources resourceReader
	store     aiStore
	llm       llm.Completer
	logg      *logger.Logger
	metrics   *metrics.DomainMetrics
}

func NewService(p ServiceParams) (Service, error) {
	if p.Resources == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "resource reader required")
	}
	if p.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ai data store required")
	}
	return &service{
		resources: p.Resources,
		store:     p.Store,
		llm:       p.LLM,
		logg:      p.Logger,
		metrics:   p.Metrics,
	}, nil
}

func (s *service) Generate(ctx context.Context, resourceID, action string, req Request) (any, error) {
	act, err := enums.ParseAIAction(strings.ToLower(strings.TrimSpace(action)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Unsupported action").
			WithDetails(map[string]any{"action": action, "allowed": []string{"summary", "flashcards", "chat"}})
	}
	if act == enums.AIActionChat {
		if err := req.validateChat(); err != nil {
			return nil, err
		}
	}

	res, err := s.resources.Get(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if s.llm == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "completion API is not configured").
			WithDetails(map[string]string{"hint": "set STUDYHUB_LLM_API_KEY"})
	}
	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{"resource_id": res.ID, "ai_action": string(act)})
	}

	switch act {
	case enums.AIActionSummary:
		return s.summary(ctx, res)
	case enums.AIActionFlashcards:
		return s.flashcards(ctx, res, clampCount(req.Count))
	default:
		return s.chat(ctx, res, req)
	}
}

func (s *service) summary(ctx context.Context, res *models.Resource) (*SummaryResult, error) {
	raw, err := s.llm.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: studyAssistant},
		{Role: llm.RoleUser, Content: summaryPrompt(res)},
	})
	if err != nil {
		return nil, err
	}

	result := summaryFrom(ParseCompletion(raw))
	s.recordParse(ctx, enums.AIActionSummary, result.Degraded)

	patch := models.AIDataPatch{
		ShortSummary: &result.ShortSummary,
		LongSummary:  &result.LongSummary,
	}
	if !result.Degraded {
		patch.KeyPoints = result.KeyPoints
	}
	if _, err := s.store.MergeAI(ctx, res.ID, patch); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save summary")
	}
	return result, nil
}

func (s *service) flashcards(ctx context.Context, res *models.Resource, count int) (*FlashcardsResult, error) {
	raw, err := s.llm.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: studyAssistant},
		{Role: llm.RoleUser, Content: flashcardsPrompt(res, count)},
	})
	if err != nil {
		return nil, err
	}

	result := flashcardsFrom(ParseCompletion(raw), count)
	s.recordParse(ctx, enums.AIActionFlashcards, result.Degraded)

	if !result.Degraded {
		if _, err := s.store.MergeAI(ctx, res.ID, models.AIDataPatch{Flashcards: result.Flashcards, FlashcardsSet: true}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save flashcards")
		}
	}
	return result, nil
}

func (s *service) chat(ctx context.Context, res *models.Resource, req Request) (*ChatResult, error) {
	history := req.ChatHistory
	if len(history) > maxChatHistory {
		history = history[len(history)-maxChatHistory:]
	}
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: chatPreamble(res)})
	for _, m := range history {
		messages = append(messages, llm.Message{Role: normalizeRole(m.Role), Content: strings.TrimSpace(m.Content)})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: strings.TrimSpace(req.Question)})

	answer, err := s.llm.Complete(ctx, messages)
	if err != nil {
		return nil, err
	}
	s.metrics.AIGeneration(string(enums.AIActionChat), "chat")
	return &ChatResult{Answer: strings.TrimSpace(answer)}, nil
}

func summaryFrom(c Completion) *SummaryResult {
	var text string
	switch v := c.(type) {
	case Parsed:
		var doc struct {
			ShortSummary string   `json:"shortSummary"`
			LongSummary  string   `json:"longSummary"`
			KeyPoints    []string `json:"keyPoints"`
		}
		if err := json.Unmarshal(v.JSON, &doc); err == nil && (doc.ShortSummary != "" || doc.LongSummary != "") {
			out := &SummaryResult{
				ShortSummary: strings.TrimSpace(doc.ShortSummary),
				LongSummary:  strings.TrimSpace(doc.LongSummary),
				KeyPoints:    cleanPoints(doc.KeyPoints),
			}
			if out.ShortSummary == "" {
				out.ShortSummary = firstSentence(out.LongSummary)
			}
			if out.LongSummary == "" {
				out.LongSummary = out.ShortSummary
			}
			return out
		}
		text = string(v.JSON)
	case Malformed:
		text = v.Raw
	}
	return &SummaryResult{
		ShortSummary: firstSentence(text),
		LongSummary:  strings.TrimSpace(text),
		KeyPoints:    []string{},
		Degraded:     true,
	}
}

func flashcardsFrom(c Completion, count int) *FlashcardsResult {
	v, ok := c.(Parsed)
	if !ok {
		return &FlashcardsResult{Flashcards: []models.Flashcard{}, Degraded: true}
	}

	type card struct {
		Front string `json:"front"`
		Back  string `json:"back"`
	}
	var cards []card
	var wrapped struct {
		Flashcards []card `json:"flashcards"`
	}
	if err := json.Unmarshal(v.JSON, &wrapped); err == nil && wrapped.Flashcards != nil {
		cards = wrapped.Flashcards
	} else if err := json.Unmarshal(v.JSON, &cards); err != nil {
		return &FlashcardsResult{Flashcards: []models.Flashcard{}, Degraded: true}
	}

	out := make([]models.Flashcard, 0, len(cards))
	for _, c := range cards {
		front, back := strings.TrimSpace(c.Front), strings.TrimSpace(c.Back)
		if front == "" || back == "" {
			continue
		}
		out = append(out, models.Flashcard{Front: front, Back: back})
		if len(out) == count {
			break
		}
	}
	return &FlashcardsResult{Flashcards: out}
}

func (s *service) recordParse(ctx context.Context, action enums.AIAction, degraded bool) {
	outcome := "parsed"
	if degraded {
		outcome = "malformed"
		if s.logg != nil {
			s.logg.Warn(ctx, "aiassist.completion.malformed")
		}
	}
	s.metrics.AIGeneration(string(action), outcome)
}

func (r Request) validateChat() error {
	q := strings.TrimSpace(r.Question)
	if q == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "question is required")
	}
	if len(q) > maxQuestionLength {
		return pkgerrors.New(pkgerrors.CodeValidation, "question is too long").
			WithDetails(map[string]any{"max": maxQuestionLength})
	}
	return nil
}

func clampCount(n int) int {
	switch {
	case n <= 0:
		return DefaultFlashcards
	case n > MaxFlashcards:
		return MaxFlashcards
	}
	return n
}

func normalizeRole(role string) string {
	if strings.EqualFold(strings.TrimSpace(role), llm.RoleAssistant) {
		return llm.RoleAssistant
	}
	return llm.RoleUser
}

func cleanPoints(points []string) []string {
	out := make([]string, 0, len(points))
	for _, p := range points {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
