package client

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/angelmondragon/studyhub-backend/pkg/apiclient"
	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
)

// Client calls /api/resources. Every method may fail; errors from the backend
// carry its message (see apiclient.StatusError).
type Client struct {
	api *apiclient.Client
}

func New(api *apiclient.Client) *Client {
	return &Client{api: api}
}

func resourcePath(id string, rest ...string) string {
	p := "/api/resources/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

func (c *Client) List(ctx context.Context, filter Filter) ([]Resource, error) {
	path := "/api/resources"
	if q := filter.Query(); q != "" {
		path += "?" + q
	}
	var out []Resource
	if err := c.api.Get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, id string) (*Resource, error) {
	var out Resource
	if err := c.api.Get(ctx, resourcePath(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Create(ctx context.Context, in NewResource) (*Resource, error) {
	var out Resource
	if err := c.api.Post(ctx, "/api/resources", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.api.Delete(ctx, resourcePath(id), nil)
}

// AIData returns nil when nothing has been generated yet.
func (c *Client) AIData(ctx context.Context, id string) (*AIData, error) {
	var raw json.RawMessage
	if err := c.api.Get(ctx, resourcePath(id, "ai"), &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out AIData
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GenerateSummary(ctx context.Context, id string) (*Summary, error) {
	var out Summary
	if err := c.api.Post(ctx, resourcePath(id, "ai", "summary"), struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateFlashcards asks for count cards; the backend clamps the count.
func (c *Client) GenerateFlashcards(ctx context.Context, id string, count int) ([]models.Flashcard, error) {
	var out struct {
		Flashcards json.RawMessage `json:"flashcards"`
	}
	body := map[string]int{}
	if count > 0 {
		body["count"] = count
	}
	if err := c.api.Post(ctx, resourcePath(id, "ai", "flashcards"), body, &out); err != nil {
		return nil, err
	}
	return ParseFlashcards(out.Flashcards), nil
}

func (c *Client) Chat(ctx context.Context, id, question string, history []ChatMessage) (string, error) {
	body := struct {
		Question    string        `json:"question"`
		ChatHistory []ChatMessage `json:"chatHistory"`
	}{Question: question, ChatHistory: history}
	if body.ChatHistory == nil {
		body.ChatHistory = []ChatMessage{}
	}
	var out struct {
		Answer string `json:"answer"`
	}
	if err := c.api.Post(ctx, resourcePath(id, "ai", "chat"), body, &out); err != nil {
		return "", err
	}
	return out.Answer, nil
}
