package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/studyhub-backend/api/responses"
	"github.com/angelmondragon/studyhub-backend/api/validators"
	"github.com/angelmondragon/studyhub-backend/internal/access"
	"github.com/angelmondragon/studyhub-backend/internal/aiassist"
	"github.com/angelmondragon/studyhub-backend/internal/resources"
	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
	"github.com/angelmondragon/studyhub-backend/pkg/logger"
	"github.com/angelmondragon/studyhub-backend/pkg/pagination"
)

const maxFilterValue = 120

// ListResources returns resources matching the query filters, newest first.
func ListResources(svc resources.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := resources.Filter{
			Placement:  validators.QueryString(r, "placement", maxFilterValue),
			College:    validators.QueryString(r, "college", maxFilterValue),
			Department: validators.QueryString(r, "department", maxFilterValue),
			Year:       validators.QueryString(r, "year", maxFilterValue),
			Semester:   validators.QueryString(r, "semester", maxFilterValue),
			Course:     validators.QueryString(r, "course", maxFilterValue),
			Limit:      limit,
		}

		items, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func GetResource(svc resources.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Get(r.Context(), chi.URLParam(r, "resourceId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

type attachmentRequest struct {
	URL         string `json:"url" validate:"omitempty,url"`
	Name        string `json:"name" validate:"max=255"`
	ContentType string `json:"contentType" validate:"max=120"`
	Size        int64  `json:"size" validate:"gte=0"`
}

type createResourceRequest struct {
	Title       string            `json:"title" validate:"required,max=200"`
	Description string            `json:"description" validate:"max=5000"`
	Placement   string            `json:"placement" validate:"required,placement"`
	College     string            `json:"college" validate:"max=120"`
	Department  string            `json:"department" validate:"max=120"`
	Year        string            `json:"year" validate:"max=40"`
	Semester    string            `json:"semester" validate:"max=40"`
	Course      string            `json:"course" validate:"max=120"`
	Tags        []string          `json:"tags"`
	File        attachmentRequest `json:"file"`
}

// CreateResource stores a resource posted by the caller.
func CreateResource(svc resources.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createResourceRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, _ := access.SessionFromContext(r.Context())
		poster := models.Poster{UID: session.UserID, Name: session.Name, Email: session.Email}

		res, err := svc.Create(r.Context(), resources.CreateInput{
			Title:       body.Title,
			Description: body.Description,
			Placement:   body.Placement,
			College:     body.College,
			Department:  body.Department,
			Year:        body.Year,
			Semester:    body.Semester,
			Course:      body.Course,
			Tags:        body.Tags,
			File: models.Attachment{
				URL:         strings.TrimSpace(body.File.URL),
				Name:        strings.TrimSpace(body.File.Name),
				ContentType: strings.TrimSpace(body.File.ContentType),
				Size:        body.File.Size,
			},
		}, poster)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, res)
	}
}

func DeleteResource(svc resources.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "resourceId")
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithResourceID(r.Context(), id), "resources.deleted")
		}
		responses.WriteSuccess(w, map[string]string{"id": id})
	}
}

// ResourceAIData returns the stored AI data, or null when none was generated.
func ResourceAIData(svc resources.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := svc.AIData(r.Context(), chi.URLParam(r, "resourceId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, data)
	}
}

type generateRequest struct {
	Question    string                 `json:"question" validate:"max=2000"`
	ChatHistory []aiassist.ChatMessage `json:"chatHistory" validate:"max=200"`
	Count       int                    `json:"count" validate:"gte=0"`
}

// GenerateResourceAI runs the summary, flashcards or chat action for a resource.
func GenerateResourceAI(svc aiassist.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body generateRequest
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out, err := svc.Generate(r.Context(), chi.URLParam(r, "resourceId"), chi.URLParam(r, "action"), aiassist.Request{
			Question:    body.Question,
			ChatHistory: body.ChatHistory,
			Count:       body.Count,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}
