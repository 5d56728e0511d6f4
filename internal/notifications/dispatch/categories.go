package dispatch

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/angelmondragon/studyhub-backend/pkg/enums"
)

// LibraryItem describes a resource for the library helpers.
type LibraryItem struct {
	ResourceID string
	Title      string
	Course     string
	PostedBy   string
}

func resourceLink(id string) string {
	return "/resources/" + url.PathEscape(id)
}

func libraryRequest(item LibraryItem, action, title, verb string) Request {
	where := "the library"
	if c := strings.TrimSpace(item.Course); c != "" {
		where = c
	}
	msg := fmt.Sprintf("%q was %s in %s.", item.Title, verb, where)
	if by := strings.TrimSpace(item.PostedBy); by != "" {
		msg = fmt.Sprintf("%s %s %q in %s.", by, verb, item.Title, where)
	}
	return Request{
		Title:     title,
		Message:   msg,
		Type:      enums.NotificationTypeLibrary,
		Link:      resourceLink(item.ResourceID),
		SendEmail: true,
		Metadata: map[string]any{
			"resourceId": item.ResourceID,
			"action":     action,
		},
	}
}

// NewLibraryItem announces a newly uploaded resource.
func NewLibraryItem(item LibraryItem) Request {
	return libraryRequest(item, "created", "New library resource", "added")
}

// UpdatedLibraryItem announces changes to an existing resource.
func UpdatedLibraryItem(item LibraryItem) Request {
	return libraryRequest(item, "updated", "Library resource updated", "updated")
}

func Training(title, message, link string) Request {
	return Request{
		Title:     "Training: " + strings.TrimSpace(title),
		Message:   message,
		Type:      enums.NotificationTypeTraining,
		Link:      link,
		SendEmail: true,
		Metadata:  map[string]any{"category": "training"},
	}
}

func Tutorial(title, link string) Request {
	return Request{
		Title:    "New tutorial available",
		Message:  fmt.Sprintf("%q is ready to watch.", strings.TrimSpace(title)),
		Type:     enums.NotificationTypeTutorial,
		Link:     link,
		Metadata: map[string]any{"category": "tutorial"},
	}
}

// SystemAnnouncement is always emailed.
func SystemAnnouncement(title, message string) Request {
	return Request{
		Title:     title,
		Message:   message,
		Type:      enums.NotificationTypeSystem,
		SendEmail: true,
		Metadata:  map[string]any{"category": "announcement"},
	}
}
