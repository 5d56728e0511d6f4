package fanout

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/angelmondragon/studyhub-backend/pkg/email"
)

var bodyTemplate = template.Must(template.New("notification").Parse(`<!doctype html>
<html><body style="font-family:sans-serif">
<p>Hi {{if .Name}}{{.Name}}{{else}}there{{end}},</p>
<h2>{{.Title}}</h2>
<p>{{.Message}}</p>
{{if .Link}}<p><a href="{{.Link}}">Open in StudyHub</a></p>{{end}}
<p style="color:#888;font-size:12px">You are receiving this because you have a StudyHub account.</p>
</body></html>`))

type bodyData struct {
	Name    string
	Title   string
	Message string
	Link    string
}

// Render builds the email for one recipient. Relative links are resolved against publicURL.
func Render(event Event, to Recipient, publicURL string) (email.Message, error) {
	link := absoluteLink(event.Link, publicURL)

	var buf bytes.Buffer
	if err := bodyTemplate.Execute(&buf, bodyData{
		Name:    to.Name,
		Title:   event.Title,
		Message: event.Message,
		Link:    link,
	}); err != nil {
		return email.Message{}, fmt.Errorf("render notification email: %w", err)
	}

	text := event.Title + "\n\n" + event.Message
	if link != "" {
		text += "\n\n" + link
	}

	return email.Message{
		To:      to.Email,
		Subject: event.Title,
		HTML:    buf.String(),
		Text:    text,
	}, nil
}

func absoluteLink(link, publicURL string) string {
	link = strings.TrimSpace(link)
	if link == "" || strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	base := strings.TrimRight(strings.TrimSpace(publicURL), "/")
	if base == "" {
		return link
	}
	return base + "/" + strings.TrimLeft(link, "/")
}
