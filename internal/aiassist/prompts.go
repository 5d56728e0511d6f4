package aiassist

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
)

func describe(res *models.Resource) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", res.Title)
	if d := strings.TrimSpace(res.Description); d != "" {
		fmt.Fprintf(&b, "Description: %s\n", d)
	}
	var class []string
	for _, part := range []struct{ label, value string }{
		{"College", res.College},
		{"Department", res.Department},
		{"Year", res.Year},
		{"Semester", res.Semester},
		{"Course", res.Course},
	} {
		if part.value != "" {
			class = append(class, part.label+": "+part.value)
		}
	}
	if len(class) > 0 {
		fmt.Fprintf(&b, "Classification: %s\n", strings.Join(class, ", "))
	}
	if len(res.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(res.Tags, ", "))
	}
	if res.File.Name != "" {
		fmt.Fprintf(&b, "File: %s\n", res.File.Name)
	}
	return b.String()
}

const studyAssistant = "You are a study assistant for university students."

func summaryPrompt(res *models.Resource) string {
	return describe(res) + `
Summarize this study resource. Respond with JSON only, in this shape:
{"shortSummary": "one or two sentences", "longSummary": "a few paragraphs", "keyPoints": ["point", "..."]}`
}

func flashcardsPrompt(res *models.Resource, count int) string {
	return describe(res) + fmt.Sprintf(`
Write %d flashcards that test the key ideas of this resource. Respond with JSON only, in this shape:
{"flashcards": [{"front": "question", "back": "answer"}]}`, count)
}

func chatPreamble(res *models.Resource) string {
	return studyAssistant + " Answer questions about the following resource. " +
		"If the question is unrelated, say so briefly.\n\n" + describe(res)
}
