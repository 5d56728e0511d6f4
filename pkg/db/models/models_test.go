package models

import "testing"

func TestAIDataPatchMergesOnlyPresentFields(t *testing.T) {
	data := ResourceAIData{
		ResourceID:   "r1",
		ShortSummary: "old short",
		LongSummary:  "old long",
		Flashcards:   []Flashcard{{Front: "Q", Back: "A"}},
	}

	long := "new long"
	AIDataPatch{LongSummary: &long}.Apply(&data)

	if data.ShortSummary != "old short" {
		t.Fatalf("short summary should be untouched, got %q", data.ShortSummary)
	}
	if data.LongSummary != "new long" {
		t.Fatalf("expected long summary replaced, got %q", data.LongSummary)
	}
	if len(data.Flashcards) != 1 {
		t.Fatalf("flashcards should accumulate across calls, got %v", data.Flashcards)
	}

	AIDataPatch{FlashcardsSet: true, Flashcards: []Flashcard{}}.Apply(&data)
	if len(data.Flashcards) != 0 {
		t.Fatalf("explicit empty deck should replace flashcards")
	}
}

func TestAIDataPatchEmpty(t *testing.T) {
	if !(AIDataPatch{}).Empty() {
		t.Fatal("zero patch should be empty")
	}
	if (AIDataPatch{FlashcardsSet: true}).Empty() {
		t.Fatal("flashcards-set patch should not be empty")
	}
}

func TestNotificationReadByUser(t *testing.T) {
	n := Notification{ReadBy: []string{"u1", "u2"}}
	if !n.ReadByUser("u2") || n.ReadByUser("u3") {
		t.Fatal("unexpected ReadByUser result")
	}
}
