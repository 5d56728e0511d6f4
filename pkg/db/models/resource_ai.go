package models

import "time"

// Flashcard is one front/back study card.
type Flashcard struct {
	Front string `json:"front" firestore:"front"`
	Back  string `json:"back" firestore:"back"`
}

// ResourceAIData accumulates AI-derived fields for a resource across generation calls.
type ResourceAIData struct {
	ResourceID   string      `json:"resourceId" firestore:"-" gorm:"type:text;primaryKey"`
	ShortSummary string      `json:"shortSummary,omitempty" firestore:"shortSummary,omitempty" gorm:"type:text"`
	LongSummary  string      `json:"longSummary,omitempty" firestore:"longSummary,omitempty" gorm:"type:text"`
	KeyPoints    []string    `json:"keyPoints,omitempty" firestore:"keyPoints,omitempty" gorm:"type:text;serializer:json"`
	Flashcards   []Flashcard `json:"flashcards,omitempty" firestore:"flashcards,omitempty" gorm:"type:text;serializer:json"`
	UpdatedAt    time.Time   `json:"updatedAt" firestore:"updatedAt"`
}

func (ResourceAIData) TableName() string { return "resource_ai_data" }

// AIDataPatch carries only the fields produced by one generation call. Nil fields are left untouched.
type AIDataPatch struct {
	ShortSummary *string
	LongSummary  *string
	KeyPoints    []string
	Flashcards   []Flashcard
	// FlashcardsSet distinguishes an intentionally empty deck from an absent one.
	FlashcardsSet bool
}

// Empty reports whether the patch carries nothing to write.
func (p AIDataPatch) Empty() bool {
	return p.ShortSummary == nil && p.LongSummary == nil && p.KeyPoints == nil && !p.FlashcardsSet
}

// Apply merges the patch into d in place.
func (p AIDataPatch) Apply(d *ResourceAIData) {
	if p.ShortSummary != nil {
		d.ShortSummary = *p.ShortSummary
	}
	if p.LongSummary != nil {
		d.LongSummary = *p.LongSummary
	}
	if p.KeyPoints != nil {
		d.KeyPoints = p.KeyPoints
	}
	if p.FlashcardsSet {
		d.Flashcards = p.Flashcards
	}
}
